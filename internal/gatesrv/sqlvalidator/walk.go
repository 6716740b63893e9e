package sqlvalidator

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// walk performs a depth-first traversal of the parse tree using protobuf
// reflection, invoking visit for every message node. The pg_query AST is a
// large closed set of node types; reflection covers all of them, including
// subqueries, CTEs, and expression trees, without enumerating each kind.
// visit returning false stops the traversal.
func walk(root proto.Message, visit func(msg any) bool) {
	if root == nil {
		return
	}
	walkMessage(root.ProtoReflect(), visit)
}

func walkMessage(m protoreflect.Message, visit func(msg any) bool) bool {
	if !m.IsValid() {
		return true
	}
	if !visit(m.Interface()) {
		return false
	}

	cont := true
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsList():
			if fd.Kind() != protoreflect.MessageKind {
				return true
			}
			l := v.List()
			for i := 0; i < l.Len(); i++ {
				if !walkMessage(l.Get(i).Message(), visit) {
					cont = false
					return false
				}
			}
		case fd.IsMap():
			// The pg_query AST has no map fields.
		case fd.Kind() == protoreflect.MessageKind:
			if !walkMessage(v.Message(), visit) {
				cont = false
				return false
			}
		}
		return true
	})
	return cont
}

// Package gatecommon provides the shared types and request-context utilities
// for the postgate service: the SQL operation vocabulary, the tenant backend
// variant, and the policy attached to authenticated requests.
package gatecommon

import (
	"fmt"

	"github.com/postgate/postgate/internal/common/uuid"
)

// Operation is one element of the closed SQL operation vocabulary.
type Operation string

const (
	OpSelect Operation = "SELECT"
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpCreate Operation = "CREATE"
	OpAlter  Operation = "ALTER"
	OpDrop   Operation = "DROP"
)

// AllOperations lists the full operation vocabulary.
var AllOperations = []Operation{
	OpSelect, OpInsert, OpUpdate, OpDelete, OpCreate, OpAlter, OpDrop,
}

// DefaultOperations is the default permission set for new tokens (DML only).
var DefaultOperations = []Operation{OpSelect, OpInsert, OpUpdate, OpDelete}

// ParseOperation maps a string to an Operation. Unknown strings return an
// error; the vocabulary is closed.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpSelect, OpInsert, OpUpdate, OpDelete, OpCreate, OpAlter, OpDrop:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation: %s", s)
}

// IsDDL reports whether the operation is a DDL operation. DDL statements do
// not return rows and are executed rather than queried.
func (op Operation) IsDDL() bool {
	return op == OpCreate || op == OpAlter || op == OpDrop
}

// OperationSet is a set over the operation vocabulary.
type OperationSet map[Operation]struct{}

// NewOperationSet builds a set from the given operations.
func NewOperationSet(ops ...Operation) OperationSet {
	s := make(OperationSet, len(ops))
	for _, op := range ops {
		s[op] = struct{}{}
	}
	return s
}

// Contains reports whether op is in the set.
func (s OperationSet) Contains(op Operation) bool {
	_, ok := s[op]
	return ok
}

// Slice returns the set's members in vocabulary order.
func (s OperationSet) Slice() []Operation {
	out := make([]Operation, 0, len(s))
	for _, op := range AllOperations {
		if s.Contains(op) {
			out = append(out, op)
		}
	}
	return out
}

// BackendKind distinguishes the two tenant backend variants.
type BackendKind string

const (
	// BackendShared is an isolated schema within the host database.
	BackendShared BackendKind = "schema"
	// BackendDedicated is an external database reached by DSN.
	BackendDedicated BackendKind = "dedicated"
)

// Backend is the tagged backend variant of a tenant. Exactly one of the two
// payloads is populated; construct values through SharedBackend or
// DedicatedBackend so the invariant holds.
type Backend struct {
	kind       BackendKind
	schemaName string
	dsn        string
}

// SharedBackend returns a Backend for an isolated schema in the host
// database.
func SharedBackend(schemaName string) Backend {
	return Backend{kind: BackendShared, schemaName: schemaName}
}

// DedicatedBackend returns a Backend for an external database.
func DedicatedBackend(dsn string) Backend {
	return Backend{kind: BackendDedicated, dsn: dsn}
}

// Kind returns the backend variant tag.
func (b Backend) Kind() BackendKind {
	return b.kind
}

// SchemaName returns the schema name for shared backends, and "" otherwise.
func (b Backend) SchemaName() string {
	return b.schemaName
}

// DSN returns the connection string for dedicated backends, and "" otherwise.
func (b Backend) DSN() string {
	return b.dsn
}

// IsZero reports whether the backend is unpopulated.
func (b Backend) IsZero() bool {
	return b.kind == ""
}

// Policy is derived at auth time by joining a token with its tenant. It is
// attached to the request context and drives validation and execution.
type Policy struct {
	TenantID   uuid.UUID
	TenantName string
	TokenID    uuid.UUID
	Backend    Backend
	MaxRows    int
	Operations OperationSet
}

// DefaultMaxRows is the row cap applied when none is specified.
const DefaultMaxRows = 1000

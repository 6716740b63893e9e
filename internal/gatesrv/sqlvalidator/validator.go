// Package sqlvalidator is the security perimeter of the gateway. It parses a
// single SQL statement in the PostgreSQL dialect, classifies its operation,
// checks it against the caller's policy, and rejects any syntactic form that
// could address an object outside the caller's namespace.
//
// Execution binds search_path to exactly one tenant schema, so an unqualified
// name can only resolve inside that schema or inside postgate_helpers.
// Blocking qualified names closes the only other route; blocking pg_* and
// information_schema closes catalog introspection.
package sqlvalidator

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

// HelperSchema is the only schema a statement may reference by qualified
// name. It hosts SECURITY DEFINER utility functions callable by any tenant.
const HelperSchema = "postgate_helpers"

// ParsedQuery is the validator's output: the original SQL (never rewritten),
// its classified operation, the unqualified relation names it references, and
// whether execution is expected to produce a row set.
type ParsedQuery struct {
	SQL         string
	Operation   gatecommon.Operation
	Tables      []string
	ReturnsRows bool
}

// ValidateQuery parses sql and checks it against the policy's allowed
// operations. It returns the parsed query or a validation error.
func ValidateQuery(sql string, allowed gatecommon.OperationSet) (*ParsedQuery, apperrors.Error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrEmptyQuery
	}

	result, parseErr := pg_query.Parse(sql)
	if parseErr != nil {
		return nil, ErrSyntax.Err(parseErr)
	}

	stmts := result.GetStmts()
	if len(stmts) == 0 {
		return nil, ErrEmptyQuery
	}
	if len(stmts) > 1 {
		return nil, ErrMultipleStatements
	}

	raw := stmts[0].GetStmt()
	op, opErr := classifyStatement(raw)
	if opErr != nil {
		return nil, opErr
	}

	tables, refErr := checkIdentifiers(raw)
	if refErr != nil {
		return nil, refErr
	}

	if len(allowed) > 0 && !allowed.Contains(op) {
		return nil, ErrOperationNotAllowed.Msg(fmt.Sprintf("operation %s is not allowed", op))
	}

	return &ParsedQuery{
		SQL:         sql,
		Operation:   op,
		Tables:      tables,
		ReturnsRows: returnsRows(raw),
	}, nil
}

// classifyStatement maps the root statement node to the operation
// vocabulary. Statement kinds outside the vocabulary (BEGIN, SET, GRANT,
// VACUUM, COPY, ...) are rejected.
func classifyStatement(node *pg_query.Node) (gatecommon.Operation, apperrors.Error) {
	switch node.GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		return gatecommon.OpSelect, nil
	case *pg_query.Node_InsertStmt:
		return gatecommon.OpInsert, nil
	case *pg_query.Node_UpdateStmt:
		return gatecommon.OpUpdate, nil
	case *pg_query.Node_DeleteStmt:
		return gatecommon.OpDelete, nil
	case *pg_query.Node_CreateStmt, *pg_query.Node_IndexStmt, *pg_query.Node_ViewStmt:
		// Tenants manage their own tables, indexes, and views.
		return gatecommon.OpCreate, nil
	case *pg_query.Node_AlterTableStmt:
		return gatecommon.OpAlter, nil
	case *pg_query.Node_DropStmt, *pg_query.Node_TruncateStmt:
		return gatecommon.OpDrop, nil
	default:
		return "", ErrUnsupportedStmt
	}
}

// returnsRows reports whether the statement produces a row set: SELECT
// always, DML only with a RETURNING clause, DDL never.
func returnsRows(node *pg_query.Node) bool {
	switch n := node.GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		return true
	case *pg_query.Node_InsertStmt:
		return len(n.InsertStmt.GetReturningList()) > 0
	case *pg_query.Node_UpdateStmt:
		return len(n.UpdateStmt.GetReturningList()) > 0
	case *pg_query.Node_DeleteStmt:
		return len(n.DeleteStmt.GetReturningList()) > 0
	default:
		return false
	}
}

// checkIdentifiers walks the statement and applies the namespace rules to
// every relation reference, function name, and column reference. It returns
// the unqualified relation names encountered.
func checkIdentifiers(node *pg_query.Node) ([]string, apperrors.Error) {
	seen := make(map[string]struct{})
	var tables []string
	var verr apperrors.Error

	walk(node, func(msg any) bool {
		switch n := msg.(type) {
		case *pg_query.RangeVar:
			parts := identifierParts(n.GetCatalogname(), n.GetSchemaname(), n.GetRelname())
			if err := checkQualifiedChain(parts); err != nil {
				verr = err
				return false
			}
			if n.GetSchemaname() == "" {
				if _, ok := seen[n.GetRelname()]; !ok {
					seen[n.GetRelname()] = struct{}{}
					tables = append(tables, n.GetRelname())
				}
			}
		case *pg_query.FuncCall:
			parts := stringParts(n.GetFuncname())
			if err := checkQualifiedChain(parts); err != nil {
				verr = err
				return false
			}
		case *pg_query.ColumnRef:
			// Column chains never address relations by themselves (t.x is an
			// alias reference), so only the system-object rule applies.
			if err := checkSystemParts(stringParts(n.GetFields())); err != nil {
				verr = err
				return false
			}
		}
		return true
	})

	if verr != nil {
		return nil, verr
	}
	return tables, nil
}

// checkQualifiedChain enforces the namespace rules on one identifier chain:
// every part is first screened for system objects, then a postgate_helpers
// qualifier is allowed and any other qualification is rejected.
func checkQualifiedChain(parts []string) apperrors.Error {
	if err := checkSystemParts(parts); err != nil {
		return err
	}
	if len(parts) > 1 && !strings.EqualFold(parts[0], HelperSchema) {
		return ErrQualifiedName
	}
	return nil
}

// checkSystemParts rejects any identifier that addresses the system
// catalogs, at any position in the chain.
func checkSystemParts(parts []string) apperrors.Error {
	for _, p := range parts {
		lower := strings.ToLower(p)
		if strings.HasPrefix(lower, "pg_") || lower == "information_schema" {
			return ErrSystemObject
		}
	}
	return nil
}

// identifierParts collects the non-empty parts of a relation reference.
func identifierParts(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stringParts extracts the string values from a list of AST nodes, skipping
// non-string entries such as A_Star.
func stringParts(nodes []*pg_query.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := n.GetString_(); s != nil {
			out = append(out, s.GetSval())
		}
	}
	return out
}

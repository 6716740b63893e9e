package server

import (
	"errors"

	"github.com/postgate/postgate/internal/gatesrv/auth"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/executor"
	"github.com/postgate/postgate/internal/gatesrv/sqlvalidator"
)

// ErrorCode maps an error value to its machine-readable code. This is the
// single mapper at the HTTP boundary; every error bubbles here as a value
// and nothing is swallowed on the way.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, sqlvalidator.ErrValidation):
		return "PARSE_ERROR"
	case errors.Is(err, executor.ErrRowLimitExceeded):
		return "ROW_LIMIT_EXCEEDED"
	case errors.Is(err, executor.ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, auth.ErrTenantNotFound):
		return "DATABASE_NOT_FOUND"
	case errors.Is(err, auth.ErrAuth):
		return "UNAUTHORIZED"
	case errors.Is(err, dberror.ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, executor.ErrDatabase), errors.Is(err, dberror.ErrDatabase):
		return "DATABASE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

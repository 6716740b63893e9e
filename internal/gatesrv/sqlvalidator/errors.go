package sqlvalidator

import (
	"net/http"

	"github.com/postgate/postgate/internal/common/apperrors"
)

// Base validation error. All validation failures are client errors.
var (
	ErrValidation apperrors.Error = apperrors.New("invalid query").SetStatusCode(http.StatusBadRequest)
)

var (
	ErrSyntax              apperrors.Error = ErrValidation.New("failed to parse SQL")
	ErrEmptyQuery          apperrors.Error = ErrValidation.New("empty query")
	ErrMultipleStatements  apperrors.Error = ErrValidation.New("multiple statements not allowed")
	ErrUnsupportedStmt     apperrors.Error = ErrValidation.New("unsupported statement type")
	ErrOperationNotAllowed apperrors.Error = ErrValidation.New("operation is not allowed")
	ErrQualifiedName       apperrors.Error = ErrValidation.New("schema-qualified names are not allowed")
	ErrSystemObject        apperrors.Error = ErrValidation.New("system object access is not allowed")
)

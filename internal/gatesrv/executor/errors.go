package executor

import (
	"net/http"

	"github.com/postgate/postgate/internal/common/apperrors"
)

var (
	ErrExec apperrors.Error = apperrors.New("execution error").SetStatusCode(http.StatusInternalServerError)

	// ErrDatabase covers SQL-level failures raised during execution,
	// including syntax and constraint errors from the backend.
	ErrDatabase apperrors.Error = ErrExec.New("database error").SetStatusCode(http.StatusInternalServerError)

	// ErrTimeout is returned when the server-side statement timeout fires.
	ErrTimeout apperrors.Error = ErrExec.New("query timeout").SetStatusCode(http.StatusGatewayTimeout)

	// ErrRowLimitExceeded is returned when the result stream exceeds the
	// tenant's row cap.
	ErrRowLimitExceeded apperrors.Error = ErrExec.New("row limit exceeded").SetStatusCode(http.StatusBadRequest)
)

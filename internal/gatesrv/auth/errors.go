package auth

import (
	"net/http"

	"github.com/postgate/postgate/internal/common/apperrors"
)

var (
	ErrAuth apperrors.Error = apperrors.New("auth error").SetStatusCode(http.StatusUnauthorized)

	// ErrUnauthorized covers a missing or malformed Authorization header, a
	// secret of the wrong shape, and an unknown token. The cases are
	// deliberately indistinguishable to the client.
	ErrUnauthorized apperrors.Error = ErrAuth.New("invalid or missing token")

	// ErrTenantNotFound is returned when a token resolves but its tenant has
	// been deleted concurrently.
	ErrTenantNotFound apperrors.Error = ErrAuth.New("database not found").SetStatusCode(http.StatusNotFound)
)

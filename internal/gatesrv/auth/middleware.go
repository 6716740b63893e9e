// Package auth authenticates requests by bearer token. The secret is never
// stored or logged; its SHA-256 hash is the lookup key into the metadata
// store, and the resolved token+tenant pair is composed into the policy
// attached to the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/httpx"
	"github.com/postgate/postgate/internal/gatesrv/db"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/token"
)

// Middleware returns the bearer-token authentication middleware over the
// given store.
func Middleware(store db.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := Authenticate(r.Context(), store, r.Header.Get("Authorization"))
			if err != nil {
				switch {
				case errors.Is(err, ErrTenantNotFound):
					(&httpx.Error{
						Description: err.Error(),
						Code:        "DATABASE_NOT_FOUND",
						StatusCode:  http.StatusNotFound,
					}).Send(w)
				case errors.Is(err, ErrUnauthorized):
					httpx.ErrUnAuthorized(err.Error()).Send(w)
				default:
					// Store failures are not the caller's fault.
					httpx.ErrApplicationError().Send(w)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate resolves the Authorization header value to a policy and
// returns a context carrying it.
func Authenticate(ctx context.Context, store db.Store, header string) (context.Context, apperrors.Error) {
	secret, err := extractSecret(header)
	if err != nil {
		return ctx, err
	}

	tok, tenant, lookupErr := store.GetTokenByHash(ctx, token.Hash(secret))
	if lookupErr != nil {
		if errors.Is(lookupErr, dberror.ErrNotFound) {
			log.Ctx(ctx).Info().Msg("unknown token")
			return ctx, ErrUnauthorized
		}
		log.Ctx(ctx).Error().Str("detail", lookupErr.ErrorAll()).Msg("token lookup failed")
		return ctx, ErrAuth.Msg("unable to authenticate request").SetStatusCode(http.StatusInternalServerError)
	}
	if tenant == nil {
		return ctx, ErrTenantNotFound
	}

	policy := &gatecommon.Policy{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		TokenID:    tok.ID,
		Backend:    tenant.Backend,
		MaxRows:    tenant.MaxRows,
		Operations: tok.OperationSet(),
	}
	return gatecommon.WithPolicy(ctx, policy), nil
}

// extractSecret parses the Authorization header. Only the Bearer scheme is
// accepted, and the secret must have the exact token shape. A malformed
// secret is indistinguishable from an unknown one, so the header cannot be
// used to probe the token format.
func extractSecret(header string) (string, apperrors.Error) {
	if header == "" {
		return "", ErrUnauthorized.Msg("missing authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthorized
	}
	secret := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if !token.IsValidFormat(secret) {
		return "", ErrUnauthorized
	}
	return secret, nil
}

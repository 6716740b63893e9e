// Package server assembles the HTTP surface of the gateway: the router, the
// two endpoints, and the middleware chain. A query request passes through
// authentication, validation, and execution in order; every failure is a
// value mapped once, here at the boundary, into the JSON error envelope.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/httpx"
	commonmiddleware "github.com/postgate/postgate/internal/common/middleware"
	"github.com/postgate/postgate/internal/gatesrv/auth"
	"github.com/postgate/postgate/internal/gatesrv/config"
	"github.com/postgate/postgate/internal/gatesrv/db"
	"github.com/postgate/postgate/internal/gatesrv/executor"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/sqlvalidator"
)

// QueryExecutor runs a validated statement under a policy. Satisfied by
// *executor.Executor; tests substitute stubs.
type QueryExecutor interface {
	Execute(ctx context.Context, policy *gatecommon.Policy, parsed *sqlvalidator.ParsedQuery, params []any) (*executor.QueryResult, apperrors.Error)
}

// GateServer is the postgate HTTP server.
type GateServer struct {
	Router   *chi.Mux
	store    db.Store
	executor QueryExecutor
	validate *validator.Validate
}

// CreateNewServer builds a GateServer over the given store and executor.
func CreateNewServer(store db.Store, exec QueryExecutor) (*GateServer, error) {
	s := &GateServer{
		Router:   chi.NewRouter(),
		store:    store,
		executor: exec,
		validate: validator.New(),
	}
	httpx.SetErrorCoder(ErrorCode)
	return s, nil
}

// MountHandlers installs the middleware chain and routes.
func (s *GateServer) MountHandlers() {
	cfg := config.Config()

	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if cfg.Server.HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Authorization"},
		}))
	}

	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrNotFound().Send(w)
	})
	s.Router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrMethodNotAllowed().Send(w)
	})

	s.Router.Get("/health", s.getHealth)

	s.Router.Group(func(r chi.Router) {
		// The statement timeout is enforced server-side; this outer bound
		// only catches requests wedged outside the database.
		r.Use(commonmiddleware.SetTimeout(cfg.Limits.GetQueryTimeout() + 10*time.Second))
		r.Use(limitBody(cfg.Server.MaxRequestBodySize))
		r.Use(auth.Middleware(s.store))
		r.Post("/query", httpx.WrapHttpRsp(s.queryHandler))
	})
}

// getHealth reports liveness. No auth.
func (s *GateServer) getHealth(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// limitBody bounds the request body size before any parsing happens.
func limitBody(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}

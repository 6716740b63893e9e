// Package httpx provides HTTP request/response handling utilities for
// postgate. It parses JSON request bodies, writes JSON responses, and owns
// the error envelope returned to clients.
package httpx

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/apperrors"
)

// Response represents an HTTP response with a status code and a JSON body.
type Response struct {
	StatusCode int
	Response   any
}

// RequestHandler is the handler signature used by postgate endpoints.
// Returning an error produces the error envelope via the boundary mapper.
type RequestHandler func(r *http.Request) (*Response, error)

// ErrorCoder assigns a machine-readable error code to an error. The server
// installs its mapper here so the envelope carries the taxonomy codes.
type ErrorCoder func(err error) string

var errorCoder ErrorCoder = func(error) string { return "INTERNAL_ERROR" }

// SetErrorCoder installs the boundary error-code mapper. Must be called once
// during server construction, before requests are served.
func SetErrorCoder(f ErrorCoder) {
	if f != nil {
		errorCoder = f
	}
}

// WrapHttpRsp adapts a RequestHandler into an http.HandlerFunc with
// standardized success and error handling.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
				return
			}
			if appErr, ok := err.(apperrors.Error); ok {
				log.Ctx(r.Context()).Error().Str("detail", appErr.ErrorAll()).Msg("request failed")
				statusCode := appErr.StatusCode()
				if statusCode == 0 {
					statusCode = http.StatusInternalServerError
				}
				httperror := &Error{
					StatusCode:  statusCode,
					Code:        errorCoder(appErr),
					Description: appErr.Error(),
				}
				httperror.Send(w)
				return
			}
			log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
			ErrApplicationError().Send(w)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
	}
}

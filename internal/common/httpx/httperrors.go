package httpx

import (
	"encoding/json"
	"net/http"
)

// Error represents an HTTP error response with a status code, a
// machine-readable code, and a human-readable description.
type Error struct {
	Description string `json:"error"`
	Code        string `json:"code"`
	StatusCode  int    `json:"-"`
}

// Send writes the error envelope to the provided ResponseWriter.
// If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(e)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"unable to encode error","code":"INTERNAL_ERROR"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

// Error returns the error description.
func (e *Error) Error() string {
	return e.Description
}

// ErrApplicationError returns an error for application-level failures.
func ErrApplicationError(msg ...string) *Error {
	s := "unable to process request"
	if len(msg) > 0 {
		s = msg[0]
	}
	return &Error{
		Description: s,
		Code:        "INTERNAL_ERROR",
		StatusCode:  http.StatusInternalServerError,
	}
}

// ErrUnAuthorized returns an error for unauthorized requests.
func ErrUnAuthorized(msg ...string) *Error {
	s := "unable to authenticate request"
	if len(msg) > 0 {
		s = msg[0]
	}
	return &Error{
		Description: s,
		Code:        "UNAUTHORIZED",
		StatusCode:  http.StatusUnauthorized,
	}
}

// ErrUnableToParseReqData returns an error when the request body cannot be
// parsed.
func ErrUnableToParseReqData() *Error {
	return &Error{
		Description: "unable to parse request data",
		Code:        "PARSE_ERROR",
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrUnsupportedContentType returns an error when the request does not carry
// an application/json body.
func ErrUnsupportedContentType() *Error {
	return &Error{
		Description: "Content-Type must be application/json",
		Code:        "PARSE_ERROR",
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrNotFound returns an error for unknown endpoints.
func ErrNotFound() *Error {
	return &Error{
		Description: "not found",
		Code:        "NOT_FOUND",
		StatusCode:  http.StatusNotFound,
	}
}

// ErrMethodNotAllowed returns an error for unsupported HTTP methods.
func ErrMethodNotAllowed() *Error {
	return &Error{
		Description: "method not allowed",
		Code:        "METHOD_NOT_ALLOWED",
		StatusCode:  http.StatusMethodNotAllowed,
	}
}

// ErrRequestTimeout returns an error for request timeouts.
func ErrRequestTimeout() *Error {
	return &Error{
		Description: "request timed out",
		Code:        "TIMEOUT",
		StatusCode:  http.StatusGatewayTimeout,
	}
}

// ErrRequestTooLarge returns an error when the request body exceeds the
// configured size limit.
func ErrRequestTooLarge() *Error {
	return &Error{
		Description: "request body too large",
		Code:        "PARSE_ERROR",
		StatusCode:  http.StatusRequestEntityTooLarge,
	}
}

package apperrors

import (
	"errors"
	"strings"
)

// appError is the concrete implementation behind the Error interface.
type appError struct {
	msg        string  // primary error message
	base       error   // base error for errors.Is/As compatibility
	causes     []error // additional wrapped causes
	statuscode int     // HTTP status code
}

// Error returns the primary message. Causes are not included; use ErrorAll
// when writing logs.
func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every wrapped cause. Intended for
// structured logs, never for client responses.
func (e *appError) ErrorAll() string {
	if len(e.causes) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.causes {
		if err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the base error for compatibility with errors.Is / errors.As.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all wrapped causes in the order they were added.
func (e *appError) UnwrapAll() []error {
	return e.causes
}

// New derives a fresh sentinel from the current error. The result inherits
// the status code, wraps nothing beyond the template, and is intended for
// package-level sentinel declarations.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
	}
}

// Msg creates a new error with the given message, wrapping the original.
func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		causes:     append([]error{e}, e.causes...),
		statuscode: e.statuscode,
	}
}

// MsgErr creates a new error with the given message and additional causes.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:        msg,
		base:       e,
		causes:     append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// Err attaches causes to the current error, keeping its message.
func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:        e.msg,
		base:       e,
		causes:     append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// SetStatusCode returns a copy with the given HTTP status code. The original
// error is unchanged.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

// StatusCode returns the HTTP status code for this error.
func (e *appError) StatusCode() int {
	return e.statuscode
}

// Is reports whether this error, its base, or any wrapped cause matches the
// target. This lets errors.Is traverse both the derivation chain and the
// attached causes.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.causes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root-level error with the given message. Packages derive
// their sentinel hierarchy from a root created here.
func New(msg string) Error {
	return &appError{msg: msg}
}

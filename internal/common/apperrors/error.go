// Package apperrors provides the application error system used across
// postgate. Errors carry an HTTP status code, support wrapping additional
// causes, and remain compatible with errors.Is / errors.As so components can
// define sentinel errors and the HTTP boundary can map them to responses.
package apperrors

// Error is the interface implemented by all postgate application errors.
// It extends the standard error interface with status code management and
// error chaining. Methods return Error to support chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // derives a new sentinel from the current one
	Msg(msg string) Error                  // new error with message, wrapping the original
	MsgErr(msg string, err ...error) Error // new error with message, wrapping extra causes
	Err(err ...error) Error                // attaches causes, keeping the original message
	SetStatusCode(int) Error               // returns a copy with the given HTTP status code
	StatusCode() int                       // the HTTP status code for this error
	ErrorAll() string                      // message including all wrapped causes, for logs
	UnwrapAll() []error                    // all wrapped causes
}

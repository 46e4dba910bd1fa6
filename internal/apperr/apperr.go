// Package apperr defines the wire-facing error kinds the command handler
// maps every failure into: BadRequest, NotFound, ServerError.
// Success carries no error value.
package apperr

import "errors"

// Kind classifies a failure for status-code mapping.
type Kind int

const (
	// KindBadRequest covers parse errors, invalid arguments, sandbox
	// violations, and SAVE-without-prior-file-context.
	KindBadRequest Kind = iota
	// KindNotFound covers EDIT with no matching record.
	KindNotFound
	// KindServerError covers I/O failures and unexpected internal errors.
	KindServerError
)

// Error wraps an underlying cause with a wire-facing Kind.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// BadRequest builds a KindBadRequest error.
func BadRequest(msg string) error { return &Error{Kind: KindBadRequest, msg: msg} }

// BadRequestf wraps an existing error as KindBadRequest.
func BadRequestf(msg string, err error) error {
	return &Error{Kind: KindBadRequest, msg: msg, err: err}
}

// NotFound builds a KindNotFound error.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, msg: msg} }

// ServerError wraps an existing error as KindServerError.
func ServerError(msg string, err error) error {
	return &Error{Kind: KindServerError, msg: msg, err: err}
}

// KindOf extracts the Kind from err, defaulting to KindServerError for any
// error that was not raised through this package (an unexpected internal
// failure should never leak to the client as a 400/404).
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindServerError
}

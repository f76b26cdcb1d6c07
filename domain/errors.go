package domain

import "fmt"

// ErrorKind classifies a failure so the transport layer can pick a status
// code without inspecting message text.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuth
	KindNotFound
	KindConflict
	KindInternal
)

// Error is the single error type crossing component boundaries. Unexpected
// store failures are wrapped with KindInternal so callers never see driver
// error types.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError reports malformed or out-of-range input.
func ValidationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// AuthError reports missing, invalid or expired credentials.
func AuthError(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

// NotFoundError reports a record that is absent or not owned by the caller.
func NotFoundError(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// ConflictError reports a uniqueness violation such as a duplicate email.
func ConflictError(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// InternalError wraps an unexpected failure from a collaborator.
func InternalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not a *Error.
func KindOf(err error) ErrorKind {
	if de, ok := err.(*Error); ok {
		return de.Kind
	}
	return KindInternal
}

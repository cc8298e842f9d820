package social

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes social store errors.
type ErrorCode string

const (
	// CodeUnauthenticated indicates a toggle without a viewer.
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// CodeInvalidInput indicates a missing target or a self-follow.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeBackendWriteFailed indicates the backend write failed or timed
	// out after retries; the optimistic change was rolled back.
	CodeBackendWriteFailed ErrorCode = "BACKEND_WRITE_FAILED"
)

// Error is returned by toggles and carried by failed Ops.
type Error struct {
	Code    ErrorCode
	Message string

	// Kind is "follow" or "like" when the error concerns a write.
	Kind string

	// Target is the followed profile or liked session.
	Target string

	// Err is the backend cause for CodeBackendWriteFailed.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.Kind, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the backend cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnauthenticated is returned when a toggle has no viewer.
var ErrUnauthenticated = &Error{Code: CodeUnauthenticated, Message: "no authenticated viewer"}

// ErrClosed is returned by toggles on a closed store.
var ErrClosed = errors.New("social store closed")

// IsUnauthenticated reports whether err is an unauthenticated error.
// Uses errors.As to handle wrapped errors.
func IsUnauthenticated(err error) bool {
	return hasCode(err, CodeUnauthenticated)
}

// IsInvalidInput reports whether err is an invalid input error.
func IsInvalidInput(err error) bool {
	return hasCode(err, CodeInvalidInput)
}

// IsBackendWriteFailed reports whether err is a rolled back write.
func IsBackendWriteFailed(err error) bool {
	return hasCode(err, CodeBackendWriteFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func invalidInput(kind, msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg, Kind: kind}
}

func writeFailed(kind, target string, cause error) *Error {
	return &Error{
		Code:    CodeBackendWriteFailed,
		Message: "backend write failed, optimistic change rolled back",
		Kind:    kind,
		Target:  target,
		Err:     cause,
	}
}

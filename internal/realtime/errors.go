package realtime

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes realtime errors.
type ErrorCode string

const (
	// CodeUnauthenticated indicates a subscribe or mark-read without a viewer.
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// CodeViewerMismatch indicates a subscribe for a viewer other than the
	// one already subscribed.
	CodeViewerMismatch ErrorCode = "VIEWER_MISMATCH"
)

// Error is returned by Counters operations.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrUnauthenticated is returned when no viewer is available.
var ErrUnauthenticated = &Error{Code: CodeUnauthenticated, Message: "no authenticated viewer"}

// IsViewerMismatch reports whether err is a viewer mismatch.
// Uses errors.As to handle wrapped errors.
func IsViewerMismatch(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == CodeViewerMismatch
	}
	return false
}

func viewerMismatch(current, requested string) *Error {
	return &Error{
		Code:    CodeViewerMismatch,
		Message: fmt.Sprintf("already subscribed for %s, cannot subscribe for %s", current, requested),
	}
}

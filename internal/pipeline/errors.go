package pipeline

import "fmt"

// Kind classifies a pipeline failure for the request boundary.
type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindQuotaExceeded Kind = "QUOTA_EXCEEDED"
	KindProvider      Kind = "PROVIDER_ERROR"
	KindInternal      Kind = "INTERNAL_ERROR"
)

// Error is the typed failure surfaced to the caller. Transient failures never
// reach this type; they are resolved inside the retry loops.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pipeline: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("pipeline: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

package streams

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamNotFound is returned when a stream cannot be located.
	ErrStreamNotFound = errors.New("streams: not found")
	// ErrVersionConflict is returned when a conditional update loses the
	// race against a concurrent operation on the same stream.
	ErrVersionConflict = errors.New("streams: version conflict")
	// ErrNilStream is returned when persisting a nil stream.
	ErrNilStream = errors.New("streams: nil stream")
)

// ValidationError reports a precondition, state, or authorization violation.
// The request must change before a retry can succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "streams: " + e.Reason
	}
	return fmt.Sprintf("streams: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientBalanceError reports that an account cannot cover a requested
// amount. Carries both sides so the caller can self-correct.
type InsufficientBalanceError struct {
	AccountID string
	Required  float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("streams: insufficient balance on %s: required %.6f, available %.6f",
		e.AccountID, e.Required, e.Available)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsInsufficientBalance reports whether err is a balance shortfall.
func IsInsufficientBalance(err error) bool {
	var i *InsufficientBalanceError
	return errors.As(err, &i)
}

package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrHoldNotFound is returned when no hold exists for a stream.
	ErrHoldNotFound = errors.New("ledger: stream hold not found")
	// ErrHoldReleased is returned when releasing an already-released hold.
	ErrHoldReleased = errors.New("ledger: stream hold already released")
	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
)

// InsufficientFundsError reports that an account cannot cover a movement.
type InsufficientFundsError struct {
	AccountID string
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient funds on %s: required %.6f, available %.6f",
		e.AccountID, e.Required, e.Available)
}

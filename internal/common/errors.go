// Package common holds the errors, retry loop and logging setup shared by the
// gateways, the processor and the CLI.
package common

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLedgerRejected wraps every non-2xx answer from the ledger.
	ErrLedgerRejected = errors.New("ledger rejected transaction")
	// ErrSourceConnection wraps failures talking to the brokerage.
	ErrSourceConnection = errors.New("brokerage connection failed")
	// ErrUnauthorized means credentials or session were refused.
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message meant for the operator next to the underlying cause.
// main prints UserMessage alone when it is set.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with an operator-facing message.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// IsRetryable reports whether err was marked retryable by a gateway, or is a
// rate limit or deadline. Unmarked errors are not retryable.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrRateLimit), errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var retryable *RetryableError
	return errors.As(err, &retryable) && retryable.Retryable
}

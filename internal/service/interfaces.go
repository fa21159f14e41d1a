// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/trsync/internal/model"
)

// FeedSource retrieves the complete raw transaction feed for one brokerage account.
type FeedSource interface {
	Fetch(ctx context.Context) ([]model.RawTransaction, error)
}

// LedgerGateway pushes a single transaction to the accounting system.
// It returns the ledger's identifier for the stored entry.
type LedgerGateway interface {
	Push(ctx context.Context, payload model.LedgerPayload) (string, error)
}

// MarkerStore persists the legId of the last transaction pushed to the ledger.
// An empty string means no run has completed yet. Implementations are not
// safe for concurrent runs against the same marker.
type MarkerStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, legID string) error
}

// MarkerResetter is implemented by marker stores that can forget their marker.
type MarkerResetter interface {
	Reset(ctx context.Context) error
}

// ProgressReporter receives push progress for display.
type ProgressReporter interface {
	Start(total int)
	Advance()
	Finish()
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Package engine mirrors the unseen tail of a brokerage feed into the ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/trsync/internal/common"
	"github.com/Veraticus/trsync/internal/model"
	"github.com/Veraticus/trsync/internal/service"
)

// ErrNoMarkerStore is returned when a processor is built without a marker store.
var ErrNoMarkerStore = errors.New("marker store is required")

// Config holds processor options.
type Config struct {
	// Currency drops feed entries in any other currency. Empty keeps everything.
	Currency string
	// DryRun classifies the pending tail without pushing or moving the marker.
	DryRun bool
}

// Pushed records one transaction accepted by the ledger.
type Pushed struct {
	LegID    string
	LedgerID string
}

// RunResult summarizes one processor run.
type RunResult struct {
	MarkerBefore string
	// MarkerAfter is the marker at the end of the run. For dry runs it is the
	// marker a real run would have written.
	MarkerAfter  string
	Pushed       []Pushed
	Planned      []model.ClassifiedTransaction
	Filtered     FilterStats
	MarkerFound  bool
	Bootstrapped bool
	DryRun       bool
}

// MarkerChanged reports whether the run moved the marker.
func (r *RunResult) MarkerChanged() bool {
	return r.MarkerAfter != r.MarkerBefore
}

// Option configures a Processor.
type Option func(*Processor)

// WithProgress reports push progress to reporter.
func WithProgress(reporter service.ProgressReporter) Option {
	return func(p *Processor) {
		p.progress = reporter
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor runs the resume scan, classification and pushes for one account.
type Processor struct {
	classifier Classifier
	ledger     service.LedgerGateway
	markers    service.MarkerStore
	progress   service.ProgressReporter
	logger     *slog.Logger
	config     Config
}

// New creates a processor. The ledger may be nil for dry runs.
func New(classifier Classifier, ledger service.LedgerGateway, markers service.MarkerStore, config Config, opts ...Option) *Processor {
	p := &Processor{
		classifier: classifier,
		ledger:     ledger,
		markers:    markers,
		config:     config,
		progress:   noProgress{},
		logger:     common.Component("engine"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one snapshot of the feed.
//
// Everything after the stored marker is classified first; a single
// classification failure aborts the run before anything is pushed. Pushes
// then happen in order. If a push fails the marker still advances to the
// last accepted transaction, so a transaction is never pushed twice.
func (p *Processor) Run(ctx context.Context, feed []model.RawTransaction) (*RunResult, error) {
	if p.markers == nil {
		return nil, ErrNoMarkerStore
	}

	marker, err := p.markers.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read marker: %w", err)
	}

	ordered, stats := prepare(feed, p.config.Currency)
	result := &RunResult{
		MarkerBefore: marker,
		MarkerAfter:  marker,
		Filtered:     stats,
		DryRun:       p.config.DryRun,
	}

	p.logger.Info("Processing feed",
		"entries", stats.Total,
		"kept", stats.Kept,
		"dropped_currency", stats.Currency,
		"dropped_vault_inflow", stats.VaultInflow,
		"dropped_declined", stats.Declined,
		"marker", marker)

	pending, last, found := scan(ordered, marker)
	result.MarkerFound = found

	if !found {
		if marker != "" {
			p.logger.Warn("Stored marker not found in feed, starting over from the latest transaction",
				"marker", marker,
				"latest", last)
		}
		if last == "" {
			p.logger.Info("Feed is empty, marker unchanged")
			return result, nil
		}
		result.Bootstrapped = true
		return result, p.advance(ctx, result, last)
	}

	if len(pending) == 0 {
		p.logger.Info("No new transactions")
		return result, nil
	}

	planned, err := p.plan(pending)
	if err != nil {
		return result, err
	}
	result.Planned = planned

	if p.config.DryRun {
		result.MarkerAfter = planned[len(planned)-1].LegID
		p.logger.Info("Dry run, nothing pushed", "planned", len(planned))
		return result, nil
	}

	pushErr := p.push(ctx, planned, result)

	if len(result.Pushed) > 0 {
		if err := p.advance(ctx, result, result.Pushed[len(result.Pushed)-1].LegID); err != nil {
			return result, errors.Join(pushErr, err)
		}
	}

	return result, pushErr
}

func (p *Processor) plan(pending []model.RawTransaction) ([]model.ClassifiedTransaction, error) {
	planned := make([]model.ClassifiedTransaction, 0, len(pending))
	for _, raw := range pending {
		tx, err := p.classifier.Classify(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to classify transaction: %w", err)
		}
		planned = append(planned, tx)
	}
	return planned, nil
}

func (p *Processor) push(ctx context.Context, planned []model.ClassifiedTransaction, result *RunResult) error {
	if p.ledger == nil {
		return fmt.Errorf("%w: no ledger gateway configured", common.ErrInvalidConfig)
	}

	p.progress.Start(len(planned))
	defer p.progress.Finish()

	for _, tx := range planned {
		if err := ctx.Err(); err != nil {
			return err
		}

		ledgerID, err := p.ledger.Push(ctx, tx.Payload())
		if err != nil {
			p.logger.Error("Push failed",
				"leg_id", tx.LegID,
				"pushed", len(result.Pushed),
				"retryable", common.IsRetryable(err),
				"error", err)
			return fmt.Errorf("failed to push transaction %s: %w", tx.LegID, err)
		}

		result.Pushed = append(result.Pushed, Pushed{LegID: tx.LegID, LedgerID: ledgerID})
		p.progress.Advance()

		p.logger.Debug("Pushed transaction",
			"leg_id", tx.LegID,
			"ledger_id", ledgerID,
			"kind", tx.Kind,
			"amount", tx.Amount.Abs().String(),
			"date", tx.Date)
	}

	return nil
}

func (p *Processor) advance(ctx context.Context, result *RunResult, legID string) error {
	if p.config.DryRun {
		result.MarkerAfter = legID
		return nil
	}
	if legID == result.MarkerBefore {
		return nil
	}
	// Persist with a fresh context so a cancelled run still records what it pushed.
	if err := p.markers.Set(context.WithoutCancel(ctx), legID); err != nil {
		return fmt.Errorf("failed to store marker %s: %w", legID, err)
	}
	result.MarkerAfter = legID
	p.logger.Info("Marker advanced", "from", result.MarkerBefore, "to", legID)
	return nil
}

type noProgress struct{}

func (noProgress) Start(int) {}
func (noProgress) Advance()  {}
func (noProgress) Finish()   {}

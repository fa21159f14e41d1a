// Package feed builds brokerage feeds for tests.
//
// Example usage:
//
//	txs := feed.NewBuilder().
//		WithCardPayments(5).
//		WithVaultDeposit("v1", "-20").
//		Build()
//
//	path := feed.NewBuilder().WithCardPayments(3).WriteFile(t, dir)
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/trsync/internal/model"
)

// DefaultStart is the creation time of the first generated transaction.
var DefaultStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Builder accumulates feed entries one minute apart, in insertion order.
type Builder struct {
	start    time.Time
	currency string
	txs      []model.RawTransaction
}

// NewBuilder creates an empty EUR feed starting at DefaultStart.
func NewBuilder() *Builder {
	return &Builder{start: DefaultStart, currency: "EUR"}
}

// WithCurrency sets the currency of entries added afterwards.
func (b *Builder) WithCurrency(currency string) *Builder {
	b.currency = currency
	return b
}

// WithTransaction appends tx as is.
func (b *Builder) WithTransaction(tx model.RawTransaction) *Builder {
	b.txs = append(b.txs, tx)
	return b
}

// WithCardPayments appends card payments named t<n>, continuing the numbering
// of entries already in the builder.
func (b *Builder) WithCardPayments(n int) *Builder {
	for k := 0; k < n; k++ {
		i := len(b.txs) + 1
		b.add(fmt.Sprintf("t%d", i), model.TypeCardPayment, fmt.Sprintf("-%d.50", i), nil)
	}
	return b
}

// WithEntry appends a non-vault entry with the given type and major-unit amount.
func (b *Builder) WithEntry(legID string, tag model.TransactionType, amount string) *Builder {
	b.add(legID, tag, amount, nil)
	return b
}

// WithVaultDeposit appends a vault-flagged transfer out of the account.
func (b *Builder) WithVaultDeposit(legID, amount string) *Builder {
	b.add(legID, model.TypeTransfer, amount, json.RawMessage(`true`))
	return b
}

// WithDeclined appends a declined card payment.
func (b *Builder) WithDeclined(legID string) *Builder {
	b.add(legID, model.TypeCardPayment, "-1", nil)
	b.txs[len(b.txs)-1].State = model.StateDeclined
	return b
}

// Build returns a copy of the accumulated feed.
func (b *Builder) Build() []model.RawTransaction {
	out := make([]model.RawTransaction, len(b.txs))
	copy(out, b.txs)
	return out
}

// WriteFile stores the feed as a JSON array in dir and returns its path.
func (b *Builder) WriteFile(t *testing.T, dir string) string {
	t.Helper()

	data, err := json.Marshal(b.txs)
	if err != nil {
		t.Fatalf("failed to encode feed: %v", err)
	}

	path := filepath.Join(dir, "feed.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write feed: %v", err)
	}
	return path
}

func (b *Builder) add(legID string, tag model.TransactionType, amount string, vault json.RawMessage) {
	created := b.start.Add(time.Duration(len(b.txs)) * time.Minute)
	b.txs = append(b.txs, model.RawTransaction{
		LegID:       legID,
		Type:        tag,
		CreatedDate: created.UnixMilli(),
		Description: "Shop",
		Amount:      model.MustAmount(amount, b.currency),
		Category:    "Groceries",
		Currency:    b.currency,
		State:       "EXECUTED",
		Vault:       vault,
	})
}

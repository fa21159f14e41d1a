// Package classify turns raw brokerage transactions into double-entry ledger
// transactions. Everything here is pure; no I/O happens in this package.
package classify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/trsync/internal/model"
	"github.com/shopspring/decimal"
)

// Classification errors.
var (
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	ErrMissingVaultAccount    = errors.New("missing vault account id")
	ErrMissingTopupAccount    = errors.New("missing topup account id")
	ErrMissingWalletAccount   = errors.New("missing wallet account id")
	ErrMissingCounterParty    = errors.New("missing counter-party name")
)

// Accounts holds the ledger account ids used for routing.
type Accounts struct {
	// AccountID is the ledger account mirroring the brokerage account. Required.
	AccountID string
	VaultID   string
	TopupID   string
	WalletID  string
}

// Classifier resolves kind, date, counter-party and routing for feed entries.
type Classifier struct {
	location *time.Location
	accounts Accounts
}

// New creates a classifier. A nil location means time.Local.
func New(accounts Accounts, location *time.Location) *Classifier {
	if location == nil {
		location = time.Local
	}
	return &Classifier{
		accounts: accounts,
		location: location,
	}
}

// ResolveKind maps a type tag and signed amount to a ledger kind.
func ResolveKind(tag model.TransactionType, amount decimal.Decimal) (model.Kind, error) {
	for _, rule := range kindRules {
		if rule.matches(tag, amount) {
			return rule.kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q with amount %s", ErrUnknownTransactionType, tag, amount)
}

// CounterParty returns the merchant name when a named merchant record is
// present, otherwise the raw description.
func CounterParty(raw model.RawTransaction) string {
	if raw.Merchant != nil && strings.TrimSpace(raw.Merchant.Name) != "" {
		return strings.TrimSpace(raw.Merchant.Name)
	}
	return strings.TrimSpace(raw.Description)
}

// NormalizeDate truncates an epoch-millisecond timestamp to a calendar day in loc.
func NormalizeDate(epochMillis int64, loc *time.Location) string {
	return time.UnixMilli(epochMillis).In(loc).Format(model.DateFormat)
}

// Classify resolves a raw transaction completely, routing included.
func (c *Classifier) Classify(raw model.RawTransaction) (model.ClassifiedTransaction, error) {
	amount := raw.RealAmount()

	kind, err := ResolveKind(raw.Type, amount)
	if err != nil {
		return model.ClassifiedTransaction{}, fmt.Errorf("leg %s: %w", raw.LegID, err)
	}

	tx := model.ClassifiedTransaction{
		LegID:        raw.LegID,
		Kind:         kind,
		Date:         NormalizeDate(raw.CreatedDate, c.location),
		CounterParty: CounterParty(raw),
		Amount:       amount,
		Category:     raw.Category,
		IsVault:      raw.IsVault(),
		Currency:     raw.CurrencyCode(),
	}

	source, destination, err := c.Route(tx)
	if err != nil {
		return model.ClassifiedTransaction{}, fmt.Errorf("leg %s: %w", raw.LegID, err)
	}
	if (source.IsByName() && source.Name == "") || (destination.IsByName() && destination.Name == "") {
		return model.ClassifiedTransaction{}, fmt.Errorf("leg %s: %w", raw.LegID, ErrMissingCounterParty)
	}
	tx.Source = source
	tx.Destination = destination

	return tx, nil
}

// Route decides which ledger accounts act as source and destination.
func (c *Classifier) Route(tx model.ClassifiedTransaction) (source, destination model.AccountRef, err error) {
	var r routing
	if inbound(tx) {
		r = routing{source: model.ByName(tx.CounterParty), destination: model.ByID(c.accounts.AccountID)}
	} else {
		r = routing{source: model.ByID(c.accounts.AccountID), destination: model.ByName(tx.CounterParty)}
	}

	for _, rule := range routeRules {
		if !rule.applies(tx) {
			continue
		}
		if err := rule.apply(&r, c.accounts); err != nil {
			return model.AccountRef{}, model.AccountRef{}, fmt.Errorf("%s routing: %w", rule.name, err)
		}
		break
	}

	return r.source, r.destination, nil
}

// Payload classifies raw and renders it in the ledger wire shape.
func (c *Classifier) Payload(raw model.RawTransaction) (model.LedgerPayload, error) {
	tx, err := c.Classify(raw)
	if err != nil {
		return model.LedgerPayload{}, err
	}
	return tx.Payload(), nil
}

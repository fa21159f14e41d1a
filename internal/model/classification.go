// Package model defines the core domain models used throughout the application.
package model

import (
	"github.com/shopspring/decimal"
)

// Kind is the ledger transaction type a brokerage entry resolves to.
type Kind string

// Ledger transaction kinds.
const (
	KindWithdrawal Kind = "withdrawal"
	KindDeposit    Kind = "deposit"
	KindTransfer   Kind = "transfer"
)

// DateFormat is the ledger's calendar date layout.
const DateFormat = "2006-01-02"

// AccountRef points at a ledger account either by id or by name. Exactly one
// of the two fields is set.
type AccountRef struct {
	ID   string
	Name string
}

// ByID references a configured ledger account.
func ByID(id string) AccountRef {
	return AccountRef{ID: id}
}

// ByName references an account the ledger resolves or creates by name.
func ByName(name string) AccountRef {
	return AccountRef{Name: name}
}

// IsByName reports whether the reference is a name lookup.
func (r AccountRef) IsByName() bool {
	return r.ID == ""
}

func (r AccountRef) String() string {
	if r.IsByName() {
		return "name:" + r.Name
	}
	return "id:" + r.ID
}

// ClassifiedTransaction is a brokerage entry resolved into ledger terms.
type ClassifiedTransaction struct {
	Amount       decimal.Decimal
	Source       AccountRef
	Destination  AccountRef
	LegID        string
	Kind         Kind
	Date         string
	CounterParty string
	Category     string
	Currency     string
	IsVault      bool
}

// LedgerPayload is the wire shape of one ledger transaction split.
type LedgerPayload struct {
	Description     string `json:"description"`
	Type            Kind   `json:"type"`
	Amount          string `json:"amount"`
	Category        string `json:"category,omitempty"`
	CategoryName    string `json:"category_name,omitempty"`
	Date            string `json:"date"`
	CurrencyCode    string `json:"currency_code"`
	ExternalID      string `json:"external_id,omitempty"`
	SourceID        string `json:"source_id,omitempty"`
	SourceName      string `json:"source_name,omitempty"`
	DestinationID   string `json:"destination_id,omitempty"`
	DestinationName string `json:"destination_name,omitempty"`
}

// Payload renders the transaction in the ledger's wire shape.
func (t ClassifiedTransaction) Payload() LedgerPayload {
	description := t.Category
	if description == "" {
		// The ledger refuses splits without a description.
		description = t.CounterParty
	}

	p := LedgerPayload{
		Description:  description,
		Type:         t.Kind,
		Amount:       FormatAmount(t.Amount.Abs()),
		Category:     t.Category,
		CategoryName: t.Category,
		Date:         t.Date,
		CurrencyCode: t.Currency,
		ExternalID:   t.LegID,
	}

	if t.Source.IsByName() {
		p.SourceName = t.Source.Name
	} else {
		p.SourceID = t.Source.ID
	}
	if t.Destination.IsByName() {
		p.DestinationName = t.Destination.Name
	} else {
		p.DestinationID = t.Destination.ID
	}

	return p
}

// FormatAmount prints an amount with at least two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	places := int32(defaultFractionDigits)
	if -d.Exponent() > places {
		places = -d.Exponent()
	}
	return d.StringFixed(places)
}

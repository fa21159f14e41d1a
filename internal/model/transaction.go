package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the brokerage's type tag for a feed entry.
type TransactionType string

// Known brokerage type tags.
const (
	TypeCardPayment TransactionType = "CARD_PAYMENT"
	TypeTransfer    TransactionType = "TRANSFER"
	TypeExchange    TransactionType = "EXCHANGE"
	TypeCardRefund  TransactionType = "CARD_REFUND"
	TypeTopUp       TransactionType = "TOPUP"
	TypeATM         TransactionType = "ATM"
)

// StateDeclined marks a feed entry that never settled.
const StateDeclined = "DECLINED"

// defaultFractionDigits applies to minor-unit amounts that do not say otherwise.
const defaultFractionDigits = 2

// Merchant is the optional merchant record attached to card transactions.
type Merchant struct {
	Name string `json:"name"`
}

// Amount is a signed monetary amount. The feed delivers it either as a plain
// number in major units or as an object holding minor units.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// NewAmount builds an amount from a major-unit string such as "-12.50".
func NewAmount(value, currency string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// MustAmount is NewAmount for literals known to be valid.
func MustAmount(value, currency string) Amount {
	a, err := NewAmount(value, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// UnmarshalJSON accepts `-12.5`, `"-12.5"` or
// `{"value": -1250, "currency": "EUR", "fractionDigits": 2}`.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	if data[0] != '{' {
		var d decimal.Decimal
		if err := d.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		*a = Amount{Value: d}
		return nil
	}

	var obj struct {
		FractionDigits *int32          `json:"fractionDigits"`
		Currency       string          `json:"currency"`
		Value          json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid amount object: %w", err)
	}

	var minor decimal.Decimal
	if err := minor.UnmarshalJSON(obj.Value); err != nil {
		return fmt.Errorf("invalid amount value: %w", err)
	}

	digits := int32(defaultFractionDigits)
	if obj.FractionDigits != nil {
		digits = *obj.FractionDigits
	}

	*a = Amount{Value: minor.Shift(-digits), Currency: obj.Currency}
	return nil
}

// MarshalJSON writes the amount as a bare decimal number in major units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Value.String()), nil
}

// RawTransaction is one entry of the brokerage feed, exactly as delivered.
type RawTransaction struct {
	Merchant    *Merchant       `json:"merchant,omitempty"`
	LegID       string          `json:"legId"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	State       string          `json:"state,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Vault       json.RawMessage `json:"vault,omitempty"`
	Amount      Amount          `json:"amount"`
	CreatedDate int64           `json:"createdDate"`
}

// RealAmount returns the signed amount in major units.
func (t RawTransaction) RealAmount() decimal.Decimal {
	return t.Amount.Value
}

// CurrencyCode returns the transaction currency, falling back to the amount's own.
func (t RawTransaction) CurrencyCode() string {
	if t.Currency != "" {
		return t.Currency
	}
	return t.Amount.Currency
}

// CreatedAt converts the epoch-millisecond creation date to a time.
func (t RawTransaction) CreatedAt() time.Time {
	return time.UnixMilli(t.CreatedDate)
}

// IsDeclined reports whether the brokerage declined the transaction.
func (t RawTransaction) IsDeclined() bool {
	return t.State == StateDeclined
}

// IsVault reports whether the vault marker is present and truthy.
func (t RawTransaction) IsVault() bool {
	v := bytes.TrimSpace(t.Vault)
	if len(v) == 0 {
		return false
	}

	switch string(v) {
	case "null", "false", "0", `""`, "{}", "[]":
		return false
	}

	return true
}

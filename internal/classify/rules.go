package classify

import (
	"github.com/Veraticus/trsync/internal/model"
	"github.com/shopspring/decimal"
)

// sign restricts a rule to amounts of a given sign.
type sign int

const (
	anySign sign = iota
	negative
	positive
)

func (s sign) matches(amount decimal.Decimal) bool {
	switch s {
	case negative:
		return amount.IsNegative()
	case positive:
		return amount.IsPositive()
	default:
		return true
	}
}

// kindRule maps a set of type tags and an amount sign to a ledger kind.
type kindRule struct {
	kind  model.Kind
	types []model.TransactionType
	sign  sign
}

func (r kindRule) matches(tag model.TransactionType, amount decimal.Decimal) bool {
	if !r.sign.matches(amount) {
		return false
	}
	for _, t := range r.types {
		if t == tag {
			return true
		}
	}
	return false
}

// kindRules is evaluated top to bottom; the first match wins. Withdrawals come
// first, then deposits, then the transfer fallback, so a positive TRANSFER is
// a deposit.
var kindRules = []kindRule{
	{kind: model.KindWithdrawal, types: []model.TransactionType{model.TypeCardPayment}, sign: anySign},
	{kind: model.KindWithdrawal, types: []model.TransactionType{model.TypeExchange}, sign: negative},
	{kind: model.KindDeposit, types: []model.TransactionType{model.TypeTransfer, model.TypeExchange, model.TypeCardRefund}, sign: positive},
	{kind: model.KindTransfer, types: []model.TransactionType{model.TypeTopUp, model.TypeTransfer, model.TypeATM}, sign: anySign},
}

// routing is the account pair being resolved for one transaction.
type routing struct {
	source      model.AccountRef
	destination model.AccountRef
}

// routeRule rewrites one side of the default routing when it applies.
type routeRule struct {
	applies func(tx model.ClassifiedTransaction) bool
	apply   func(r *routing, accounts Accounts) error
	name    string
}

// routeRules is evaluated in order and at most one rule applies. The vault
// rule outranks the top-up and wallet rules.
var routeRules = []routeRule{
	{
		name: "vault",
		applies: func(tx model.ClassifiedTransaction) bool {
			return tx.IsVault
		},
		apply: func(r *routing, accounts Accounts) error {
			if accounts.VaultID == "" {
				return ErrMissingVaultAccount
			}
			// The vault takes the counter-party's by-name slot.
			if r.source.IsByName() {
				r.source = model.ByID(accounts.VaultID)
			} else {
				r.destination = model.ByID(accounts.VaultID)
			}
			return nil
		},
	},
	{
		name: "topup",
		applies: func(tx model.ClassifiedTransaction) bool {
			return tx.Kind == model.KindTransfer && tx.Amount.IsPositive()
		},
		apply: func(r *routing, accounts Accounts) error {
			if accounts.TopupID == "" {
				return ErrMissingTopupAccount
			}
			r.source = model.ByID(accounts.TopupID)
			return nil
		},
	},
	{
		name: "wallet",
		applies: func(tx model.ClassifiedTransaction) bool {
			return tx.Kind == model.KindTransfer && tx.Amount.IsNegative()
		},
		apply: func(r *routing, accounts Accounts) error {
			if accounts.WalletID == "" {
				return ErrMissingWalletAccount
			}
			r.destination = model.ByID(accounts.WalletID)
			return nil
		},
	},
}

// inbound reports whether the known account receives the money.
func inbound(tx model.ClassifiedTransaction) bool {
	switch {
	case tx.Kind == model.KindDeposit:
		return true
	case tx.Kind == model.KindTransfer && tx.Amount.IsPositive():
		return true
	case tx.IsVault && tx.CounterParty == vaultWithdrawalLabel(tx.Currency):
		return true
	default:
		return false
	}
}

// vaultWithdrawalLabel is the description the brokerage gives money coming
// back out of the vault into the main account.
func vaultWithdrawalLabel(currency string) string {
	return "To " + currency
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a deposit or withdrawal. Withdrawals start non_authorized;
// deposits created through the faucet are confirmed immediately.
type Transaction struct {
	ID            string            `json:"id" db:"id"`
	APIKey        string            `json:"api_key" db:"api_key"`
	Type          TransactionType   `json:"type" db:"type"`
	Currency      string            `json:"currency" db:"currency"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Address       *string           `json:"address,omitempty" db:"address"`
	Fee           decimal.Decimal   `json:"fee" db:"fee"`
	PaymentID     *string           `json:"payment_id,omitempty" db:"payment_id"`
	Hash          *string           `json:"hash,omitempty" db:"hash"`
	Confirmations int               `json:"confirmations" db:"confirmations"`
	Status        TransactionStatus `json:"status" db:"status"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty" db:"updated_at"`
}

// Balance is the per (api_key, currency) ledger cell. Available is
// spendable, frozen is reserved against open orders and in-flight
// withdrawals, pending is inbound unconfirmed deposits.
type Balance struct {
	ID        string          `json:"id" db:"id"`
	APIKey    string          `json:"api_key" db:"api_key"`
	Currency  string          `json:"currency" db:"currency"`
	Available decimal.Decimal `json:"available" db:"available"`
	Frozen    decimal.Decimal `json:"frozen" db:"frozen"`
	Pending   decimal.Decimal `json:"pending" db:"pending"`
}

// BalanceDelta is one double-entry increment against a ledger cell field.
type BalanceDelta struct {
	Available decimal.Decimal
	Frozen    decimal.Decimal
	Pending   decimal.Decimal
}

// Add merges another delta into this one.
func (d BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Available: d.Available.Add(other.Available),
		Frozen:    d.Frozen.Add(other.Frozen),
		Pending:   d.Pending.Add(other.Pending),
	}
}

// BalanceIncrements batches all deltas of a single bookkeeping event,
// keyed by currency.
type BalanceIncrements map[string]BalanceDelta

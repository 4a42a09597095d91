// Package interfaces defines the typed store contracts for the four
// collections the executor owns: orders, trades, transactions and balances.
// Lookups that miss return (nil, nil) so callers can map absence to their
// own dialect's error.
package interfaces

import (
	"context"
	"time"

	"github.com/m-kus/testex/internal/models"
	"github.com/shopspring/decimal"
)

// TradeFilters narrows trade listings. Zero values mean "no filter".
type TradeFilters struct {
	OrderNumber string
	Market      string
	Limit       int
	StartAt     *time.Time
	EndAt       *time.Time
}

// TransactionFilters narrows transaction listings. Zero values mean
// "no filter".
type TransactionFilters struct {
	Type     models.TransactionType
	Currency string
	StartAt  *time.Time
	EndAt    *time.Time
}

// OrderRepository persists orders and owns the two atomic order mutations:
// fill application and closing, both find-and-modify-returning-after gated
// on status = opened.
type OrderRepository interface {
	Insert(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, apiKey, id string) (*models.Order, error)
	ListByStatus(ctx context.Context, apiKey string, status models.OrderStatus, market string) ([]models.Order, error)
	ListOpen(ctx context.Context) ([]models.Order, error)

	// ApplyFill atomically increments executed_amount and sets the new
	// volume-weighted average price, status and updated_at. Only open
	// orders match; returns (nil, nil) when no row transitioned.
	ApplyFill(ctx context.Context, id string, fillAmount, averagePrice decimal.Decimal, status models.OrderStatus, updatedAt time.Time) (*models.Order, error)

	// Close transitions an open order to closed and stamps updated_at.
	// Returns (nil, nil) when the order is absent or already closed.
	Close(ctx context.Context, apiKey, id string, updatedAt time.Time) (*models.Order, error)
}

// TradeRepository persists fill events.
type TradeRepository interface {
	Insert(ctx context.Context, trade *models.Trade) error
	List(ctx context.Context, apiKey string, filters TradeFilters) ([]models.Trade, error)
}

// TransactionRepository persists deposits and withdrawals.
type TransactionRepository interface {
	Insert(ctx context.Context, transaction *models.Transaction) error
	List(ctx context.Context, apiKey string, filters TransactionFilters) ([]models.Transaction, error)
	ListUnconfirmed(ctx context.Context) ([]models.Transaction, error)

	// Confirm transitions a transaction to confirmed and stamps
	// updated_at, returning the row after the update.
	Confirm(ctx context.Context, apiKey, id string, updatedAt time.Time) (*models.Transaction, error)
}

// BalanceRepository owns the ledger cells. Increment is the only mutation:
// an atomic field increment with upsert semantics, applied for every
// currency in the batch.
type BalanceRepository interface {
	Get(ctx context.Context, apiKey, currency string) (*models.Balance, error)
	ListByAPIKey(ctx context.Context, apiKey string) ([]models.Balance, error)
	Increment(ctx context.Context, apiKey string, increments models.BalanceIncrements) error
}

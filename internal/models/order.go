package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents one party's intent to buy or sell on a market.
// Direction, market, price and amount are immutable after creation; only
// executed_amount, average_price, status and updated_at change over the
// order's life.
type Order struct {
	ID             string          `json:"id" db:"id"`
	APIKey         string          `json:"api_key" db:"api_key"`
	ExchangeID     string          `json:"exchange_id" db:"exchange_id"`
	Market         string          `json:"market" db:"market"`
	Direction      OrderDirection  `json:"direction" db:"direction"`
	Type           OrderType       `json:"type" db:"type"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	ExecutedAmount decimal.Decimal `json:"executed_amount" db:"executed_amount"`
	AveragePrice   decimal.Decimal `json:"average_price" db:"average_price"`
	BaseCurrency   string          `json:"base_currency" db:"base_currency"`
	MarketCurrency string          `json:"market_currency" db:"market_currency"`
	FeeCurrency    string          `json:"fee_currency" db:"fee_currency"`
	Status         OrderStatus     `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty" db:"updated_at"`

	// Derived fields, computed on read by the owning adapter's ExtendOrder.
	// Never stored.
	Total           decimal.Decimal `json:"total" db:"-"`
	Fee             decimal.Decimal `json:"fee" db:"-"`
	Reserved        decimal.Decimal `json:"reserved" db:"-"`
	ReservedFee     decimal.Decimal `json:"reserved_fee" db:"-"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"-"`
}

// IsOpen reports whether the order can still be filled.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpened
}

// Trade is a single fill event against an order, recorded at the order's
// posted price.
type Trade struct {
	ID          string          `json:"id" db:"id"`
	APIKey      string          `json:"api_key" db:"api_key"`
	OrderNumber string          `json:"order_number" db:"order_number"`
	Direction   OrderDirection  `json:"direction" db:"direction"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Market      string          `json:"market" db:"market"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

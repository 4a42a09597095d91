package models

import "github.com/shopspring/decimal"

func init() {
	// Both exchanges serialize monetary values as bare JSON numbers with
	// exact decimal digits.
	decimal.MarshalJSONWithoutQuotes = true
}

// DecimalScale is the ledger precision: every stored monetary value is
// quantized to 1e-8.
const DecimalScale = 8

// Quantize rounds a monetary value to the ledger scale (half-even, like the
// exchanges do).
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(DecimalScale)
}

// OrderDirection is the side of an order.
type OrderDirection string

const (
	OrderDirectionBuy  OrderDirection = "buy"
	OrderDirectionSell OrderDirection = "sell"
)

// Sign returns +1 for buys and -1 for sells.
func (d OrderDirection) Sign() int {
	if d == OrderDirectionBuy {
		return 1
	}
	return -1
}

// OrderType distinguishes plain limit orders from the Poloniex execution
// flags.
type OrderType string

const (
	OrderTypeLimit OrderType = "limit"
	OrderTypeFOK   OrderType = "fill_or_kill"
	OrderTypeIOC   OrderType = "immediate_or_cancel"
	OrderTypePost  OrderType = "post_only"
)

// OrderTypeFromFlags maps the Poloniex request flags to an order type. The
// first set flag wins; no flags means a plain limit order.
func OrderTypeFromFlags(fillOrKill, immediateOrCancel, postOnly bool) OrderType {
	switch {
	case fillOrKill:
		return OrderTypeFOK
	case immediateOrCancel:
		return OrderTypeIOC
	case postOnly:
		return OrderTypePost
	default:
		return OrderTypeLimit
	}
}

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusOpened OrderStatus = "opened"
	OrderStatusClosed OrderStatus = "closed"
)

// TransactionType is the kind of a funds movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// Sign returns +1 for deposits and -1 for withdrawals.
func (t TransactionType) Sign() int {
	if t == TransactionTypeDeposit {
		return 1
	}
	return -1
}

// TransactionStatus is the transaction lifecycle state.
type TransactionStatus string

const (
	TransactionStatusNonAuthorized TransactionStatus = "non_authorized"
	TransactionStatusCanceled      TransactionStatus = "canceled"
	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusConfirmed     TransactionStatus = "confirmed"
)

// AdapterLogic is the per-exchange capability the executor dispatches on: an
// adapter declares its exchange id and knows how to populate the derived
// order fields (reserved, reserved_fee, fee, total, remaining_amount) per
// its fee model.
type AdapterLogic interface {
	ExchangeID() string
	ExtendOrder(order Order) Order
}

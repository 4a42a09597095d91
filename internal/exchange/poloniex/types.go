// Package poloniex implements the Poloniex v1.0 dialect: signed-body
// authentication with the nonce ladder, the taker/maker fee model and the
// per-command response shapes.
package poloniex

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ID is the exchange identifier orders are tagged with.
const ID = "poloniex"

var (
	// MinTradeTotal is the minimum order notional in BTC.
	MinTradeTotal = decimal.RequireFromString("0.0001")
	// TakerFeePct applies to every simulated fill.
	TakerFeePct = decimal.RequireFromString("0.002")
	// MakerFeePct is only ever reported by returnFeeInfo.
	MakerFeePct = decimal.RequireFromString("0.001")
)

// Order status strings reported by returnOrderStatus.
const (
	StatusOpen            = "Open"
	StatusPartiallyFilled = "Partially filled"
)

// AccountExchange is the only account type the simulation implements.
const AccountExchange = "exchange"

// Error message table. Trading bots pattern-match on these exact strings.
const (
	ErrInvalidCommand           = "Invalid command."
	ErrInvalidAPIKeySecretPair  = "Invalid API key/secret pair."
	ErrInvalidAccount           = "Invalid account parameter."
	ErrInvalidCurrency          = "Invalid currency parameter."
	ErrInvalidStart             = "Invalid start parameter."
	ErrInvalidEnd               = "Invalid end parameter."
	ErrInvalidCurrencyPair      = "Invalid currencyPair parameter."
	ErrInvalidRate              = "Invalid rate parameter."
	ErrInvalidAmount            = "Invalid amount parameter."
	ErrInvalidAddress           = "Invalid address parameter."
	ErrRequiredParameterMissing = "Required parameter missing."
	ErrTotalTooSmall            = "Total must be at least 0.0001."
	ErrInvalidNonce             = "Invalid nonce parameter."
	ErrInvalidOrderNumber       = "Invalid orderNumber parameter."
	ErrOrderNotFound            = "Invalid order number, or you are not the person who placed the order."
	ErrNotImplemented           = "Not implemented yet."
)

// errNotEnoughCurrency interpolates the missing currency.
func errNotEnoughCurrency(currency string) string {
	return fmt.Sprintf("Not enough %s.", currency)
}

// errNonceNotGreater interpolates the rejected and expected nonces.
func errNonceNotGreater(prevNonce, nonce int64) string {
	return fmt.Sprintf("Nonce must be greater than %d. You provided %d.", prevNonce, nonce)
}

// Error is a Poloniex business error. It renders to the
// {"error": message} envelope with HTTP 200.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Response returns the error envelope.
func (e *Error) Response() map[string]string {
	return map[string]string{"error": e.Message}
}

func newError(message string) *Error {
	return &Error{Message: message}
}

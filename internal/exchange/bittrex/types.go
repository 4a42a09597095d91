// Package bittrex implements the Bittrex v1.1 dialect: signed-URL
// authentication, the trading validation ladder, the 0.25% fee model and
// the response formatters.
package bittrex

import (
	"github.com/m-kus/testex/internal/models"
	"github.com/shopspring/decimal"
)

// ID is the exchange identifier orders are tagged with.
const ID = "bittrex"

var (
	// MinTradeTotal is the dust threshold in BTC.
	MinTradeTotal = decimal.RequireFromString("0.001")
	// TradeFeePct is the flat trade fee.
	TradeFeePct = decimal.RequireFromString("0.0025")
)

// Error message table. Trading bots pattern-match on these exact strings.
const (
	ErrMarketNotProvided   = "MARKET_NOT_PROVIDED"
	ErrCurrencyNotProvided = "CURRENCY_NOT_PROVIDED"
	ErrNonceNotProvided    = "NONCE_NOT_PROVIDED"
	ErrAPIKeyNotProvided   = "APIKEY_NOT_PROVIDED"
	ErrAPISignNotProvided  = "APISIGN_NOT_PROVIDED"
	ErrRateNotProvided     = "RATE_NOT_PROVIDED"
	ErrQuantityNotProvided = "QUANTITY_NOT_PROVIDED"
	ErrAPIKeyInvalid       = "APIKEY_INVALID"
	ErrInvalidSignature    = "INVALID_SIGNATURE"
	ErrInvalidMarket       = "INVALID_MARKET"
	ErrInvalidCurrency     = "INVALID_CURRENCY"
	ErrQuantityInvalid     = "QUANTITY_INVALID"
	ErrRateInvalid         = "RATE_INVALID"
	ErrMinTradeNotMet      = "MIN_TRADE_REQUIREMENT_NOT_MET"
	ErrDustTrade           = "DUST_TRADE_DISALLOWED_MIN_VALUE_50K_SAT"
	ErrInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrOrderNotOpen        = "ORDER_NOT_OPEN"
	ErrUUIDNotProvided     = "UUID_NOT_PROVIDED"
	ErrUUIDInvalid         = "UUID_INVALID"
	ErrInvalidOrder        = "INVALID_ORDER"
	ErrAddressGenerating   = "ADDRESS_GENERATING"
	ErrAddressNotProvided  = "ADDRESS_NOT_PROVIDED"
	ErrAddressInvalid      = "ADDRESS_INVALID"
)

// Error is a Bittrex business error carrying a message from the table
// above. It renders to the standard envelope with HTTP 200.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Response returns the error envelope.
func (e *Error) Response() Response {
	return Response{Success: false, Message: e.Message}
}

func newError(message string) *Error {
	return &Error{Message: message}
}

// Response is the envelope every Bittrex endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Result  interface{} `json:"result"`
}

func makeResponse(result interface{}) Response {
	return Response{Success: true, Message: "", Result: result}
}

// orderTypeOf maps an order direction to the wire order type.
func orderTypeOf(direction models.OrderDirection) string {
	if direction == models.OrderDirectionBuy {
		return "BUY_LIMIT"
	}
	return "SELL_LIMIT"
}

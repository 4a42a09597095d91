package poloniex

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/pkg/address"
	"github.com/shopspring/decimal"
)

var (
	globalTradeIDMod = big.NewInt(1 << 32)
	tradeIDMod       = big.NewInt(1 << 20)
)

func btcMarket(currency string) string {
	return "BTC_" + currency
}

func splitCurrencyPair(currencyPair string) (base, market string) {
	parts := strings.SplitN(currencyPair, "_", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func parseTimestamp(timestamp, message string) (time.Time, error) {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return time.Time{}, newError(message)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// parseLimit clamps the trade history page size; anything unparsable or out
// of range falls back to 500, and an explicit 0 means no limit.
func parseLimit(limit string) int {
	value, err := strconv.Atoi(limit)
	if err != nil || value < 0 || value > 10000 {
		return 500
	}
	return value
}

func parseDecimal(value, message string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, newError(ErrRequiredParameterMissing)
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, newError(message)
	}
	return parsed, nil
}

func parseAddress(addr, currency string) (string, error) {
	if addr == "" {
		return "", newError(ErrRequiredParameterMissing)
	}
	if !address.IsValid(addr, currency) {
		return "", newError(ErrInvalidAddress)
	}
	return addr, nil
}

func formatTimestamp(t time.Time) int64 {
	return t.Unix()
}

func formatDatetime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// orderNumber renders a stored id the way the exchange does: the 9-digit
// numbers go out as JSON numbers.
func orderNumber(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// CompleteBalanceView is one returnCompleteBalances cell.
type CompleteBalanceView struct {
	Available decimal.Decimal `json:"available"`
	OnOrders  decimal.Decimal `json:"onOrders"`
	BTCValue  decimal.Decimal `json:"btcValue"`
}

func formatBalance(balance *models.Balance, tickers map[string]TickerInfo) CompleteBalanceView {
	last := tickers[btcMarket(balance.Currency)].Last
	total := balance.Available.Add(balance.Frozen)
	return CompleteBalanceView{
		Available: balance.Available,
		OnOrders:  balance.Frozen,
		BTCValue:  models.Quantize(total.Mul(last)),
	}
}

// DepositView is one returnDepositsWithdrawals deposit row.
type DepositView struct {
	Currency      string          `json:"currency"`
	Address       *string         `json:"address"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
	TxID          *string         `json:"txid"`
	Timestamp     int64           `json:"timestamp"`
	Status        string          `json:"status"`
}

func formatDeposit(transaction *models.Transaction) DepositView {
	status := ""
	if transaction.Status == models.TransactionStatusConfirmed {
		status = "COMPLETE"
	}
	return DepositView{
		Currency:      transaction.Currency,
		Address:       transaction.Address,
		Amount:        transaction.Amount,
		Confirmations: transaction.Confirmations,
		TxID:          transaction.Hash,
		Timestamp:     formatTimestamp(transaction.CreatedAt),
		Status:        status,
	}
}

// WithdrawalView is one returnDepositsWithdrawals withdrawal row.
// IPAddress is always null; request origins are not tracked.
type WithdrawalView struct {
	WithdrawalNumber interface{}     `json:"withdrawalNumber"`
	Currency         string          `json:"currency"`
	Address          *string         `json:"address"`
	Amount           decimal.Decimal `json:"amount"`
	Timestamp        int64           `json:"timestamp"`
	Status           string          `json:"status"`
	IPAddress        *string         `json:"ipAddress"`
}

func formatWithdrawal(transaction *models.Transaction) WithdrawalView {
	status := ""
	if transaction.Status == models.TransactionStatusConfirmed {
		hash := ""
		if transaction.Hash != nil {
			hash = *transaction.Hash
		}
		status = "COMPLETE: " + hash
	}
	return WithdrawalView{
		WithdrawalNumber: orderNumber(transaction.ID),
		Currency:         transaction.Currency,
		Address:          transaction.Address,
		Amount:           transaction.Amount,
		Timestamp:        formatTimestamp(transaction.CreatedAt),
		Status:           status,
	}
}

// OrderView is one returnOpenOrders row.
type OrderView struct {
	OrderNumber interface{}     `json:"orderNumber"`
	Type        string          `json:"type"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	Total       decimal.Decimal `json:"total"`
}

func formatOrder(order *models.Order) OrderView {
	return OrderView{
		OrderNumber: orderNumber(order.ID),
		Type:        string(order.Direction),
		Rate:        order.Price,
		Amount:      order.Amount,
		Total:       order.Total,
	}
}

// OrderStatusView is the returnOrderStatus shape for open orders.
type OrderStatusView struct {
	Status         string          `json:"status"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyPair   string          `json:"currencyPair"`
	Date           string          `json:"date"`
	Total          decimal.Decimal `json:"total"`
	Type           string          `json:"type"`
	StartingAmount decimal.Decimal `json:"startingAmount"`
}

func formatOrderStatus(order *models.Order) OrderStatusView {
	status := StatusOpen
	if order.ExecutedAmount.IsPositive() {
		status = StatusPartiallyFilled
	}
	return OrderStatusView{
		Status:         status,
		Rate:           order.Price,
		Amount:         order.Amount,
		CurrencyPair:   order.Market,
		Date:           formatDatetime(order.CreatedAt),
		Total:          order.Total,
		Type:           string(order.Direction),
		StartingAmount: order.RemainingAmount,
	}
}

// TradeView is one account trade history row. The two trade ids are
// deterministic folds of the trade uuid.
type TradeView struct {
	GlobalTradeID int64           `json:"globalTradeID"`
	TradeID       int64           `json:"tradeID"`
	Date          string          `json:"date"`
	Rate          decimal.Decimal `json:"rate"`
	Amount        decimal.Decimal `json:"amount"`
	Total         decimal.Decimal `json:"total"`
	Fee           decimal.Decimal `json:"fee"`
	OrderNumber   interface{}     `json:"orderNumber"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
}

func formatTrade(trade *models.Trade) TradeView {
	globalTradeID, tradeID := foldTradeID(trade.ID)
	return TradeView{
		GlobalTradeID: globalTradeID,
		TradeID:       tradeID,
		Date:          formatDatetime(trade.CreatedAt),
		Rate:          trade.Price,
		Amount:        trade.Amount,
		Total:         models.Quantize(trade.Price.Mul(trade.Amount)),
		Fee:           TakerFeePct,
		OrderNumber:   orderNumber(trade.OrderNumber),
		Type:          string(trade.Direction),
		Category:      "exchange",
	}
}

// foldTradeID maps a trade uuid to the wire pair: the uuid as an integer
// modulo 2^32 and 2^20.
func foldTradeID(id string) (globalTradeID, tradeID int64) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return 0, 0
	}
	n := new(big.Int).SetBytes(parsed[:])
	globalTradeID = new(big.Int).Mod(n, globalTradeIDMod).Int64()
	tradeID = new(big.Int).Mod(n, tradeIDMod).Int64()
	return globalTradeID, tradeID
}

package poloniex

import (
	"testing"
	"time"

	"github.com/m-kus/testex/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestFoldTradeID(t *testing.T) {
	tests := []struct {
		id            string
		globalTradeID int64
		tradeID       int64
	}{
		{"00000000-0000-0000-0000-000000000001", 1, 1},
		{"ffffffff-ffff-ffff-ffff-ffffffffffff", 4294967295, 1048575},
		{"00000000-0000-0000-0000-000100000000", 0, 0},
		{"not-a-uuid", 0, 0},
	}
	for _, tt := range tests {
		globalTradeID, tradeID := foldTradeID(tt.id)
		assert.Equal(t, tt.globalTradeID, globalTradeID, tt.id)
		assert.Equal(t, tt.tradeID, tradeID, tt.id)
	}
}

func TestSplitCurrencyPair(t *testing.T) {
	base, market := splitCurrencyPair("BTC_XRP")
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "XRP", market)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"10", 10},
		{"0", 0},
		{"10000", 10000},
		{"10001", 500},
		{"-1", 500},
		{"abc", 500},
		{"", 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLimit(tt.input), "limit %q", tt.input)
	}
}

func TestFormatTrade(t *testing.T) {
	createdAt := time.Date(2018, 4, 1, 12, 30, 45, 0, time.UTC)
	trade := models.Trade{
		ID:          "00000000-0000-0000-0000-000000000001",
		OrderNumber: "123456789",
		Direction:   models.OrderDirectionBuy,
		Price:       dec("0.000001"),
		Amount:      dec("200"),
		Market:      "BTC_XRP",
		CreatedAt:   createdAt,
	}

	view := formatTrade(&trade)
	assert.Equal(t, int64(1), view.GlobalTradeID)
	assert.Equal(t, int64(1), view.TradeID)
	assert.Equal(t, "2018-04-01 12:30:45", view.Date)
	assert.True(t, dec("0.0002").Equal(view.Total))
	assert.True(t, TakerFeePct.Equal(view.Fee))
	assert.Equal(t, int64(123456789), view.OrderNumber)
	assert.Equal(t, "buy", view.Type)
	assert.Equal(t, "exchange", view.Category)
}

func TestFormatOrderStatus(t *testing.T) {
	createdAt := time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC)
	order := models.Order{
		ID:        "123",
		Direction: models.OrderDirectionSell,
		Market:    "BTC_XRP",
		Price:     dec("0.000001"),
		Amount:    dec("500"),
		CreatedAt: createdAt,
	}

	view := formatOrderStatus(&order)
	assert.Equal(t, StatusOpen, view.Status)

	order.ExecutedAmount = dec("100")
	view = formatOrderStatus(&order)
	assert.Equal(t, StatusPartiallyFilled, view.Status)
}

func TestFormatWithdrawalStatus(t *testing.T) {
	hash := "deadbeef"
	addr := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	transaction := models.Transaction{
		ID:        "987654321",
		Currency:  "BTC",
		Amount:    dec("0.5"),
		Address:   &addr,
		Hash:      &hash,
		Status:    models.TransactionStatusConfirmed,
		CreatedAt: time.Unix(1522585845, 0).UTC(),
	}

	view := formatWithdrawal(&transaction)
	assert.Equal(t, int64(987654321), view.WithdrawalNumber)
	assert.Equal(t, "COMPLETE: deadbeef", view.Status)
	assert.Equal(t, int64(1522585845), view.Timestamp)
	assert.Nil(t, view.IPAddress)

	transaction.Status = models.TransactionStatusNonAuthorized
	view = formatWithdrawal(&transaction)
	assert.Equal(t, "", view.Status)
}

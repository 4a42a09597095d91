package feed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-kus/testex/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubStreamsPublishedTrades(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	trade := models.Trade{
		ID:          "00000000-0000-0000-0000-000000000001",
		APIKey:      "qwerty",
		OrderNumber: "42",
		Direction:   models.OrderDirectionBuy,
		Price:       decimal.RequireFromString("0.000001"),
		Amount:      decimal.RequireFromString("100"),
		Market:      "BTC-XRP",
		CreatedAt:   time.Now().UTC(),
	}

	// The subscriber registers asynchronously with the upgrade.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subscribers) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(trade)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var received models.Trade
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, trade.ID, received.ID)
	assert.Equal(t, trade.Market, received.Market)
	assert.True(t, trade.Amount.Equal(received.Amount))
}

func TestHubDropsClosedSubscribers(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subscribers) == 0
	}, time.Second, 10*time.Millisecond)

	// Publishing with nobody listening is a no-op.
	hub.Publish(models.Trade{ID: "x"})
}

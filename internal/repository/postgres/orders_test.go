package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/m-kus/testex/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRows = []string{
	"id", "api_key", "exchange_id", "market", "direction", "type", "price", "amount",
	"executed_amount", "average_price", "base_currency", "market_currency", "fee_currency",
	"status", "created_at", "updated_at",
}

func TestOrderApplyFill(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewOrderRepository(sqlxDB)
	now := time.Now().UTC()

	t.Run("open order transitions", func(t *testing.T) {
		rows := sqlmock.NewRows(orderRows).AddRow(
			"42", "qwerty", "bittrex", "BTC-XRP", "buy", "limit", "0.000001", "500",
			"100", "0.000001", "BTC", "XRP", "BTC", "opened", now, now,
		)

		mock.ExpectQuery("UPDATE orders SET executed_amount = executed_amount").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "opened", sqlmock.AnyArg(), "42", "opened").
			WillReturnRows(rows)

		order, err := repo.ApplyFill(context.Background(), "42",
			decimal.RequireFromString("100"), decimal.RequireFromString("0.000001"),
			models.OrderStatusOpened, now)
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.True(t, decimal.RequireFromString("100").Equal(order.ExecutedAmount))
	})

	t.Run("closed order matches no row", func(t *testing.T) {
		mock.ExpectQuery("UPDATE orders SET executed_amount = executed_amount").
			WillReturnRows(sqlmock.NewRows(orderRows))

		order, err := repo.ApplyFill(context.Background(), "42",
			decimal.RequireFromString("100"), decimal.RequireFromString("0.000001"),
			models.OrderStatusOpened, now)
		require.NoError(t, err)
		assert.Nil(t, order)
	})
}

func TestOrderClose(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewOrderRepository(sqlxDB)
	now := time.Now().UTC()

	t.Run("open order closes", func(t *testing.T) {
		rows := sqlmock.NewRows(orderRows).AddRow(
			"42", "qwerty", "bittrex", "BTC-XRP", "buy", "limit", "0.000001", "500",
			"0", "0", "BTC", "XRP", "BTC", "closed", now, now,
		)

		mock.ExpectQuery("UPDATE orders SET status = ").
			WithArgs("closed", sqlmock.AnyArg(), "42", "qwerty", "opened").
			WillReturnRows(rows)

		order, err := repo.Close(context.Background(), "qwerty", "42", now)
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, models.OrderStatusClosed, order.Status)
	})

	t.Run("already closed is a no-op", func(t *testing.T) {
		mock.ExpectQuery("UPDATE orders SET status = ").
			WillReturnRows(sqlmock.NewRows(orderRows))

		order, err := repo.Close(context.Background(), "qwerty", "42", now)
		require.NoError(t, err)
		assert.Nil(t, order)
	})
}

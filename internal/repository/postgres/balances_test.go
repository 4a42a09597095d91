package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/m-kus/testex/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestBalanceGet(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBalanceRepository(sqlxDB)

	t.Run("success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "api_key", "currency", "available", "frozen", "pending"}).
			AddRow("abc", "qwerty", "BTC", "1.5", "0.25", "0")

		mock.ExpectQuery("SELECT (.+) FROM balances WHERE api_key").
			WithArgs("qwerty", "BTC").
			WillReturnRows(rows)

		balance, err := repo.Get(context.Background(), "qwerty", "BTC")
		require.NoError(t, err)
		require.NotNil(t, balance)
		assert.True(t, decimal.RequireFromString("1.5").Equal(balance.Available))
		assert.True(t, decimal.RequireFromString("0.25").Equal(balance.Frozen))
	})

	t.Run("missing row maps to nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM balances WHERE api_key").
			WithArgs("qwerty", "XRP").
			WillReturnError(sql.ErrNoRows)

		balance, err := repo.Get(context.Background(), "qwerty", "XRP")
		require.NoError(t, err)
		assert.Nil(t, balance)
	})
}

func TestBalanceIncrementUpserts(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBalanceRepository(sqlxDB)

	mock.ExpectExec("INSERT INTO balances (.+) ON CONFLICT \\(api_key, currency\\) DO UPDATE SET").
		WithArgs(sqlmock.AnyArg(), "qwerty", "BTC", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Increment(context.Background(), "qwerty", models.BalanceIncrements{
		"BTC": {
			Available: decimal.RequireFromString("-0.5"),
			Frozen:    decimal.RequireFromString("0.5"),
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceIncrementOneStatementPerCurrency(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBalanceRepository(sqlxDB)

	mock.ExpectExec("INSERT INTO balances").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO balances").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Increment(context.Background(), "qwerty", models.BalanceIncrements{
		"BTC": {Available: decimal.RequireFromString("1")},
		"XRP": {Available: decimal.RequireFromString("2")},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBalanceRepository(sqlxDB)

	// Two connection failures, then success: the retry policy absorbs both.
	connFailure := &pq.Error{Code: "08006"}
	mock.ExpectExec("INSERT INTO balances").WillReturnError(connFailure)
	mock.ExpectExec("INSERT INTO balances").WillReturnError(connFailure)
	mock.ExpectExec("INSERT INTO balances").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Increment(context.Background(), "qwerty", models.BalanceIncrements{
		"BTC": {Available: decimal.RequireFromString("1")},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryGivesUpOnPersistentErrors(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBalanceRepository(sqlxDB)

	connFailure := &pq.Error{Code: "08006"}
	mock.ExpectExec("INSERT INTO balances").WillReturnError(connFailure)
	mock.ExpectExec("INSERT INTO balances").WillReturnError(connFailure)
	mock.ExpectExec("INSERT INTO balances").WillReturnError(connFailure)

	err := repo.Increment(context.Background(), "qwerty", models.BalanceIncrements{
		"BTC": {Available: decimal.RequireFromString("1")},
	})
	assert.Error(t, err)
}

func TestWithRetryDoesNotRetryBusinessErrors(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBalanceRepository(sqlxDB)

	mock.ExpectExec("INSERT INTO balances").WillReturnError(sql.ErrTxDone)

	err := repo.Increment(context.Background(), "qwerty", models.BalanceIncrements{
		"BTC": {Available: decimal.RequireFromString("1")},
	})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

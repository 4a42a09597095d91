package services_test

import (
	"context"
	"testing"

	"github.com/m-kus/testex/internal/exchange/bittrex"
	"github.com/m-kus/testex/internal/exchange/poloniex"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/internal/testutil/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) (*services.Executor, *mocks.Store) {
	t.Helper()
	store := mocks.NewStore()
	executor := services.NewExecutor(
		store.Orders(), store.Trades(), store.Transactions(), store.Balances(),
		services.NewSeededRand(42),
	)
	bittrex.NewAdapter(executor, bittrex.NewProxy("http://127.0.0.1:1/"))
	poloniex.NewAdapter(executor, poloniex.NewProxy("http://127.0.0.1:1/"))
	return executor, store
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestSendAndCancelOrder(t *testing.T) {
	tests := []struct {
		name     string
		params   services.SendOrderParams
		currency string
		reserved decimal.Decimal
	}{
		{
			name: "bittrex buy",
			params: services.SendOrderParams{
				APIKey: "test_bittrex_buy", Number: "1", ExchangeID: bittrex.ID,
				Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
				Price: dec("0.000001"), Amount: dec("500"),
				BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
			},
			currency: "BTC",
			reserved: dec("0.00050125"),
		},
		{
			name: "poloniex buy",
			params: services.SendOrderParams{
				APIKey: "test_poloniex_buy", Number: "2", ExchangeID: poloniex.ID,
				Direction: models.OrderDirectionBuy, Market: "BTC_XRP",
				Price: dec("0.000001"), Amount: dec("500"),
				BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "XRP",
			},
			currency: "BTC",
			reserved: dec("0.0005"),
		},
		{
			name: "bittrex sell",
			params: services.SendOrderParams{
				APIKey: "test_bittrex_sell", Number: "3", ExchangeID: bittrex.ID,
				Direction: models.OrderDirectionSell, Market: "BTC-XRP",
				Price: dec("0.000001"), Amount: dec("500"),
				BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
			},
			currency: "XRP",
			reserved: dec("500"),
		},
		{
			name: "poloniex sell",
			params: services.SendOrderParams{
				APIKey: "test_poloniex_sell", Number: "4", ExchangeID: poloniex.ID,
				Direction: models.OrderDirectionSell, Market: "BTC_XRP",
				Price: dec("0.000001"), Amount: dec("500"),
				BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
			},
			currency: "XRP",
			reserved: dec("500"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			executor, _ := newExecutor(t)

			_, err := executor.SendOrder(ctx, tt.params)
			require.NoError(t, err)

			order, err := executor.GetOrder(ctx, tt.params.APIKey, tt.params.Number)
			require.NoError(t, err)
			require.NotNil(t, order)
			assert.Equal(t, models.OrderStatusOpened, order.Status)

			balance, err := executor.GetBalance(ctx, tt.params.APIKey, tt.currency)
			require.NoError(t, err)
			assert.True(t, tt.reserved.Equal(balance.Frozen), "frozen: %s", balance.Frozen)
			assert.True(t, tt.reserved.Neg().Equal(balance.Available), "available: %s", balance.Available)

			canceled, err := executor.CancelOrder(ctx, tt.params.APIKey, tt.params.Number)
			require.NoError(t, err)
			require.NotNil(t, canceled)
			assert.Equal(t, models.OrderStatusClosed, canceled.Status)

			balance, err = executor.GetBalance(ctx, tt.params.APIKey, tt.currency)
			require.NoError(t, err)
			assert.True(t, balance.Frozen.IsZero(), "frozen: %s", balance.Frozen)
			assert.True(t, balance.Available.IsZero(), "available: %s", balance.Available)
		})
	}
}

func TestCancelPartiallyFilledOrder(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	_, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: "test_partial_fill", Number: "5", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		ExecutedAmount: dec("200"), AveragePrice: dec("0.000001"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	_, err = executor.CancelOrder(ctx, "test_partial_fill", "5")
	require.NoError(t, err)

	// The 0.25% fee on the filled notional stays accrued after the cancel.
	balance, err := executor.GetBalance(ctx, "test_partial_fill", "BTC")
	require.NoError(t, err)
	assert.True(t, balance.Frozen.IsZero(), "frozen: %s", balance.Frozen)
	assert.True(t, dec("-0.0002005").Equal(balance.Available), "available: %s", balance.Available)

	balance, err = executor.GetBalance(ctx, "test_partial_fill", "XRP")
	require.NoError(t, err)
	assert.True(t, dec("200").Equal(balance.Available), "available: %s", balance.Available)
}

func TestCancelOrderTwice(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	_, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: "test_cancel_twice", Number: "6", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	first, err := executor.CancelOrder(ctx, "test_cancel_twice", "6")
	require.NoError(t, err)
	require.NotNil(t, first)

	// The second cancel is a store-level no-op; no double settlement.
	second, err := executor.CancelOrder(ctx, "test_cancel_twice", "6")
	require.NoError(t, err)
	assert.Nil(t, second)

	balance, err := executor.GetBalance(ctx, "test_cancel_twice", "BTC")
	require.NoError(t, err)
	assert.True(t, balance.Frozen.IsZero())
	assert.True(t, balance.Available.IsZero())
}

func TestExecuteOrderDeterministic(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	order, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: "test_execute", Number: "7", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	amount := dec("100")
	updated, err := executor.ExecuteOrder(ctx, *order, 0, &amount)
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.True(t, dec("100").Equal(updated.ExecutedAmount), "executed: %s", updated.ExecutedAmount)
	assert.True(t, dec("0.000001").Equal(updated.AveragePrice), "average: %s", updated.AveragePrice)
	assert.Equal(t, models.OrderStatusOpened, updated.Status)

	trades, err := executor.GetTrades(ctx, "test_execute", interfaces.TradeFilters{OrderNumber: "7"})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, amount.Equal(trades[0].Amount))
	assert.True(t, updated.Price.Equal(trades[0].Price))
	assert.Equal(t, "BTC-XRP", trades[0].Market)
}

func TestExecuteOrderFullFillSettles(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	order, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: "test_full_fill", Number: "8", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	amount := dec("500")
	updated, err := executor.ExecuteOrder(ctx, *order, 0, &amount)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.OrderStatusClosed, updated.Status)

	// Fully settled: the whole reserve is consumed by cost plus fee.
	balance, err := executor.GetBalance(ctx, "test_full_fill", "BTC")
	require.NoError(t, err)
	assert.True(t, balance.Frozen.IsZero(), "frozen: %s", balance.Frozen)
	assert.True(t, dec("-0.00050125").Equal(balance.Available), "available: %s", balance.Available)

	balance, err = executor.GetBalance(ctx, "test_full_fill", "XRP")
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(balance.Available))

	// A further execution step finds nothing open.
	again, err := executor.ExecuteOrder(ctx, *updated, 0, &amount)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestExecuteOrderSkipsWithProbabilityOne(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	order, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: "test_skip", Number: "9", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	updated, err := executor.ExecuteOrder(ctx, *order, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, updated)

	trades, err := executor.GetTrades(ctx, "test_skip", interfaces.TradeFilters{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTradeAmountsSumToExecuted(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	order, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: "test_sum", Number: "10", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	// Drive random fills until the order closes.
	for i := 0; i < 1000; i++ {
		updated, err := executor.ExecuteOrder(ctx, *order, 0, nil)
		require.NoError(t, err)
		if updated == nil {
			break
		}
		order = updated
		if order.Status == models.OrderStatusClosed {
			break
		}
	}
	require.Equal(t, models.OrderStatusClosed, order.Status)

	trades, err := executor.GetTrades(ctx, "test_sum", interfaces.TradeFilters{OrderNumber: "10"})
	require.NoError(t, err)
	total := decimal.Zero
	for _, trade := range trades {
		total = total.Add(trade.Amount)
	}
	assert.True(t, total.Equal(order.ExecutedAmount), "trades sum %s, executed %s", total, order.ExecutedAmount)
	assert.True(t, order.ExecutedAmount.Equal(order.Amount))
}

func TestProcessConfirmsTransactions(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)
	executor.SetNonExecuteProb(1)

	address := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	transaction, err := executor.SendTransaction(ctx, services.SendTransactionParams{
		APIKey: "test_withdraw", Number: "11",
		Type: models.TransactionTypeWithdrawal, Currency: "BTC",
		Amount: dec("0.5"), Address: &address,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusNonAuthorized, transaction.Status)

	// Submission freezes the funds.
	balance, err := executor.GetBalance(ctx, "test_withdraw", "BTC")
	require.NoError(t, err)
	assert.True(t, dec("0.5").Equal(balance.Frozen))
	assert.True(t, dec("-0.5").Equal(balance.Available))

	require.NoError(t, executor.Process(ctx))

	transactions, err := executor.GetTransactions(ctx, "test_withdraw", interfaces.TransactionFilters{})
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionStatusConfirmed, transactions[0].Status)

	// Confirmation burns the frozen amount.
	balance, err = executor.GetBalance(ctx, "test_withdraw", "BTC")
	require.NoError(t, err)
	assert.True(t, balance.Frozen.IsZero())
	assert.True(t, dec("-0.5").Equal(balance.Available))
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	require.NoError(t, executor.Deposit(ctx, "test_deposit", "BTC", dec("1")))

	balance, err := executor.GetBalance(ctx, "test_deposit", "BTC")
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(balance.Available), "available: %s", balance.Available)
	assert.True(t, balance.Pending.IsZero(), "pending: %s", balance.Pending)
	assert.True(t, balance.Frozen.IsZero())

	transactions, err := executor.GetTransactions(ctx, "test_deposit", interfaces.TransactionFilters{
		Type: models.TransactionTypeDeposit,
	})
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionStatusConfirmed, transactions[0].Status)
}

func TestDoubleEntryConservation(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)
	apiKey := "test_conservation"

	require.NoError(t, executor.Deposit(ctx, apiKey, "BTC", dec("1")))

	order, err := executor.SendOrder(ctx, services.SendOrderParams{
		APIKey: apiKey, Number: "12", ExchangeID: bittrex.ID,
		Direction: models.OrderDirectionBuy, Market: "BTC-XRP",
		Price: dec("0.000001"), Amount: dec("500"),
		BaseCurrency: "BTC", MarketCurrency: "XRP", FeeCurrency: "BTC",
	})
	require.NoError(t, err)

	amount := dec("200")
	_, err = executor.ExecuteOrder(ctx, *order, 0, &amount)
	require.NoError(t, err)

	_, err = executor.CancelOrder(ctx, apiKey, "12")
	require.NoError(t, err)

	// Net BTC position: deposit minus filled notional minus the fee on it.
	balance, err := executor.GetBalance(ctx, apiKey, "BTC")
	require.NoError(t, err)
	net := balance.Available.Add(balance.Frozen).Add(balance.Pending)
	assert.True(t, dec("0.9997995").Equal(net), "net: %s", net)

	balance, err = executor.GetBalance(ctx, apiKey, "XRP")
	require.NoError(t, err)
	assert.True(t, dec("200").Equal(balance.Available))
}

func TestGetBalanceUnknownCurrencyIsZero(t *testing.T) {
	ctx := context.Background()
	executor, _ := newExecutor(t)

	balance, err := executor.GetBalance(ctx, "nobody", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", balance.Currency)
	assert.True(t, balance.Available.IsZero())
}

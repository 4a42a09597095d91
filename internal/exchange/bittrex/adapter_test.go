package bittrex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/internal/testutil/mocks"
	"github.com/m-kus/testex/pkg/sign"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsFixture = `{"success":true,"message":"","result":[
	{"MarketName":"BTC-XRP","BaseCurrency":"BTC","MarketCurrency":"XRP","MinTradeSize":100,"IsActive":true},
	{"MarketName":"BTC-LTC","BaseCurrency":"BTC","MarketCurrency":"LTC","MinTradeSize":0.01,"IsActive":true}
]}`

const currenciesFixture = `{"success":true,"message":"","result":[
	{"Currency":"BTC","TxFee":0.0005,"IsActive":true},
	{"Currency":"XRP","TxFee":1,"IsActive":true},
	{"Currency":"LTC","TxFee":0.01,"IsActive":true}
]}`

func newUpstream(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	hits := new(int)
	mux := http.NewServeMux()
	mux.HandleFunc("/getmarkets", func(w http.ResponseWriter, r *http.Request) {
		*hits++
		fmt.Fprint(w, marketsFixture)
	})
	mux.HandleFunc("/getcurrencies", func(w http.ResponseWriter, r *http.Request) {
		*hits++
		fmt.Fprint(w, currenciesFixture)
	})
	mux.HandleFunc("/getticker", func(w http.ResponseWriter, r *http.Request) {
		*hits++
		fmt.Fprint(w, `{"success":true,"message":"","result":{"Bid":1,"Ask":2,"Last":1.5}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, hits
}

func newAdapter(t *testing.T) (*Adapter, *services.Executor) {
	t.Helper()
	upstream, _ := newUpstream(t)
	store := mocks.NewStore()
	executor := services.NewExecutor(
		store.Orders(), store.Trades(), store.Transactions(), store.Balances(),
		services.NewSeededRand(1),
	)
	adapter := NewAdapter(executor, NewProxy(upstream.URL+"/"))
	return adapter, executor
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestExtendOrder(t *testing.T) {
	adapter, _ := newAdapter(t)

	t.Run("buy reserves notional plus fee", func(t *testing.T) {
		order := adapter.ExtendOrder(models.Order{
			Direction:      models.OrderDirectionBuy,
			Price:          dec("0.000001"),
			Amount:         dec("500"),
			ExecutedAmount: dec("200"),
			AveragePrice:   dec("0.000001"),
		})
		assert.True(t, dec("0.0005").Equal(order.Reserved), "reserved: %s", order.Reserved)
		assert.True(t, dec("0.00000125").Equal(order.ReservedFee), "reserved fee: %s", order.ReservedFee)
		assert.True(t, dec("0.0002").Equal(order.Total), "total: %s", order.Total)
		assert.True(t, dec("0.0000005").Equal(order.Fee), "fee: %s", order.Fee)
		assert.True(t, dec("300").Equal(order.RemainingAmount))
	})

	t.Run("sell reserves the amount, no fee reserve", func(t *testing.T) {
		order := adapter.ExtendOrder(models.Order{
			Direction: models.OrderDirectionSell,
			Price:     dec("0.000001"),
			Amount:    dec("500"),
		})
		assert.True(t, dec("500").Equal(order.Reserved))
		assert.True(t, order.ReservedFee.IsZero())
		assert.True(t, order.Total.IsZero())
		assert.True(t, dec("500").Equal(order.RemainingAmount))
	})
}

func TestAuthenticate(t *testing.T) {
	adapter, _ := newAdapter(t)
	requestURL := "http://localhost/bittrex.com/api/v1.1/account/getbalances?apikey=qwerty&nonce=1"

	tests := []struct {
		name    string
		nonce   string
		apiKey  string
		apiSign string
		wantErr string
	}{
		{"missing nonce", "", "qwerty", "sig", ErrNonceNotProvided},
		{"missing apikey", "1", "", "sig", ErrAPIKeyNotProvided},
		{"missing apisign", "1", "qwerty", "", ErrAPISignNotProvided},
		{"bad signature", "1", "qwerty", "deadbeef", ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.Authenticate(requestURL, tt.nonce, tt.apiKey, tt.apiSign)
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantErr, apiErr.Message)
		})
	}

	t.Run("valid signature", func(t *testing.T) {
		apiKey, err := adapter.Authenticate(requestURL, "1", "qwerty", sign.Message(requestURL, "qwerty"))
		require.NoError(t, err)
		assert.Equal(t, "qwerty", apiKey)
	})

	t.Run("flipping a byte rejects", func(t *testing.T) {
		valid := sign.Message(requestURL, "qwerty")
		tampered := requestURL + "x"
		_, err := adapter.Authenticate(tampered, "1", "qwerty", valid)
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, ErrInvalidSignature, apiErr.Message)
	})
}

func TestSendOrderValidationLadder(t *testing.T) {
	adapter, executor := newAdapter(t)
	ctx := context.Background()
	apiKey := "ladder"

	expectError := func(t *testing.T, err error, message string) {
		t.Helper()
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, message, apiErr.Message)
	}

	_, err := adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "", "", "")
	expectError(t, err, ErrMarketNotProvided)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-NOPE", "", "")
	expectError(t, err, ErrInvalidMarket)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "", "")
	expectError(t, err, ErrQuantityNotProvided)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "abc", "")
	expectError(t, err, ErrQuantityInvalid)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "500", "")
	expectError(t, err, ErrRateNotProvided)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "500", "abc")
	expectError(t, err, ErrRateInvalid)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "50", "0.001")
	expectError(t, err, ErrMinTradeNotMet)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "500", "0.000001")
	expectError(t, err, ErrDustTrade)

	_, err = adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "500", "0.00001")
	expectError(t, err, ErrInsufficientFunds)

	// Funding the account clears the last rung.
	require.NoError(t, executor.Deposit(ctx, apiKey, "BTC", dec("1000")))
	response, err := adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "500", "0.00001")
	require.NoError(t, err)
	assert.True(t, response.Success)
	result, ok := response.Result.(map[string]string)
	require.True(t, ok)
	assert.NotEmpty(t, result["uuid"])
}

func TestCancelRefusesClosedAndUnknownOrders(t *testing.T) {
	adapter, executor := newAdapter(t)
	ctx := context.Background()
	apiKey := "cancel"

	_, err := adapter.Cancel(ctx, apiKey, "not-a-uuid")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrUUIDInvalid, apiErr.Message)

	_, err = adapter.Cancel(ctx, apiKey, "b9f05c42-4c2f-4a6c-9d3f-111111111111")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrInvalidOrder, apiErr.Message)

	require.NoError(t, executor.Deposit(ctx, apiKey, "BTC", dec("1000")))
	response, err := adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy, "BTC-XRP", "500", "0.00001")
	require.NoError(t, err)
	orderUUID := response.Result.(map[string]string)["uuid"]

	_, err = adapter.Cancel(ctx, apiKey, orderUUID)
	require.NoError(t, err)

	_, err = adapter.Cancel(ctx, apiKey, orderUUID)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrOrderNotOpen, apiErr.Message)
}

func TestWithdrawValidatesAddress(t *testing.T) {
	adapter, executor := newAdapter(t)
	ctx := context.Background()
	apiKey := "withdraw"
	require.NoError(t, executor.Deposit(ctx, apiKey, "BTC", dec("1")))

	var apiErr *Error
	_, err := adapter.Withdraw(ctx, apiKey, "BTC", "0.5", "", "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrAddressNotProvided, apiErr.Message)

	_, err = adapter.Withdraw(ctx, apiKey, "BTC", "0.5", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L", "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrAddressInvalid, apiErr.Message)

	response, err := adapter.Withdraw(ctx, apiKey, "BTC", "0.5", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "")
	require.NoError(t, err)
	assert.True(t, response.Success)

	// The upstream TxFee is attached to the withdrawal.
	withdrawals, err := adapter.GetWithdrawalHistory(ctx, apiKey, "")
	require.NoError(t, err)
	views := withdrawals.Result.([]WithdrawalView)
	require.Len(t, views, 1)
	assert.True(t, dec("0.0005").Equal(views[0].TxCost))
	assert.False(t, views[0].Authorized)
}

func TestGetDepositAddressAlwaysGenerating(t *testing.T) {
	adapter, _ := newAdapter(t)

	var apiErr *Error
	_, err := adapter.GetDepositAddress(context.Background(), "anyone", "BTC")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrAddressGenerating, apiErr.Message)
}

func TestProxyCachesReferenceData(t *testing.T) {
	upstream, hits := newUpstream(t)
	proxy := NewProxy(upstream.URL + "/")

	_, err := proxy.Markets()
	require.NoError(t, err)
	_, err = proxy.Markets()
	require.NoError(t, err)
	assert.Equal(t, 1, *hits)

	// Pass-through caching is keyed by parameter tuple.
	*hits = 0
	_, err = proxy.GetTicker("BTC-XRP")
	require.NoError(t, err)
	_, err = proxy.GetTicker("BTC-XRP")
	require.NoError(t, err)
	_, err = proxy.GetTicker("BTC-LTC")
	require.NoError(t, err)
	assert.Equal(t, 2, *hits)
}

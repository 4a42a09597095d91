package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/m-kus/testex/internal/exchange/bittrex"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/services"
)

// BittrexHandler exposes the Bittrex v1.1 URL tree: cached public
// pass-through plus the authenticated market and account endpoints.
type BittrexHandler struct {
	adapter  *bittrex.Adapter
	executor *services.Executor
	logger   *log.Logger
}

// NewBittrexHandler creates the handler over an adapter and the executor.
func NewBittrexHandler(adapter *bittrex.Adapter, executor *services.Executor) *BittrexHandler {
	return &BittrexHandler{
		adapter:  adapter,
		executor: executor,
		logger:   log.WithPrefix("bittrex"),
	}
}

type bittrexOp func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error)

// authenticated wraps an operation in the signed-request pipeline:
// sweep, auth, dispatch, sweep, envelope. Business errors render to the
// standard envelope with HTTP 200.
func (h *BittrexHandler) authenticated(op bittrexOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := h.executor.Process(ctx); err != nil {
			h.logger.Error("process sweep failed", "err", err)
			internalError(w)
			return
		}

		query := r.URL.Query()
		apiKey, err := h.adapter.Authenticate(
			requestURL(r),
			query.Get("nonce"),
			query.Get("apikey"),
			r.Header.Get("apisign"),
		)
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		response, err := op(ctx, apiKey, r)
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		if err := h.executor.Process(ctx); err != nil {
			h.logger.Error("process sweep failed", "err", err)
			internalError(w)
			return
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func (h *BittrexHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *bittrex.Error
	if errors.As(err, &apiErr) {
		h.logger.Error(r.URL.Path, "message", apiErr.Message, "params", r.URL.Query().Encode())
		writeJSON(w, http.StatusOK, apiErr.Response())
		return
	}
	h.logger.Error(r.URL.Path, "err", err)
	internalError(w)
}

// proxied wraps a public pass-through fetch; no sweep runs on public
// endpoints.
func (h *BittrexHandler) proxied(fetch func(r *http.Request) (*bittrex.RawResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, err := fetch(r)
		if err != nil {
			h.logger.Error(r.URL.Path, "err", err)
			internalError(w)
			return
		}
		writeUpstream(w, response.StatusCode, response.Body)
	}
}

// Public endpoints.

func (h *BittrexHandler) GetMarkets() http.HandlerFunc {
	return h.proxied(func(*http.Request) (*bittrex.RawResponse, error) {
		return h.adapter.GetMarkets()
	})
}

func (h *BittrexHandler) GetCurrencies() http.HandlerFunc {
	return h.proxied(func(*http.Request) (*bittrex.RawResponse, error) {
		return h.adapter.GetCurrencies()
	})
}

func (h *BittrexHandler) GetTicker() http.HandlerFunc {
	return h.proxied(func(r *http.Request) (*bittrex.RawResponse, error) {
		return h.adapter.GetTicker(r.URL.Query().Get("market"))
	})
}

func (h *BittrexHandler) GetMarketSummaries() http.HandlerFunc {
	return h.proxied(func(*http.Request) (*bittrex.RawResponse, error) {
		return h.adapter.GetMarketSummaries()
	})
}

func (h *BittrexHandler) GetMarketSummary() http.HandlerFunc {
	return h.proxied(func(r *http.Request) (*bittrex.RawResponse, error) {
		return h.adapter.GetMarketSummary(r.URL.Query().Get("market"))
	})
}

func (h *BittrexHandler) GetOrderBook() http.HandlerFunc {
	return h.proxied(func(r *http.Request) (*bittrex.RawResponse, error) {
		query := r.URL.Query()
		return h.adapter.GetOrderBook(query.Get("market"), query.Get("type"))
	})
}

func (h *BittrexHandler) GetMarketHistory() http.HandlerFunc {
	return h.proxied(func(r *http.Request) (*bittrex.RawResponse, error) {
		return h.adapter.GetMarketHistory(r.URL.Query().Get("market"))
	})
}

// Market endpoints.

func (h *BittrexHandler) BuyLimit() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		query := r.URL.Query()
		return h.adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy,
			query.Get("market"), query.Get("quantity"), query.Get("rate"))
	})
}

func (h *BittrexHandler) SellLimit() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		query := r.URL.Query()
		return h.adapter.SendOrder(ctx, apiKey, models.OrderDirectionSell,
			query.Get("market"), query.Get("quantity"), query.Get("rate"))
	})
}

func (h *BittrexHandler) Cancel() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.Cancel(ctx, apiKey, r.URL.Query().Get("uuid"))
	})
}

func (h *BittrexHandler) GetOpenOrders() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetOpenOrders(ctx, apiKey, r.URL.Query().Get("market"))
	})
}

// Account endpoints.

func (h *BittrexHandler) GetBalances() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, _ *http.Request) (bittrex.Response, error) {
		return h.adapter.GetBalances(ctx, apiKey)
	})
}

func (h *BittrexHandler) GetBalance() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetBalance(ctx, apiKey, r.URL.Query().Get("currency"))
	})
}

func (h *BittrexHandler) GetDepositAddress() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetDepositAddress(ctx, apiKey, r.URL.Query().Get("currency"))
	})
}

func (h *BittrexHandler) Withdraw() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		query := r.URL.Query()
		return h.adapter.Withdraw(ctx, apiKey,
			query.Get("currency"), query.Get("quantity"),
			query.Get("address"), query.Get("paymentid"))
	})
}

func (h *BittrexHandler) GetOrder() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetOrder(ctx, apiKey, r.URL.Query().Get("uuid"))
	})
}

func (h *BittrexHandler) GetOrderHistory() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetOrderHistory(ctx, apiKey, r.URL.Query().Get("market"))
	})
}

func (h *BittrexHandler) GetWithdrawalHistory() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetWithdrawalHistory(ctx, apiKey, r.URL.Query().Get("currency"))
	})
}

func (h *BittrexHandler) GetDepositHistory() http.HandlerFunc {
	return h.authenticated(func(ctx context.Context, apiKey string, r *http.Request) (bittrex.Response, error) {
		return h.adapter.GetDepositHistory(ctx, apiKey, r.URL.Query().Get("currency"))
	})
}

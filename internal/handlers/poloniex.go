package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/m-kus/testex/internal/exchange/poloniex"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/services"
)

// maxTradingBodySize caps the signed form body.
const maxTradingBodySize = 1 << 20

// PoloniexHandler exposes the Poloniex URL pair: the cached public command
// endpoint and the authenticated trading API.
type PoloniexHandler struct {
	adapter  *poloniex.Adapter
	executor *services.Executor
	logger   *log.Logger
}

// NewPoloniexHandler creates the handler over an adapter and the executor.
func NewPoloniexHandler(adapter *poloniex.Adapter, executor *services.Executor) *PoloniexHandler {
	return &PoloniexHandler{
		adapter:  adapter,
		executor: executor,
		logger:   log.WithPrefix("poloniex"),
	}
}

// Public handles GET /public?command=... with no sweep.
func (h *PoloniexHandler) Public() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var response *poloniex.RawResponse
		var err error
		switch query.Get("command") {
		case "returnTicker":
			response, err = h.adapter.ReturnTicker()
		case "return24hVolume":
			response, err = h.adapter.Return24hVolume()
		case "returnOrderBook":
			response, err = h.adapter.ReturnOrderBook(query.Get("currencyPair"), query.Get("depth"))
		case "returnTradeHistory":
			response, err = h.adapter.ReturnTradeHistory(query.Get("currencyPair"), query.Get("start"), query.Get("end"))
		case "returnChartData":
			response, err = h.adapter.ReturnChartData(query.Get("currencyPair"), query.Get("start"), query.Get("end"), query.Get("period"))
		case "returnCurrencies":
			response, err = h.adapter.ReturnCurrencies()
		case "returnLoanOrders":
			response, err = h.adapter.ReturnLoanOrders(query.Get("currency"))
		default:
			writeJSON(w, http.StatusOK, map[string]string{"error": poloniex.ErrInvalidCommand})
			return
		}

		if err != nil {
			h.logger.Error(r.URL.Path, "err", err)
			internalError(w)
			return
		}
		writeUpstream(w, response.StatusCode, response.Body)
	}
}

// TradingAPI handles POST /tradingApi: sweep, signed-body auth, command
// dispatch, sweep, envelope. Business errors render as {"error": ...}
// with HTTP 200.
func (h *PoloniexHandler) TradingAPI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// The signature covers the raw body; read it before any form
		// parsing can consume it.
		body, err := io.ReadAll(io.LimitReader(r.Body, maxTradingBodySize+1))
		if err != nil {
			internalError(w)
			return
		}
		if len(body) > maxTradingBodySize {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			form = url.Values{}
		}

		if err := h.executor.Process(ctx); err != nil {
			h.logger.Error("process sweep failed", "err", err)
			internalError(w)
			return
		}

		apiKey, err := h.adapter.Authenticate(
			r.Header.Get("Key"),
			r.Header.Get("Sign"),
			form.Get("nonce"),
			string(body),
		)
		if err != nil {
			h.respondError(w, r, form, err)
			return
		}

		response, err := h.dispatch(r, apiKey, form)
		if err != nil {
			h.respondError(w, r, form, err)
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

func (h *PoloniexHandler) dispatch(r *http.Request, apiKey string, form url.Values) (interface{}, error) {
	ctx := r.Context()

	switch form.Get("command") {
	case "returnBalances":
		return h.adapter.ReturnBalances(ctx, apiKey)
	case "returnCompleteBalances":
		return h.adapter.ReturnCompleteBalances(ctx, apiKey, form.Get("account"))
	case "returnDepositAddresses":
		return h.adapter.ReturnDepositAddresses(), nil
	case "generateNewAddress":
		return h.adapter.GenerateNewAddress(form.Get("currency"))
	case "returnDepositsWithdrawals":
		return h.adapter.ReturnDepositsWithdrawals(ctx, apiKey, form.Get("start"), form.Get("end"))
	case "returnOpenOrders":
		return h.adapter.ReturnOpenOrders(ctx, apiKey, form.Get("currencyPair"))
	case "returnTradeHistory":
		return h.adapter.ReturnAccountTradeHistory(ctx, apiKey,
			form.Get("currencyPair"), form.Get("start"), form.Get("end"), form.Get("limit"))
	case "returnOrderTrades":
		return h.adapter.ReturnOrderTrades(ctx, apiKey, form.Get("orderNumber"))
	case "returnOrderStatus":
		return h.adapter.ReturnOrderStatus(ctx, apiKey, form.Get("orderNumber"))
	case "buy":
		return h.adapter.SendOrder(ctx, apiKey, models.OrderDirectionBuy,
			form.Get("currencyPair"), form.Get("rate"), form.Get("amount"),
			form.Get("fillOrKill") != "", form.Get("immediateOrCancel") != "", form.Get("postOnly") != "")
	case "sell":
		return h.adapter.SendOrder(ctx, apiKey, models.OrderDirectionSell,
			form.Get("currencyPair"), form.Get("rate"), form.Get("amount"),
			form.Get("fillOrKill") != "", form.Get("immediateOrCancel") != "", form.Get("postOnly") != "")
	case "cancelOrder":
		return h.adapter.CancelOrder(ctx, apiKey, form.Get("orderNumber"))
	case "moveOrder":
		return h.adapter.MoveOrder(ctx, apiKey,
			form.Get("orderNumber"), form.Get("rate"), form.Get("amount"),
			form.Get("immediateOrCancel") != "", form.Get("postOnly") != "")
	case "withdraw":
		return h.adapter.Withdraw(ctx, apiKey,
			form.Get("currency"), form.Get("amount"),
			form.Get("address"), form.Get("paymentId"))
	case "returnFeeInfo":
		return h.adapter.ReturnFeeInfo(), nil
	case "returnAvailableAccountBalances":
		return h.adapter.ReturnAvailableAccountBalances(ctx, apiKey, form.Get("account"))
	default:
		return nil, &poloniex.Error{Message: poloniex.ErrInvalidCommand}
	}
}

func (h *PoloniexHandler) respondError(w http.ResponseWriter, r *http.Request, form url.Values, err error) {
	var apiErr *poloniex.Error
	if errors.As(err, &apiErr) {
		h.logger.Error(r.URL.Path, "message", apiErr.Message, "params", sanitizeForm(form).Encode())
		writeJSON(w, http.StatusOK, apiErr.Response())
		return
	}
	h.logger.Error(r.URL.Path, "err", err)
	internalError(w)
}

// sanitizeForm strips the signature-bearing fields before logging.
func sanitizeForm(form url.Values) url.Values {
	sanitized := url.Values{}
	for key, values := range form {
		if key == "nonce" {
			continue
		}
		sanitized[key] = values
	}
	return sanitized
}

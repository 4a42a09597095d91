package poloniex

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/pkg/sign"
	"github.com/shopspring/decimal"
)

// Adapter glues the Poloniex dialect to the executor: signed-body
// authentication with the per-key nonce ladder, validation, the taker fee
// model and the per-command response shapes.
type Adapter struct {
	*Proxy
	executor *services.Executor

	mu     sync.Mutex
	nonces map[string]int64
}

// NewAdapter creates the adapter over an upstream proxy and registers its
// custom logic with the executor.
func NewAdapter(executor *services.Executor, proxy *Proxy) *Adapter {
	if proxy == nil {
		proxy = NewProxy("")
	}
	a := &Adapter{
		Proxy:    proxy,
		executor: executor,
		nonces:   make(map[string]int64),
	}
	executor.RegisterAdapter(a)
	return a
}

// ExchangeID implements models.AdapterLogic.
func (a *Adapter) ExchangeID() string { return ID }

// ExtendOrder populates the derived fields per the Poloniex fee model:
// nothing is reserved for fees up front; the taker fee accrues on the
// filled notional, charged in the market currency for buys and the base
// currency for sells.
func (a *Adapter) ExtendOrder(order models.Order) models.Order {
	order.Total = models.Quantize(order.ExecutedAmount.Mul(order.AveragePrice))
	order.RemainingAmount = order.Amount.Sub(order.ExecutedAmount)

	if order.Direction == models.OrderDirectionBuy {
		order.Reserved = models.Quantize(order.Amount.Mul(order.Price))
		order.Fee = models.Quantize(order.ExecutedAmount.Mul(TakerFeePct))
	} else {
		order.Reserved = order.Amount
		order.Fee = models.Quantize(order.Total.Mul(TakerFeePct))
	}
	order.ReservedFee = decimal.Zero
	return order
}

// checkNonce enforces the per-key nonce ladder: the check and the update
// are one critical section, so two interleaved requests with the same
// nonce produce exactly one success.
func (a *Adapter) checkNonce(apiKey, nonce string) error {
	value, err := strconv.ParseInt(nonce, 10, 64)
	if err != nil {
		return newError(ErrInvalidNonce)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.nonces[apiKey]
	if value <= prev {
		return newError(errNonceNotGreater(prev, value))
	}
	a.nonces[apiKey] = value
	return nil
}

// Authenticate validates a signed request body and returns the
// authenticated api key. The nonce ladder is checked first; the signature
// covers the url-encoded body, signed with the user's secret, which equals
// the key in this simulation.
func (a *Adapter) Authenticate(apiKey, apiSign, nonce, body string) (string, error) {
	if err := a.checkNonce(apiKey, nonce); err != nil {
		return "", err
	}

	apiSecret := apiKey
	if apiKey == "" || apiSign == "" || !sign.Equal(sign.Message(body, apiSecret), apiSign) {
		return "", newError(ErrInvalidAPIKeySecretPair)
	}
	return apiKey, nil
}

// getNumber draws a fresh 9-digit order number.
func (a *Adapter) getNumber() string {
	return strconv.FormatInt(rand.Int63n(900000000)+100000000, 10)
}

func (a *Adapter) checkBalance(ctx context.Context, apiKey string, amount decimal.Decimal, currency string) error {
	balance, err := a.executor.GetBalance(ctx, apiKey, currency)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance.Available) {
		return newError(errNotEnoughCurrency(currency))
	}
	return nil
}

// ReturnBalances reports the available balance of every known currency,
// zero-filled for currencies the account never touched.
func (a *Adapter) ReturnBalances(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error) {
	currencies, err := a.Currencies()
	if err != nil {
		return nil, err
	}
	result := make(map[string]decimal.Decimal, len(currencies))
	for currency := range currencies {
		result[currency] = decimal.Zero
	}

	balances, err := a.executor.GetBalances(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	for i := range balances {
		result[balances[i].Currency] = balances[i].Available
	}
	return result, nil
}

// ReturnCompleteBalances reports available/onOrders/btcValue per touched
// currency. Only the exchange account is implemented.
func (a *Adapter) ReturnCompleteBalances(ctx context.Context, apiKey, account string) (map[string]CompleteBalanceView, error) {
	if account != "" && account != AccountExchange {
		return nil, newError(ErrInvalidAccount)
	}

	tickers, err := a.Tickers()
	if err != nil {
		return nil, err
	}
	balances, err := a.executor.GetBalances(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	result := make(map[string]CompleteBalanceView, len(balances))
	for i := range balances {
		result[balances[i].Currency] = formatBalance(&balances[i], tickers)
	}
	return result, nil
}

// ReturnDepositAddresses is not simulated; no addresses exist.
func (a *Adapter) ReturnDepositAddresses() map[string]string {
	return map[string]string{}
}

// GenerateNewAddress is not simulated; the exchange reports failure.
func (a *Adapter) GenerateNewAddress(currency string) (map[string]interface{}, error) {
	if _, err := a.ParseCurrency(currency); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": 0, "response": nil}, nil
}

// ReturnDepositsWithdrawals lists both transaction kinds inside the
// requested time window.
func (a *Adapter) ReturnDepositsWithdrawals(ctx context.Context, apiKey, start, end string) (map[string]interface{}, error) {
	startAt, err := parseTimestamp(start, ErrInvalidStart)
	if err != nil {
		return nil, err
	}
	endAt, err := parseTimestamp(end, ErrInvalidEnd)
	if err != nil {
		return nil, err
	}

	transactions, err := a.executor.GetTransactions(ctx, apiKey, interfaces.TransactionFilters{
		StartAt: &startAt,
		EndAt:   &endAt,
	})
	if err != nil {
		return nil, err
	}

	deposits := []DepositView{}
	withdrawals := []WithdrawalView{}
	for i := range transactions {
		switch transactions[i].Type {
		case models.TransactionTypeDeposit:
			deposits = append(deposits, formatDeposit(&transactions[i]))
		case models.TransactionTypeWithdrawal:
			withdrawals = append(withdrawals, formatWithdrawal(&transactions[i]))
		}
	}
	return map[string]interface{}{
		"deposits":    deposits,
		"withdrawals": withdrawals,
	}, nil
}

// ReturnOpenOrders lists open orders for one pair, or for every market
// keyed by pair when currencyPair is "all".
func (a *Adapter) ReturnOpenOrders(ctx context.Context, apiKey, currencyPair string) (interface{}, error) {
	market, err := a.ParseCurrencyPair(currencyPair)
	if err != nil {
		return nil, err
	}
	orders, err := a.executor.GetOrders(ctx, apiKey, models.OrderStatusOpened, market)
	if err != nil {
		return nil, err
	}

	if market != "" {
		views := make([]OrderView, 0, len(orders))
		for i := range orders {
			views = append(views, formatOrder(&orders[i]))
		}
		return views, nil
	}

	grouped := map[string][]OrderView{}
	for i := range orders {
		grouped[orders[i].Market] = append(grouped[orders[i].Market], formatOrder(&orders[i]))
	}
	return grouped, nil
}

// ReturnAccountTradeHistory lists fills for one pair, or grouped by pair
// when currencyPair is "all".
func (a *Adapter) ReturnAccountTradeHistory(ctx context.Context, apiKey, currencyPair, start, end, limit string) (interface{}, error) {
	market, err := a.ParseCurrencyPair(currencyPair)
	if err != nil {
		return nil, err
	}
	startAt, err := parseTimestamp(start, ErrInvalidStart)
	if err != nil {
		return nil, err
	}
	endAt, err := parseTimestamp(end, ErrInvalidEnd)
	if err != nil {
		return nil, err
	}

	trades, err := a.executor.GetTrades(ctx, apiKey, interfaces.TradeFilters{
		Market:  market,
		Limit:   parseLimit(limit),
		StartAt: &startAt,
		EndAt:   &endAt,
	})
	if err != nil {
		return nil, err
	}

	if market != "" {
		views := make([]TradeView, 0, len(trades))
		for i := range trades {
			views = append(views, formatTrade(&trades[i]))
		}
		return views, nil
	}

	grouped := map[string][]TradeView{}
	for i := range trades {
		grouped[trades[i].Market] = append(grouped[trades[i].Market], formatTrade(&trades[i]))
	}
	return grouped, nil
}

// ReturnOrderTrades lists the fills of one order.
func (a *Adapter) ReturnOrderTrades(ctx context.Context, apiKey, orderNumberParam string) ([]TradeView, error) {
	trades, err := a.executor.GetTrades(ctx, apiKey, interfaces.TradeFilters{
		OrderNumber: orderNumberParam,
	})
	if err != nil {
		return nil, err
	}
	views := make([]TradeView, 0, len(trades))
	for i := range trades {
		views = append(views, formatTrade(&trades[i]))
	}
	return views, nil
}

func (a *Adapter) getOrder(ctx context.Context, apiKey, orderNumberParam string) (*models.Order, error) {
	if orderNumberParam == "" {
		return nil, newError(ErrRequiredParameterMissing)
	}
	if _, err := strconv.ParseInt(orderNumberParam, 10, 64); err != nil {
		return nil, newError(ErrInvalidOrderNumber)
	}

	order, err := a.executor.GetOrder(ctx, apiKey, orderNumberParam)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, newError(ErrOrderNotFound)
	}
	return order, nil
}

// ReturnOrderStatus reports one open order, or success: 0 when the order
// is no longer open.
func (a *Adapter) ReturnOrderStatus(ctx context.Context, apiKey, orderNumberParam string) (map[string]interface{}, error) {
	order, err := a.getOrder(ctx, apiKey, orderNumberParam)
	if err != nil {
		return nil, err
	}
	if order.IsOpen() {
		return map[string]interface{}{
			"result":  map[string]OrderStatusView{orderNumberParam: formatOrderStatus(order)},
			"success": 1,
		}, nil
	}
	return map[string]interface{}{"success": 0}, nil
}

// SendOrder validates and places a buy or sell order.
func (a *Adapter) SendOrder(ctx context.Context, apiKey string, direction models.OrderDirection, currencyPair, rate, amount string, fillOrKill, immediateOrCancel, postOnly bool) (map[string]interface{}, error) {
	number := a.getNumber()
	price, err := parseDecimal(rate, ErrInvalidRate)
	if err != nil {
		return nil, err
	}
	quantity, err := parseDecimal(amount, ErrInvalidAmount)
	if err != nil {
		return nil, err
	}
	market, err := a.ParseCurrencyPair(currencyPair)
	if err != nil {
		return nil, err
	}
	if market == "" {
		return nil, newError(ErrInvalidCurrencyPair)
	}

	if price.Mul(quantity).LessThan(MinTradeTotal) {
		return nil, newError(ErrTotalTooSmall)
	}

	baseCurrency, marketCurrency := splitCurrencyPair(market)
	fundingCurrency := baseCurrency
	if direction == models.OrderDirectionSell {
		fundingCurrency = marketCurrency
	}
	if err := a.checkBalance(ctx, apiKey, quantity, fundingCurrency); err != nil {
		return nil, err
	}

	feeCurrency := marketCurrency
	if direction == models.OrderDirectionSell {
		feeCurrency = baseCurrency
	}

	_, err = a.executor.SendOrder(ctx, services.SendOrderParams{
		APIKey:         apiKey,
		Number:         number,
		ExchangeID:     ID,
		Market:         market,
		Direction:      direction,
		Type:           models.OrderTypeFromFlags(fillOrKill, immediateOrCancel, postOnly),
		Price:          price,
		Amount:         quantity,
		BaseCurrency:   baseCurrency,
		MarketCurrency: marketCurrency,
		FeeCurrency:    feeCurrency,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"orderNumber":     orderNumber(number),
		"resultingTrades": nil,
	}, nil
}

// CancelOrder closes an open order, reporting its unfilled remainder.
func (a *Adapter) CancelOrder(ctx context.Context, apiKey, orderNumberParam string) (map[string]interface{}, error) {
	order, err := a.getOrder(ctx, apiKey, orderNumberParam)
	if err != nil {
		return nil, err
	}
	if !order.IsOpen() {
		return nil, newError(ErrOrderNotFound)
	}

	canceled, err := a.executor.CancelOrder(ctx, apiKey, orderNumberParam)
	if err != nil {
		return nil, err
	}
	if canceled == nil {
		return nil, newError(ErrOrderNotFound)
	}
	return map[string]interface{}{
		"amount":  canceled.RemainingAmount,
		"message": fmt.Sprintf("Order #%s canceled.", orderNumberParam),
		"success": 1,
	}, nil
}

// MoveOrder is not implemented by the simulation.
func (a *Adapter) MoveOrder(_ context.Context, _, _, _, _ string, _, _ bool) (map[string]interface{}, error) {
	return nil, newError(ErrNotImplemented)
}

// Withdraw submits a withdrawal, reserving the funds until the next sweep
// confirms it.
func (a *Adapter) Withdraw(ctx context.Context, apiKey, currency, amount, addr, paymentID string) (map[string]interface{}, error) {
	currency, err := a.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}
	quantity, err := parseDecimal(amount, ErrInvalidAmount)
	if err != nil {
		return nil, err
	}
	if err := a.checkBalance(ctx, apiKey, quantity, currency); err != nil {
		return nil, err
	}
	addr, err = parseAddress(addr, currency)
	if err != nil {
		return nil, err
	}

	var payment *string
	if paymentID != "" {
		payment = &paymentID
	}
	_, err = a.executor.SendTransaction(ctx, services.SendTransactionParams{
		APIKey:    apiKey,
		Number:    a.getNumber(),
		Type:      models.TransactionTypeWithdrawal,
		Currency:  currency,
		Amount:    quantity,
		Address:   &addr,
		PaymentID: payment,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"response": fmt.Sprintf("Withdrew %s %s.", quantity, currency),
	}, nil
}

// FeeInfoView is the returnFeeInfo shape. Every simulated fill is taker.
type FeeInfoView struct {
	MakerFee        decimal.Decimal `json:"makerFee"`
	TakerFee        decimal.Decimal `json:"takerFee"`
	ThirtyDayVolume decimal.Decimal `json:"thirtyDayVolume"`
	NextTier        decimal.Decimal `json:"nextTier"`
}

// ReturnFeeInfo reports the simulated fee schedule.
func (a *Adapter) ReturnFeeInfo() FeeInfoView {
	return FeeInfoView{
		MakerFee: MakerFeePct,
		TakerFee: TakerFeePct,
	}
}

// ReturnAvailableAccountBalances reports per-account available balances;
// only the exchange account exists.
func (a *Adapter) ReturnAvailableAccountBalances(ctx context.Context, apiKey, account string) (interface{}, error) {
	if account != "" {
		if account != AccountExchange {
			return nil, newError(ErrInvalidAccount)
		}
		return a.ReturnBalances(ctx, apiKey)
	}
	balances, err := a.ReturnBalances(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{AccountExchange: balances}, nil
}

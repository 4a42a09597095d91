package bittrex

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
	"github.com/m-kus/testex/internal/services"
	"github.com/m-kus/testex/pkg/sign"
	"github.com/shopspring/decimal"
)

// Adapter glues the Bittrex dialect to the executor: authentication,
// request validation, the fee model and response formatting.
type Adapter struct {
	*Proxy
	executor *services.Executor
}

// NewAdapter creates the adapter over an upstream proxy and registers its
// custom logic with the executor.
func NewAdapter(executor *services.Executor, proxy *Proxy) *Adapter {
	if proxy == nil {
		proxy = NewProxy("")
	}
	a := &Adapter{Proxy: proxy, executor: executor}
	executor.RegisterAdapter(a)
	return a
}

// ExchangeID implements models.AdapterLogic.
func (a *Adapter) ExchangeID() string { return ID }

// ExtendOrder populates the derived fields per the Bittrex fee model:
// a flat 0.25% charged in the base currency, reserved up front for buys.
func (a *Adapter) ExtendOrder(order models.Order) models.Order {
	order.Total = models.Quantize(order.ExecutedAmount.Mul(order.AveragePrice))
	order.Fee = models.Quantize(order.Total.Mul(TradeFeePct))
	order.RemainingAmount = order.Amount.Sub(order.ExecutedAmount)

	if order.Direction == models.OrderDirectionBuy {
		order.Reserved = models.Quantize(order.Amount.Mul(order.Price))
		order.ReservedFee = models.Quantize(order.Reserved.Mul(TradeFeePct))
	} else {
		order.Reserved = order.Amount
		order.ReservedFee = decimal.Zero
	}
	return order
}

// Authenticate validates a signed request and returns the authenticated
// api key. The signature covers the full request URL, signed with the
// user's secret, which equals the key in this simulation.
func (a *Adapter) Authenticate(requestURL, nonce, apiKey, apiSign string) (string, error) {
	if nonce == "" {
		return "", newError(ErrNonceNotProvided)
	}
	if apiKey == "" {
		return "", newError(ErrAPIKeyNotProvided)
	}
	if apiSign == "" {
		return "", newError(ErrAPISignNotProvided)
	}

	apiSecret := apiKey
	if !sign.Equal(sign.Message(requestURL, apiSecret), apiSign) {
		return "", newError(ErrInvalidSignature)
	}
	return apiKey, nil
}

func (a *Adapter) checkBalance(ctx context.Context, apiKey string, amount decimal.Decimal, currency string) error {
	balance, err := a.executor.GetBalance(ctx, apiKey, currency)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance.Available) {
		return newError(ErrInsufficientFunds)
	}
	return nil
}

// SendOrder validates and places a buy or sell limit order, responding
// with the fresh order uuid.
func (a *Adapter) SendOrder(ctx context.Context, apiKey string, direction models.OrderDirection, market, quantity, rate string) (Response, error) {
	market, err := a.ParseMarket(market, false)
	if err != nil {
		return Response{}, err
	}
	amount, err := parseQuantity(quantity)
	if err != nil {
		return Response{}, err
	}
	price, err := parseRate(rate)
	if err != nil {
		return Response{}, err
	}

	markets, err := a.Markets()
	if err != nil {
		return Response{}, err
	}
	info := markets[market]

	if amount.LessThan(info.MinTradeSize) {
		return Response{}, newError(ErrMinTradeNotMet)
	}
	if amount.Mul(price).LessThan(MinTradeTotal) {
		return Response{}, newError(ErrDustTrade)
	}

	fundingCurrency := info.BaseCurrency
	if direction == models.OrderDirectionSell {
		fundingCurrency = info.MarketCurrency
	}
	if err := a.checkBalance(ctx, apiKey, amount, fundingCurrency); err != nil {
		return Response{}, err
	}

	number := uuid.NewString()
	_, err = a.executor.SendOrder(ctx, services.SendOrderParams{
		APIKey:         apiKey,
		Number:         number,
		ExchangeID:     ID,
		Market:         market,
		Direction:      direction,
		Type:           models.OrderTypeLimit,
		Price:          price,
		Amount:         amount,
		BaseCurrency:   info.BaseCurrency,
		MarketCurrency: info.MarketCurrency,
		FeeCurrency:    info.BaseCurrency,
	})
	if err != nil {
		return Response{}, err
	}
	return makeResponse(map[string]string{"uuid": number}), nil
}

// Cancel closes an open order. Closed or unknown orders are refused before
// the store-level update.
func (a *Adapter) Cancel(ctx context.Context, apiKey, orderUUID string) (Response, error) {
	orderUUID, err := parseUUID(orderUUID)
	if err != nil {
		return Response{}, err
	}
	order, err := a.executor.GetOrder(ctx, apiKey, orderUUID)
	if err != nil {
		return Response{}, err
	}
	if order == nil {
		return Response{}, newError(ErrInvalidOrder)
	}
	if !order.IsOpen() {
		return Response{}, newError(ErrOrderNotOpen)
	}

	if _, err := a.executor.CancelOrder(ctx, apiKey, orderUUID); err != nil {
		return Response{}, err
	}
	return makeResponse(nil), nil
}

// GetOpenOrders lists the open orders, optionally filtered by market.
func (a *Adapter) GetOpenOrders(ctx context.Context, apiKey, market string) (Response, error) {
	market, err := a.ParseMarket(market, true)
	if err != nil {
		return Response{}, err
	}
	orders, err := a.executor.GetOrders(ctx, apiKey, models.OrderStatusOpened, market)
	if err != nil {
		return Response{}, err
	}
	views := make([]OpenOrderView, 0, len(orders))
	for i := range orders {
		views = append(views, formatOpenOrder(&orders[i]))
	}
	return makeResponse(views), nil
}

// GetOrder returns one order in the single-order view.
func (a *Adapter) GetOrder(ctx context.Context, apiKey, orderUUID string) (Response, error) {
	orderUUID, err := parseUUID(orderUUID)
	if err != nil {
		return Response{}, err
	}
	order, err := a.executor.GetOrder(ctx, apiKey, orderUUID)
	if err != nil {
		return Response{}, err
	}
	if order == nil {
		return Response{}, newError(ErrInvalidOrder)
	}
	return makeResponse(formatSingleOrder(order)), nil
}

// GetOrderHistory lists closed orders, optionally filtered by market.
func (a *Adapter) GetOrderHistory(ctx context.Context, apiKey, market string) (Response, error) {
	market, err := a.ParseMarket(market, true)
	if err != nil {
		return Response{}, err
	}
	orders, err := a.executor.GetOrders(ctx, apiKey, models.OrderStatusClosed, market)
	if err != nil {
		return Response{}, err
	}
	views := make([]HistoryOrderView, 0, len(orders))
	for i := range orders {
		views = append(views, formatHistoryOrder(&orders[i]))
	}
	return makeResponse(views), nil
}

// GetBalances lists every ledger cell of the account.
func (a *Adapter) GetBalances(ctx context.Context, apiKey string) (Response, error) {
	balances, err := a.executor.GetBalances(ctx, apiKey)
	if err != nil {
		return Response{}, err
	}
	views := make([]BalanceView, 0, len(balances))
	for i := range balances {
		views = append(views, formatBalance(&balances[i]))
	}
	return makeResponse(views), nil
}

// GetBalance returns one ledger cell.
func (a *Adapter) GetBalance(ctx context.Context, apiKey, currency string) (Response, error) {
	currency, err := a.ParseCurrency(currency, false)
	if err != nil {
		return Response{}, err
	}
	balance, err := a.executor.GetBalance(ctx, apiKey, currency)
	if err != nil {
		return Response{}, err
	}
	return makeResponse(formatBalance(balance)), nil
}

// GetDepositAddress is not simulated; the exchange reports the address as
// still being generated.
func (a *Adapter) GetDepositAddress(_ context.Context, _ string, currency string) (Response, error) {
	if _, err := a.ParseCurrency(currency, false); err != nil {
		return Response{}, err
	}
	return Response{}, newError(ErrAddressGenerating)
}

// Withdraw submits a withdrawal, reserving the funds until the next sweep
// confirms it.
func (a *Adapter) Withdraw(ctx context.Context, apiKey, currency, quantity, addr, paymentID string) (Response, error) {
	currency, err := a.ParseCurrency(currency, false)
	if err != nil {
		return Response{}, err
	}
	amount, err := parseQuantity(quantity)
	if err != nil {
		return Response{}, err
	}
	addr, err = parseAddress(addr, currency)
	if err != nil {
		return Response{}, err
	}
	if err := a.checkBalance(ctx, apiKey, amount, currency); err != nil {
		return Response{}, err
	}

	currencies, err := a.Currencies()
	if err != nil {
		return Response{}, err
	}

	var payment *string
	if paymentID != "" {
		payment = &paymentID
	}
	number := uuid.NewString()
	_, err = a.executor.SendTransaction(ctx, services.SendTransactionParams{
		APIKey:    apiKey,
		Number:    number,
		Type:      models.TransactionTypeWithdrawal,
		Currency:  currency,
		Amount:    amount,
		Address:   &addr,
		Fee:       currencies[currency].TxFee,
		PaymentID: payment,
	})
	if err != nil {
		return Response{}, err
	}
	return makeResponse(map[string]string{"uuid": number}), nil
}

// GetWithdrawalHistory lists withdrawals, optionally filtered by currency.
func (a *Adapter) GetWithdrawalHistory(ctx context.Context, apiKey, currency string) (Response, error) {
	currency, err := a.ParseCurrency(currency, true)
	if err != nil {
		return Response{}, err
	}
	transactions, err := a.executor.GetTransactions(ctx, apiKey, interfaces.TransactionFilters{
		Type:     models.TransactionTypeWithdrawal,
		Currency: currency,
	})
	if err != nil {
		return Response{}, err
	}
	views := make([]WithdrawalView, 0, len(transactions))
	for i := range transactions {
		views = append(views, formatWithdrawal(&transactions[i]))
	}
	return makeResponse(views), nil
}

// GetDepositHistory lists deposits, optionally filtered by currency.
func (a *Adapter) GetDepositHistory(ctx context.Context, apiKey, currency string) (Response, error) {
	currency, err := a.ParseCurrency(currency, true)
	if err != nil {
		return Response{}, err
	}
	transactions, err := a.executor.GetTransactions(ctx, apiKey, interfaces.TransactionFilters{
		Type:     models.TransactionTypeDeposit,
		Currency: currency,
	})
	if err != nil {
		return Response{}, err
	}
	views := make([]DepositView, 0, len(transactions))
	for i := range transactions {
		views = append(views, formatDeposit(&transactions[i]))
	}
	return makeResponse(views), nil
}

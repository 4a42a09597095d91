package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
	"github.com/shopspring/decimal"
)

// DefaultNonExecuteProb is the probability that a sweep skips an open order
// without filling it.
const DefaultNonExecuteProb = 0.3

var (
	ErrAdapterNotRegistered = errors.New("adapter not registered")
	ErrOrderNotFound        = errors.New("order not found")
)

// TradePublisher receives every executed fill. Optional; the executor works
// without one.
type TradePublisher interface {
	Publish(trade models.Trade)
}

// Executor owns all mutation of orders, trades, transactions and balances.
// It is the only component allowed to increment balances; every bookkeeping
// event batches its deltas into a single increment call.
type Executor struct {
	orders       interfaces.OrderRepository
	trades       interfaces.TradeRepository
	transactions interfaces.TransactionRepository
	balances     interfaces.BalanceRepository

	rnd            Rand
	nonExecuteProb float64
	feed           TradePublisher
	logger         *log.Logger

	mu       sync.RWMutex
	adapters map[string]models.AdapterLogic
}

// NewExecutor creates an executor over the four repositories. A nil rnd
// falls back to a time-seeded source.
func NewExecutor(
	orders interfaces.OrderRepository,
	trades interfaces.TradeRepository,
	transactions interfaces.TransactionRepository,
	balances interfaces.BalanceRepository,
	rnd Rand,
) *Executor {
	if rnd == nil {
		rnd = NewRand()
	}
	return &Executor{
		orders:         orders,
		trades:         trades,
		transactions:   transactions,
		balances:       balances,
		rnd:            rnd,
		nonExecuteProb: DefaultNonExecuteProb,
		logger:         log.WithPrefix("executor"),
		adapters:       make(map[string]models.AdapterLogic),
	}
}

// SetNonExecuteProb overrides the default skip probability of the sweep.
func (e *Executor) SetNonExecuteProb(p float64) {
	e.nonExecuteProb = p
}

// AttachFeed wires a trade publisher that receives every fill.
func (e *Executor) AttachFeed(feed TradePublisher) {
	e.feed = feed
}

// RegisterAdapter registers an exchange's custom logic for derived-field
// computation.
func (e *Executor) RegisterAdapter(adapter models.AdapterLogic) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adapters[adapter.ExchangeID()] = adapter
}

// ExtendOrder populates the derived order fields using the owning
// exchange's fee model. Orders of unknown exchanges pass through unchanged.
func (e *Executor) ExtendOrder(order models.Order) models.Order {
	e.mu.RLock()
	adapter, ok := e.adapters[order.ExchangeID]
	e.mu.RUnlock()
	if !ok {
		return order
	}
	return adapter.ExtendOrder(order)
}

// SendOrderParams carries everything needed to open an order. The executor
// does not pre-check balances; callers must have validated sufficient funds.
type SendOrderParams struct {
	APIKey         string
	Number         string
	ExchangeID     string
	Market         string
	Direction      models.OrderDirection
	Type           models.OrderType
	Price          decimal.Decimal
	Amount         decimal.Decimal
	ExecutedAmount decimal.Decimal
	AveragePrice   decimal.Decimal
	BaseCurrency   string
	MarketCurrency string
	FeeCurrency    string
}

// SendOrder inserts a new opened order, reserves funds via the opening
// hook, and returns the extended order. The order row is persisted before
// any balance movement.
func (e *Executor) SendOrder(ctx context.Context, params SendOrderParams) (*models.Order, error) {
	order := models.Order{
		ID:             params.Number,
		APIKey:         params.APIKey,
		ExchangeID:     params.ExchangeID,
		Market:         params.Market,
		Direction:      params.Direction,
		Type:           params.Type,
		Price:          params.Price,
		Amount:         params.Amount,
		ExecutedAmount: params.ExecutedAmount,
		AveragePrice:   params.AveragePrice,
		BaseCurrency:   params.BaseCurrency,
		MarketCurrency: params.MarketCurrency,
		FeeCurrency:    params.FeeCurrency,
		Status:         models.OrderStatusOpened,
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.orders.Insert(ctx, &order); err != nil {
		return nil, err
	}

	extended := e.ExtendOrder(order)
	if err := e.onOrderOpened(ctx, &extended); err != nil {
		return nil, err
	}

	e.logger.Info("send_order",
		"direction", order.Direction, "amount", order.Amount,
		"currency", order.MarketCurrency, "price", order.Price,
		"base", order.BaseCurrency)
	return &extended, nil
}

// GetOrder returns the extended order, or nil when absent.
func (e *Executor) GetOrder(ctx context.Context, apiKey, number string) (*models.Order, error) {
	order, err := e.orders.GetByID(ctx, apiKey, number)
	if err != nil || order == nil {
		return nil, err
	}
	extended := e.ExtendOrder(*order)
	return &extended, nil
}

// GetOrders lists the extended orders of one api key by status, optionally
// filtered by market ("" means all markets).
func (e *Executor) GetOrders(ctx context.Context, apiKey string, status models.OrderStatus, market string) ([]models.Order, error) {
	orders, err := e.orders.ListByStatus(ctx, apiKey, status, market)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i] = e.ExtendOrder(orders[i])
	}
	return orders, nil
}

// CancelOrder closes an open order and releases its reservations. Returns
// nil when the order is absent or already closed (the store-level update is
// a no-op then; callers refuse earlier via their own status checks).
func (e *Executor) CancelOrder(ctx context.Context, apiKey, number string) (*models.Order, error) {
	order, err := e.orders.Close(ctx, apiKey, number, time.Now().UTC())
	if err != nil || order == nil {
		return nil, err
	}

	extended := e.ExtendOrder(*order)
	if err := e.onOrderClosed(ctx, &extended); err != nil {
		return nil, err
	}

	e.logger.Info("cancel_order",
		"direction", extended.Direction, "executed", extended.ExecutedAmount,
		"amount", extended.Amount, "currency", extended.MarketCurrency)
	return &extended, nil
}

// ExecuteOrder runs a single probabilistic fill step against one order.
// With probability nonExecuteProb nothing happens. Otherwise a trade of
// tradeAmount (or, when nil, an exponential draw with mean equal to the
// remaining amount, clipped to it) is recorded at the posted price, the
// order's execution state advances atomically, and a full fill closes and
// settles the order. Returns the updated extended order, or nil when the
// step was skipped or the order was concurrently closed.
func (e *Executor) ExecuteOrder(ctx context.Context, order models.Order, nonExecuteProb float64, tradeAmount *decimal.Decimal) (*models.Order, error) {
	if e.rnd.Float64() < nonExecuteProb {
		e.logger.Debug("execute_order: skip execution")
		return nil, nil
	}

	extended := e.ExtendOrder(order)

	amount := decimal.Zero
	if tradeAmount != nil {
		amount = *tradeAmount
	} else {
		remaining, _ := extended.RemainingAmount.Float64()
		drawn := decimal.NewFromFloat(e.rnd.ExpFloat64() * remaining)
		amount = decimal.Min(extended.RemainingAmount, drawn)
	}

	trade := models.Trade{
		ID:          uuid.NewString(),
		APIKey:      extended.APIKey,
		OrderNumber: extended.ID,
		Direction:   extended.Direction,
		Price:       extended.Price,
		Amount:      amount,
		Market:      extended.Market,
		CreatedAt:   time.Now().UTC(),
	}

	// Volume-weighted average from the pre-update state: order.Total is
	// old executed x old average.
	averagePrice := trade.Amount.Mul(trade.Price).Add(extended.Total).
		Div(trade.Amount.Add(extended.ExecutedAmount))

	status := models.OrderStatusOpened
	if trade.Amount.Equal(extended.RemainingAmount) {
		status = models.OrderStatusClosed
	}

	if err := e.trades.Insert(ctx, &trade); err != nil {
		return nil, err
	}

	updated, err := e.orders.ApplyFill(ctx, extended.ID, trade.Amount, averagePrice, status, trade.CreatedAt)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost the race against a concurrent close; the fill is dropped.
		e.logger.Warn("execute_order: order no longer open", "order", extended.ID)
		return nil, nil
	}

	result := e.ExtendOrder(*updated)
	if status == models.OrderStatusClosed {
		if err := e.onOrderClosed(ctx, &result); err != nil {
			return nil, err
		}
	}

	if e.feed != nil {
		e.feed.Publish(trade)
	}

	e.logger.Info("execute_order",
		"direction", trade.Direction, "amount", trade.Amount,
		"of", result.Amount, "currency", result.MarketCurrency,
		"price", trade.Price, "base", result.BaseCurrency)
	return &result, nil
}

// Process is the sweep run before and after every authenticated adapter
// call: every open order gets one execution step, then every unconfirmed
// transaction is confirmed.
func (e *Executor) Process(ctx context.Context) error {
	orders, err := e.orders.ListOpen(ctx)
	if err != nil {
		return err
	}
	for i := range orders {
		if _, err := e.ExecuteOrder(ctx, orders[i], e.nonExecuteProb, nil); err != nil {
			return err
		}
	}

	transactions, err := e.transactions.ListUnconfirmed(ctx)
	if err != nil {
		return err
	}
	for i := range transactions {
		if err := e.confirmTransaction(ctx, &transactions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) confirmTransaction(ctx context.Context, transaction *models.Transaction) error {
	confirmed, err := e.transactions.Confirm(ctx, transaction.APIKey, transaction.ID, time.Now().UTC())
	if err != nil || confirmed == nil {
		return err
	}
	return e.onTransactionConfirmed(ctx, confirmed)
}

// SendTransactionParams carries everything needed to submit a deposit or
// withdrawal. A zero Status means the initial non_authorized state.
type SendTransactionParams struct {
	APIKey    string
	Number    string
	Type      models.TransactionType
	Currency  string
	Amount    decimal.Decimal
	Address   *string
	Fee       decimal.Decimal
	PaymentID *string
	Status    models.TransactionStatus
	UpdatedAt *time.Time
}

// SendTransaction inserts a transaction in its initial state and applies
// the submission bookkeeping: withdrawals move available to frozen,
// deposits accrue pending.
func (e *Executor) SendTransaction(ctx context.Context, params SendTransactionParams) (*models.Transaction, error) {
	status := params.Status
	if status == "" {
		status = models.TransactionStatusNonAuthorized
	}

	transaction := models.Transaction{
		ID:        params.Number,
		APIKey:    params.APIKey,
		Type:      params.Type,
		Currency:  params.Currency,
		Amount:    params.Amount,
		Address:   params.Address,
		Fee:       params.Fee,
		PaymentID: params.PaymentID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: params.UpdatedAt,
	}

	if err := e.transactions.Insert(ctx, &transaction); err != nil {
		return nil, err
	}
	if err := e.onTransactionSubmitted(ctx, &transaction); err != nil {
		return nil, err
	}

	address := ""
	if transaction.Address != nil {
		address = *transaction.Address
	}
	e.logger.Info("send_transaction",
		"type", transaction.Type, "amount", transaction.Amount,
		"currency", transaction.Currency, "address", address)
	return &transaction, nil
}

// GetTransactions lists one api key's transactions with optional filters.
func (e *Executor) GetTransactions(ctx context.Context, apiKey string, filters interfaces.TransactionFilters) ([]models.Transaction, error) {
	return e.transactions.List(ctx, apiKey, filters)
}

// GetTrades lists one api key's fills with optional filters.
func (e *Executor) GetTrades(ctx context.Context, apiKey string, filters interfaces.TradeFilters) ([]models.Trade, error) {
	return e.trades.List(ctx, apiKey, filters)
}

// GetBalances lists every ledger cell of one api key.
func (e *Executor) GetBalances(ctx context.Context, apiKey string) ([]models.Balance, error) {
	return e.balances.ListByAPIKey(ctx, apiKey)
}

// GetBalance returns one ledger cell, zero-valued when the pair has never
// moved funds.
func (e *Executor) GetBalance(ctx context.Context, apiKey, currency string) (*models.Balance, error) {
	balance, err := e.balances.Get(ctx, apiKey, currency)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = &models.Balance{APIKey: apiKey, Currency: currency}
	}
	return balance, nil
}

// Deposit is the test-faucet shortcut: a transaction created pre-confirmed
// with its confirmation bookkeeping applied immediately.
func (e *Executor) Deposit(ctx context.Context, apiKey, currency string, quantity decimal.Decimal) error {
	now := time.Now().UTC()
	transaction, err := e.SendTransaction(ctx, SendTransactionParams{
		APIKey:    apiKey,
		Number:    uuid.NewString(),
		Type:      models.TransactionTypeDeposit,
		Currency:  currency,
		Amount:    quantity,
		Status:    models.TransactionStatusConfirmed,
		UpdatedAt: &now,
	})
	if err != nil {
		return err
	}
	return e.onTransactionConfirmed(ctx, transaction)
}

// Balance hooks: the only mutators of the balances collection. All deltas
// of one event go into a single increment batch.

func (e *Executor) onOrderOpened(ctx context.Context, order *models.Order) error {
	increments := models.BalanceIncrements{}

	reserveCurrency := order.BaseCurrency
	if order.Direction == models.OrderDirectionSell {
		reserveCurrency = order.MarketCurrency
	}
	increments[reserveCurrency] = models.BalanceDelta{
		Frozen:    order.Reserved,
		Available: order.Reserved.Neg(),
	}

	feeDelta := models.BalanceDelta{
		Frozen:    order.ReservedFee,
		Available: order.ReservedFee.Neg(),
	}
	increments[order.FeeCurrency] = increments[order.FeeCurrency].Add(feeDelta)

	return e.incrementBalances(ctx, order.APIKey, increments)
}

func (e *Executor) onOrderClosed(ctx context.Context, order *models.Order) error {
	increments := models.BalanceIncrements{}

	if order.Direction == models.OrderDirectionBuy {
		increments[order.BaseCurrency] = models.BalanceDelta{
			Frozen:    order.Reserved.Neg(),
			Available: order.Reserved.Sub(order.Total),
		}
		increments[order.MarketCurrency] = models.BalanceDelta{
			Available: order.ExecutedAmount,
		}
	} else {
		increments[order.MarketCurrency] = models.BalanceDelta{
			Frozen:    order.Reserved.Neg(),
			Available: order.Reserved.Sub(order.ExecutedAmount),
		}
		increments[order.BaseCurrency] = models.BalanceDelta{
			Available: order.Total,
		}
	}

	feeDelta := models.BalanceDelta{
		Frozen:    order.ReservedFee.Neg(),
		Available: order.ReservedFee.Sub(order.Fee),
	}
	increments[order.FeeCurrency] = increments[order.FeeCurrency].Add(feeDelta)

	return e.incrementBalances(ctx, order.APIKey, increments)
}

func (e *Executor) onTransactionSubmitted(ctx context.Context, transaction *models.Transaction) error {
	var delta models.BalanceDelta
	if transaction.Type == models.TransactionTypeWithdrawal {
		delta = models.BalanceDelta{
			Available: transaction.Amount.Neg(),
			Frozen:    transaction.Amount,
		}
	} else {
		delta = models.BalanceDelta{Pending: transaction.Amount}
	}
	return e.incrementBalances(ctx, transaction.APIKey, models.BalanceIncrements{
		transaction.Currency: delta,
	})
}

func (e *Executor) onTransactionConfirmed(ctx context.Context, transaction *models.Transaction) error {
	var delta models.BalanceDelta
	if transaction.Type == models.TransactionTypeWithdrawal {
		delta = models.BalanceDelta{Frozen: transaction.Amount.Neg()}
	} else {
		delta = models.BalanceDelta{
			Pending:   transaction.Amount.Neg(),
			Available: transaction.Amount,
		}
	}
	return e.incrementBalances(ctx, transaction.APIKey, models.BalanceIncrements{
		transaction.Currency: delta,
	})
}

func (e *Executor) incrementBalances(ctx context.Context, apiKey string, increments models.BalanceIncrements) error {
	if err := e.balances.Increment(ctx, apiKey, increments); err != nil {
		return fmt.Errorf("failed to increment balances: %w", err)
	}
	for currency, delta := range increments {
		e.logger.Debug("increment_balances", "currency", currency,
			"available", delta.Available, "frozen", delta.Frozen, "pending", delta.Pending)
	}
	return nil
}

// Package mocks provides in-memory implementations of the repository
// interfaces. The executor tests exercise real double-entry bookkeeping, so
// these fakes are functional stores with the same atomicity semantics as
// the PostgreSQL layer, not call recorders.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
	"github.com/shopspring/decimal"
)

// Store bundles the four in-memory collections behind one mutex.
type Store struct {
	mu           sync.Mutex
	orders       map[string]*models.Order
	trades       []*models.Trade
	transactions map[string]*models.Transaction
	balances     map[string]map[string]*models.Balance // api_key -> currency
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		orders:       make(map[string]*models.Order),
		transactions: make(map[string]*models.Transaction),
		balances:     make(map[string]map[string]*models.Balance),
	}
}

// Orders returns the order repository view of the store.
func (s *Store) Orders() interfaces.OrderRepository { return &orderRepo{s} }

// Trades returns the trade repository view of the store.
func (s *Store) Trades() interfaces.TradeRepository { return &tradeRepo{s} }

// Transactions returns the transaction repository view of the store.
func (s *Store) Transactions() interfaces.TransactionRepository { return &transactionRepo{s} }

// Balances returns the balance repository view of the store.
func (s *Store) Balances() interfaces.BalanceRepository { return &balanceRepo{s} }

type orderRepo struct{ s *Store }

func (r *orderRepo) Insert(_ context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *order
	r.s.orders[order.ID] = &clone
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, apiKey, id string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok || order.APIKey != apiKey {
		return nil, nil
	}
	clone := *order
	return &clone, nil
}

func (r *orderRepo) ListByStatus(_ context.Context, apiKey string, status models.OrderStatus, market string) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Order{}
	for _, order := range r.s.orders {
		if order.APIKey != apiKey || order.Status != status {
			continue
		}
		if market != "" && order.Market != market {
			continue
		}
		result = append(result, *order)
	}
	sortOrders(result)
	return result, nil
}

func (r *orderRepo) ListOpen(_ context.Context) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Order{}
	for _, order := range r.s.orders {
		if order.Status == models.OrderStatusOpened {
			result = append(result, *order)
		}
	}
	sortOrders(result)
	return result, nil
}

func (r *orderRepo) ApplyFill(_ context.Context, id string, fillAmount, averagePrice decimal.Decimal, status models.OrderStatus, updatedAt time.Time) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok || order.Status != models.OrderStatusOpened {
		return nil, nil
	}
	order.ExecutedAmount = order.ExecutedAmount.Add(fillAmount)
	order.AveragePrice = averagePrice
	order.Status = status
	at := updatedAt
	order.UpdatedAt = &at
	clone := *order
	return &clone, nil
}

func (r *orderRepo) Close(_ context.Context, apiKey, id string, updatedAt time.Time) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok || order.APIKey != apiKey || order.Status != models.OrderStatusOpened {
		return nil, nil
	}
	order.Status = models.OrderStatusClosed
	at := updatedAt
	order.UpdatedAt = &at
	clone := *order
	return &clone, nil
}

type tradeRepo struct{ s *Store }

func (r *tradeRepo) Insert(_ context.Context, trade *models.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *trade
	r.s.trades = append(r.s.trades, &clone)
	return nil
}

func (r *tradeRepo) List(_ context.Context, apiKey string, filters interfaces.TradeFilters) ([]models.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Trade{}
	for _, trade := range r.s.trades {
		if trade.APIKey != apiKey {
			continue
		}
		if filters.OrderNumber != "" && trade.OrderNumber != filters.OrderNumber {
			continue
		}
		if filters.Market != "" && trade.Market != filters.Market {
			continue
		}
		if filters.StartAt != nil && !trade.CreatedAt.After(*filters.StartAt) {
			continue
		}
		if filters.EndAt != nil && !trade.CreatedAt.Before(*filters.EndAt) {
			continue
		}
		result = append(result, *trade)
		if filters.Limit > 0 && len(result) == filters.Limit {
			break
		}
	}
	return result, nil
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Insert(_ context.Context, transaction *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *transaction
	r.s.transactions[transaction.ID] = &clone
	return nil
}

func (r *transactionRepo) List(_ context.Context, apiKey string, filters interfaces.TransactionFilters) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Transaction{}
	for _, transaction := range r.s.transactions {
		if transaction.APIKey != apiKey {
			continue
		}
		if filters.Type != "" && transaction.Type != filters.Type {
			continue
		}
		if filters.Currency != "" && transaction.Currency != filters.Currency {
			continue
		}
		if filters.StartAt != nil && !transaction.CreatedAt.After(*filters.StartAt) {
			continue
		}
		if filters.EndAt != nil && !transaction.CreatedAt.Before(*filters.EndAt) {
			continue
		}
		result = append(result, *transaction)
	}
	sortTransactions(result)
	return result, nil
}

func (r *transactionRepo) ListUnconfirmed(_ context.Context) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Transaction{}
	for _, transaction := range r.s.transactions {
		if transaction.Status != models.TransactionStatusConfirmed {
			result = append(result, *transaction)
		}
	}
	sortTransactions(result)
	return result, nil
}

func (r *transactionRepo) Confirm(_ context.Context, apiKey, id string, updatedAt time.Time) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	transaction, ok := r.s.transactions[id]
	if !ok || transaction.APIKey != apiKey {
		return nil, nil
	}
	transaction.Status = models.TransactionStatusConfirmed
	at := updatedAt
	transaction.UpdatedAt = &at
	clone := *transaction
	return &clone, nil
}

type balanceRepo struct{ s *Store }

func (r *balanceRepo) Get(_ context.Context, apiKey, currency string) (*models.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	balance, ok := r.s.balances[apiKey][currency]
	if !ok {
		return nil, nil
	}
	clone := *balance
	return &clone, nil
}

func (r *balanceRepo) ListByAPIKey(_ context.Context, apiKey string) ([]models.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Balance{}
	for _, balance := range r.s.balances[apiKey] {
		result = append(result, *balance)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Currency < result[j].Currency
	})
	return result, nil
}

func (r *balanceRepo) Increment(_ context.Context, apiKey string, increments models.BalanceIncrements) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cells, ok := r.s.balances[apiKey]
	if !ok {
		cells = make(map[string]*models.Balance)
		r.s.balances[apiKey] = cells
	}
	for currency, delta := range increments {
		balance, ok := cells[currency]
		if !ok {
			balance = &models.Balance{APIKey: apiKey, Currency: currency}
			cells[currency] = balance
		}
		balance.Available = balance.Available.Add(delta.Available)
		balance.Frozen = balance.Frozen.Add(delta.Frozen)
		balance.Pending = balance.Pending.Add(delta.Pending)
	}
	return nil
}

func sortOrders(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func sortTransactions(transactions []models.Transaction) {
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
	})
}

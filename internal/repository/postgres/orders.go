package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, api_key, exchange_id, market, direction, type, price, amount,
	executed_amount, average_price, base_currency, market_currency, fee_currency,
	status, created_at, updated_at`

type orderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a PostgreSQL order repository.
func NewOrderRepository(db *sqlx.DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Insert(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	return withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query,
			order.ID, order.APIKey, order.ExchangeID, order.Market,
			order.Direction, order.Type, order.Price, order.Amount,
			order.ExecutedAmount, order.AveragePrice, order.BaseCurrency,
			order.MarketCurrency, order.FeeCurrency, order.Status,
			order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return nil
	})
}

func (r *orderRepository) GetByID(ctx context.Context, apiKey, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND api_key = $2`

	var order models.Order
	err := withRetry(ctx, func() error {
		return r.db.GetContext(ctx, &order, query, id, apiKey)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) ListByStatus(ctx context.Context, apiKey string, status models.OrderStatus, market string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE api_key = $1 AND status = $2`
	args := []interface{}{apiKey, status}
	if market != "" {
		query += ` AND market = $3`
		args = append(args, market)
	}
	query += ` ORDER BY created_at`

	orders := []models.Order{}
	err := withRetry(ctx, func() error {
		return r.db.SelectContext(ctx, &orders, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) ListOpen(ctx context.Context) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at`

	orders := []models.Order{}
	err := withRetry(ctx, func() error {
		return r.db.SelectContext(ctx, &orders, query, models.OrderStatusOpened)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) ApplyFill(ctx context.Context, id string, fillAmount, averagePrice decimal.Decimal, status models.OrderStatus, updatedAt time.Time) (*models.Order, error) {
	// The status guard doubles as a CAS: a concurrent sweep that already
	// closed the order updates zero rows here.
	query := `
		UPDATE orders
		SET executed_amount = executed_amount + $1,
			average_price = $2,
			status = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING ` + orderColumns

	var order models.Order
	err := withRetry(ctx, func() error {
		return r.db.GetContext(ctx, &order, query,
			fillAmount, averagePrice, status, updatedAt, id, models.OrderStatusOpened)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to apply fill: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) Close(ctx context.Context, apiKey, id string, updatedAt time.Time) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND api_key = $4 AND status = $5
		RETURNING ` + orderColumns

	var order models.Order
	err := withRetry(ctx, func() error {
		return r.db.GetContext(ctx, &order, query,
			models.OrderStatusClosed, updatedAt, id, apiKey, models.OrderStatusOpened)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to close order: %w", err)
	}
	return &order, nil
}

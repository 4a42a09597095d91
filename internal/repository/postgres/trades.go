package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
)

const tradeColumns = `id, api_key, order_number, direction, price, amount, market, created_at`

type tradeRepository struct {
	db *sqlx.DB
}

// NewTradeRepository creates a PostgreSQL trade repository.
func NewTradeRepository(db *sqlx.DB) interfaces.TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Insert(ctx context.Context, trade *models.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	return withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query,
			trade.ID, trade.APIKey, trade.OrderNumber, trade.Direction,
			trade.Price, trade.Amount, trade.Market, trade.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
		return nil
	})
}

func (r *tradeRepository) List(ctx context.Context, apiKey string, filters interfaces.TradeFilters) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE api_key = $1`
	args := []interface{}{apiKey}
	argCount := 1

	if filters.OrderNumber != "" {
		argCount++
		query += fmt.Sprintf(" AND order_number = $%d", argCount)
		args = append(args, filters.OrderNumber)
	}
	if filters.Market != "" {
		argCount++
		query += fmt.Sprintf(" AND market = $%d", argCount)
		args = append(args, filters.Market)
	}
	if filters.StartAt != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at > $%d", argCount)
		args = append(args, *filters.StartAt)
	}
	if filters.EndAt != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at < $%d", argCount)
		args = append(args, *filters.EndAt)
	}

	query += " ORDER BY created_at"

	if filters.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
	}

	trades := []models.Trade{}
	err := withRetry(ctx, func() error {
		return r.db.SelectContext(ctx, &trades, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return trades, nil
}

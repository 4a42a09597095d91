package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/internal/repository/interfaces"
)

const balanceColumns = `id, api_key, currency, available, frozen, pending`

type balanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a PostgreSQL balance repository.
func NewBalanceRepository(db *sqlx.DB) interfaces.BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) Get(ctx context.Context, apiKey, currency string) (*models.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE api_key = $1 AND currency = $2`

	var balance models.Balance
	err := withRetry(ctx, func() error {
		return r.db.GetContext(ctx, &balance, query, apiKey, currency)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

func (r *balanceRepository) ListByAPIKey(ctx context.Context, apiKey string) ([]models.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE api_key = $1 ORDER BY currency`

	balances := []models.Balance{}
	err := withRetry(ctx, func() error {
		return r.db.SelectContext(ctx, &balances, query, apiKey)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	return balances, nil
}

func (r *balanceRepository) Increment(ctx context.Context, apiKey string, increments models.BalanceIncrements) error {
	// Upsert keeps the increment atomic even for the first movement of a
	// currency: the missing row is inserted in the same statement.
	query := `
		INSERT INTO balances (` + balanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (api_key, currency) DO UPDATE SET
			available = balances.available + EXCLUDED.available,
			frozen = balances.frozen + EXCLUDED.frozen,
			pending = balances.pending + EXCLUDED.pending`

	for currency, delta := range increments {
		err := withRetry(ctx, func() error {
			_, err := r.db.ExecContext(ctx, query,
				uuid.NewString(), apiKey, currency,
				delta.Available, delta.Frozen, delta.Pending,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to increment balance %s/%s: %w", apiKey, currency, err)
		}
	}
	return nil
}

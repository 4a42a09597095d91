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
)

const transactionColumns = `id, api_key, type, currency, amount, address, fee, payment_id,
	hash, confirmations, status, created_at, updated_at`

type transactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a PostgreSQL transaction repository.
func NewTransactionRepository(db *sqlx.DB) interfaces.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Insert(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	return withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query,
			transaction.ID, transaction.APIKey, transaction.Type,
			transaction.Currency, transaction.Amount, transaction.Address,
			transaction.Fee, transaction.PaymentID, transaction.Hash,
			transaction.Confirmations, transaction.Status,
			transaction.CreatedAt, transaction.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	})
}

func (r *transactionRepository) List(ctx context.Context, apiKey string, filters interfaces.TransactionFilters) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE api_key = $1`
	args := []interface{}{apiKey}
	argCount := 1

	if filters.Type != "" {
		argCount++
		query += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, filters.Type)
	}
	if filters.Currency != "" {
		argCount++
		query += fmt.Sprintf(" AND currency = $%d", argCount)
		args = append(args, filters.Currency)
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

	transactions := []models.Transaction{}
	err := withRetry(ctx, func() error {
		return r.db.SelectContext(ctx, &transactions, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) ListUnconfirmed(ctx context.Context) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE status <> $1 ORDER BY created_at`

	transactions := []models.Transaction{}
	err := withRetry(ctx, func() error {
		return r.db.SelectContext(ctx, &transactions, query, models.TransactionStatusConfirmed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query unconfirmed transactions: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) Confirm(ctx context.Context, apiKey, id string, updatedAt time.Time) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND api_key = $4
		RETURNING ` + transactionColumns

	var transaction models.Transaction
	err := withRetry(ctx, func() error {
		return r.db.GetContext(ctx, &transaction, query,
			models.TransactionStatusConfirmed, updatedAt, id, apiKey)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to confirm transaction: %w", err)
	}
	return &transaction, nil
}

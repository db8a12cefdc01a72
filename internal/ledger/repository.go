package ledger

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// ListNewestFirst returns every transaction ordered by timestamp descending.
	ListNewestFirst(ctx context.Context) ([]Transaction, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListNewestFirst(ctx context.Context) ([]Transaction, error) {
	txns := []Transaction{}
	query := `
		SELECT id, buyer_id, credit_id, amount, total_price, timestamp, txn_hash, COALESCE(receipt, '{}'::jsonb) AS receipt
		FROM transactions
		ORDER BY timestamp DESC, id DESC`
	if err := r.db.SelectContext(ctx, &txns, query); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

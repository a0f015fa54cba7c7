package repository

import (
	"context"
	"fmt"

	"refledger/database"
	"refledger/models"

	"github.com/shopspring/decimal"
)

// TransactionRepository implements the service.TransactionRepository interface
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

// newTransactionRepositoryWithTx creates a new transaction repository with a transaction
func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Create appends one ledger entry. Entries are immutable once written.
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, type, amount, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		txn.UserID,
		txn.Type,
		txn.Amount,
		txn.Description,
	).Scan(&txn.ID, &txn.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record transaction for user %d: %w", txn.UserID, err)
	}
	return nil
}

// GetByUser returns a user's ledger entries, newest-first.
func (r *TransactionRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// SumByUser returns the signed sum of a user's ledger entries. Always equals
// the user's stored balance when the ledger is consistent.
func (r *TransactionRepository) SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`

	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions for user %d: %w", userID, err)
	}
	return sum, nil
}

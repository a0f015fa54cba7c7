package repository

import (
	"context"
	"fmt"

	"refledger/database"
	"refledger/models"

	"github.com/jackc/pgx/v5"
)

// WithdrawalRepository implements the service.WithdrawalRepository interface
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

// newWithdrawalRepositoryWithTx creates a new withdrawal repository with a transaction
func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

const withdrawalColumns = `id, user_id, amount, payment_method, payment_details, status, admin_comment, processed_by, processed_at, created_at`

func scanWithdrawal(row pgx.Row) (*models.WithdrawalRequest, error) {
	var wr models.WithdrawalRequest
	err := row.Scan(
		&wr.ID,
		&wr.UserID,
		&wr.Amount,
		&wr.PaymentMethod,
		&wr.PaymentDetails,
		&wr.Status,
		&wr.AdminComment,
		&wr.ProcessedBy,
		&wr.ProcessedAt,
		&wr.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wr, nil
}

// Create inserts a new request in pending state.
func (r *WithdrawalRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (user_id, amount, payment_method, payment_details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		request.UserID,
		request.Amount,
		request.PaymentMethod,
		request.PaymentDetails,
		models.WithdrawalStatusPending,
	).Scan(&request.ID, &request.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create withdrawal request for user %d: %w", request.UserID, err)
	}
	request.Status = models.WithdrawalStatusPending
	return nil
}

// GetByID retrieves a request by id. Returns nil without error when not found.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	wr, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request %d: %w", id, err)
	}
	return wr, nil
}

// GetByIDForUpdate retrieves a request and takes a row-level lock for the
// duration of the enclosing transaction, serializing concurrent transitions.
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`

	wr, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock withdrawal request %d: %w", id, err)
	}
	return wr, nil
}

// UpdateStatus records an admin decision on a request.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id int64, status models.WithdrawalStatus, adminComment string, processedBy int64) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, admin_comment = $2, processed_by = $3, processed_at = NOW()
		WHERE id = $4
	`

	result, err := r.q.Exec(ctx, query, status, adminComment, processedBy, id)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal request %d not found", id)
	}
	return nil
}

// ListAll returns every request for the admin view: pending first, then
// approved, then terminal states, each group newest-first.
func (r *WithdrawalRepository) ListAll(ctx context.Context) ([]*models.WithdrawalRequest, error) {
	query := `
		SELECT wr.id, wr.user_id, wr.amount, wr.payment_method, wr.payment_details,
		       wr.status, wr.admin_comment, wr.processed_by, wr.processed_at, wr.created_at,
		       u.username, u.email, COALESCE(admin_user.username, '')
		FROM withdrawal_requests wr
		JOIN users u ON wr.user_id = u.id
		LEFT JOIN users admin_user ON wr.processed_by = admin_user.id
		ORDER BY
			CASE wr.status
				WHEN 'pending' THEN 1
				WHEN 'approved' THEN 2
				ELSE 3
			END,
			wr.created_at DESC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.WithdrawalRequest
	for rows.Next() {
		var wr models.WithdrawalRequest
		err := rows.Scan(
			&wr.ID,
			&wr.UserID,
			&wr.Amount,
			&wr.PaymentMethod,
			&wr.PaymentDetails,
			&wr.Status,
			&wr.AdminComment,
			&wr.ProcessedBy,
			&wr.ProcessedAt,
			&wr.CreatedAt,
			&wr.Username,
			&wr.Email,
			&wr.ProcessedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, &wr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawal requests: %w", err)
	}
	return requests, nil
}

// ListByUser returns one user's requests, newest-first.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64) ([]*models.WithdrawalRequest, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests for user %d: %w", userID, err)
	}
	defer rows.Close()

	var requests []*models.WithdrawalRequest
	for rows.Next() {
		var wr models.WithdrawalRequest
		err := rows.Scan(
			&wr.ID,
			&wr.UserID,
			&wr.Amount,
			&wr.PaymentMethod,
			&wr.PaymentDetails,
			&wr.Status,
			&wr.AdminComment,
			&wr.ProcessedBy,
			&wr.ProcessedAt,
			&wr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, &wr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawal requests: %w", err)
	}
	return requests, nil
}

package repository

import (
	"context"
	"fmt"

	"refledger/database"
	"refledger/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository implements the service.UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, email, username, balance, total_earned, referral_code, referred_by_id, is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Balance,
		&user.TotalEarned,
		&user.ReferralCode,
		&user.ReferredByID,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. Balance and total_earned start at zero.
func (r *UserRepository) Create(ctx context.Context, email, username, passwordHash, referralCode string, referredByID *int64) (*models.User, error) {
	query := `
		INSERT INTO users (email, username, password_hash, referral_code, referred_by_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, email, username, passwordHash, referralCode, referredByID))
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return user, nil
}

// GetByID retrieves a user by id. Returns nil without error when not found.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

// GetByEmail retrieves a user and their password hash by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	var user models.User
	var passwordHash string
	err := r.q.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Balance,
		&user.TotalEarned,
		&user.ReferralCode,
		&user.ReferredByID,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&passwordHash,
	)
	if err == pgx.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, passwordHash, nil
}

// GetByReferralCode retrieves a user by their referral code.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return user, nil
}

// GetReferrerID returns the referred_by_id pointer for a user, or nil when
// the user does not exist or has no referrer.
func (r *UserRepository) GetReferrerID(ctx context.Context, userID int64) (*int64, error) {
	query := `SELECT referred_by_id FROM users WHERE id = $1`

	var referrerID *int64
	err := r.q.QueryRow(ctx, query, userID).Scan(&referrerID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer for user %d: %w", userID, err)
	}
	return referrerID, nil
}

// AddEarnings credits a user's balance and total_earned atomically.
func (r *UserRepository) AddEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance + $1, total_earned = total_earned + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to add earnings for user %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// DeductBalance debits a user's balance with a single conditional update so
// that concurrent debits cannot drive the balance negative. Returns
// (false, nil) when the user exists but has insufficient funds.
func (r *UserRepository) DeductBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`

	result, err := r.q.Exec(ctx, query, amount, userID)
	if err != nil {
		return false, fmt.Errorf("failed to deduct balance for user %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		user, err := r.GetByID(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("failed to check user: %w", err)
		}
		if user == nil {
			return false, fmt.Errorf("user %d not found", userID)
		}
		return false, nil
	}
	return true, nil
}

// ReferralCodeExists reports whether a referral code is already assigned.
func (r *UserRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE referral_code = $1)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

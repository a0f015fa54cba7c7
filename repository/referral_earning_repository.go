package repository

import (
	"context"
	"fmt"

	"refledger/database"
	"refledger/models"

	"github.com/shopspring/decimal"
)

// ReferralEarningRepository implements the service.ReferralEarningRepository interface
type ReferralEarningRepository struct {
	q queryable
}

// NewReferralEarningRepository creates a new referral earning repository
func NewReferralEarningRepository(db *database.DB) *ReferralEarningRepository {
	return &ReferralEarningRepository{q: db.Pool}
}

// newReferralEarningRepositoryWithTx creates a new referral earning repository with a transaction
func newReferralEarningRepositoryWithTx(tx queryable) *ReferralEarningRepository {
	return &ReferralEarningRepository{q: tx}
}

// Create appends one commission row. Earnings are immutable once written.
func (r *ReferralEarningRepository) Create(ctx context.Context, earning *models.ReferralEarning) error {
	query := `
		INSERT INTO referral_earnings (user_id, referred_user_id, level, amount, percentage)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		earning.UserID,
		earning.ReferredUserID,
		earning.Level,
		earning.Amount,
		earning.Percentage,
	).Scan(&earning.ID, &earning.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record referral earning for user %d: %w", earning.UserID, err)
	}
	return nil
}

// GetLevelStats aggregates a user's earnings grouped by level. Levels with
// no activity are absent from the result.
func (r *ReferralEarningRepository) GetLevelStats(ctx context.Context, userID int64) ([]*models.ReferralLevelStats, error) {
	query := `
		SELECT level, COUNT(DISTINCT referred_user_id) AS count, SUM(amount) AS earned
		FROM referral_earnings
		WHERE user_id = $1
		GROUP BY level
		ORDER BY level
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level stats for user %d: %w", userID, err)
	}
	defer rows.Close()

	var stats []*models.ReferralLevelStats
	for rows.Next() {
		var s models.ReferralLevelStats
		if err := rows.Scan(&s.Level, &s.Count, &s.Earned); err != nil {
			return nil, fmt.Errorf("failed to scan level stats: %w", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate level stats: %w", err)
	}
	return stats, nil
}

// GetTotals returns a user's distinct referral count and summed earnings.
func (r *ReferralEarningRepository) GetTotals(ctx context.Context, userID int64) (int64, decimal.Decimal, error) {
	query := `
		SELECT COUNT(DISTINCT referred_user_id), COALESCE(SUM(amount), 0)
		FROM referral_earnings
		WHERE user_id = $1
	`

	var count int64
	var earned decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID).Scan(&count, &earned); err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to get referral totals for user %d: %w", userID, err)
	}
	return count, earned, nil
}

// GetRecentByUser returns a user's most recent earnings joined with the
// source user's identity, newest-first.
func (r *ReferralEarningRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]*models.ReferralEarningDetail, error) {
	query := `
		SELECT u.id, u.username, u.email, re.level, re.amount, re.created_at
		FROM referral_earnings re
		JOIN users u ON re.referred_user_id = u.id
		WHERE re.user_id = $1
		ORDER BY re.created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent earnings for user %d: %w", userID, err)
	}
	defer rows.Close()

	var details []*models.ReferralEarningDetail
	for rows.Next() {
		var d models.ReferralEarningDetail
		if err := rows.Scan(&d.UserID, &d.Username, &d.Email, &d.Level, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral earning detail: %w", err)
		}
		details = append(details, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referral earnings: %w", err)
	}
	return details, nil
}

// GetBySourceUser returns every earning produced by one registration.
func (r *ReferralEarningRepository) GetBySourceUser(ctx context.Context, referredUserID int64) ([]*models.ReferralEarning, error) {
	query := `
		SELECT id, user_id, referred_user_id, level, amount, percentage, created_at
		FROM referral_earnings
		WHERE referred_user_id = $1
		ORDER BY level
	`

	rows, err := r.q.Query(ctx, query, referredUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get earnings for source user %d: %w", referredUserID, err)
	}
	defer rows.Close()

	var earnings []*models.ReferralEarning
	for rows.Next() {
		var e models.ReferralEarning
		if err := rows.Scan(&e.ID, &e.UserID, &e.ReferredUserID, &e.Level, &e.Amount, &e.Percentage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral earning: %w", err)
		}
		earnings = append(earnings, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referral earnings: %w", err)
	}
	return earnings, nil
}

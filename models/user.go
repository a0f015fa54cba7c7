package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered account with a referral code and a spendable balance
type User struct {
	ID           int64           `db:"id"`
	Email        string          `db:"email"`
	Username     string          `db:"username"`
	Balance      decimal.Decimal `db:"balance"`
	TotalEarned  decimal.Decimal `db:"total_earned"`
	ReferralCode string          `db:"referral_code"`
	ReferredByID *int64          `db:"referred_by_id"`
	IsAdmin      bool            `db:"is_admin"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxReferralLevels is the depth of the upline walked on registration.
const MaxReferralLevels = 5

// ReferralLevelPercents is the fixed commission schedule, indexed by level (1..5).
// Values are whole percents of the registration bonus.
var ReferralLevelPercents = map[int]decimal.Decimal{
	1: decimal.NewFromInt(10),
	2: decimal.NewFromInt(5),
	3: decimal.NewFromInt(3),
	4: decimal.NewFromInt(2),
	5: decimal.NewFromInt(1),
}

// ReferralEarning represents one commission credited to an ancestor when a
// new user registers through their downline. Rows are append-only.
type ReferralEarning struct {
	ID             int64           `db:"id"`
	UserID         int64           `db:"user_id"`          // beneficiary
	ReferredUserID int64           `db:"referred_user_id"` // the registration that triggered the credit
	Level          int             `db:"level"`
	Amount         decimal.Decimal `db:"amount"`
	Percentage     decimal.Decimal `db:"percentage"`
	CreatedAt      time.Time       `db:"created_at"`
}

// ReferralLevelStats aggregates earnings for one level of a user's downline.
type ReferralLevelStats struct {
	Level      int             `db:"level"`
	Count      int64           `db:"count"`
	Earned     decimal.Decimal `db:"earned"`
	Percentage decimal.Decimal `db:"-"`
}

// ReferralEarningDetail is a recent-earnings listing row joined with the
// source user's identity.
type ReferralEarningDetail struct {
	UserID    int64           `db:"id"`
	Username  string          `db:"username"`
	Email     string          `db:"email"`
	Level     int             `db:"level"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt time.Time       `db:"created_at"`
}

// ReferralStats is the full per-user referral report.
type ReferralStats struct {
	Levels         map[int]*ReferralLevelStats
	TotalReferrals int64
	TotalEarnings  decimal.Decimal
	Recent         []*ReferralEarningDetail
}

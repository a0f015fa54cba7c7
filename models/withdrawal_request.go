package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the lifecycle state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusApproved  WithdrawalStatus = "approved"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
)

// ValidWithdrawalStatus reports whether s is a known status value.
func ValidWithdrawalStatus(s WithdrawalStatus) bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusCompleted:
		return true
	}
	return false
}

// WithdrawalRequest represents a user's request to withdraw funds. Created by
// the owner in pending; mutated only by admins thereafter.
type WithdrawalRequest struct {
	ID             int64            `db:"id"`
	UserID         int64            `db:"user_id"`
	Amount         decimal.Decimal  `db:"amount"`
	PaymentMethod  string           `db:"payment_method"`
	PaymentDetails string           `db:"payment_details"`
	Status         WithdrawalStatus `db:"status"`
	AdminComment   string           `db:"admin_comment"`
	ProcessedBy    *int64           `db:"processed_by"`
	ProcessedAt    *time.Time       `db:"processed_at"`
	CreatedAt      time.Time        `db:"created_at"`

	// Joined fields for admin listings
	Username        string `db:"-"`
	Email           string `db:"-"`
	ProcessedByName string `db:"-"`
}

// IsTerminal checks if the request is in a state that admits no further transitions
func (wr *WithdrawalRequest) IsTerminal() bool {
	return wr.Status == WithdrawalStatusRejected || wr.Status == WithdrawalStatusCompleted
}

// CanTransitionTo checks whether the state machine permits moving to next.
// pending -> approved | rejected; approved -> completed | rejected.
func (wr *WithdrawalRequest) CanTransitionTo(next WithdrawalStatus) bool {
	if wr.IsTerminal() {
		return false
	}
	switch wr.Status {
	case WithdrawalStatusPending:
		return next == WithdrawalStatusApproved || next == WithdrawalStatusRejected
	case WithdrawalStatusApproved:
		return next == WithdrawalStatusCompleted || next == WithdrawalStatusRejected
	}
	return false
}

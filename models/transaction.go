package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeReferral   TransactionType = "referral"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Transaction is an append-only ledger entry. Amount is signed: positive for
// credits, negative for debits. The sum of a user's transactions always
// equals their stored balance.
type Transaction struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Type        TransactionType `db:"type"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	CreatedAt   time.Time       `db:"created_at"`
}

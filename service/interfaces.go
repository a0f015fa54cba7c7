package service

import (
	"context"

	"refledger/events"
	"refledger/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user with zero balance
	Create(ctx context.Context, email, username, passwordHash, referralCode string, referredByID *int64) (*models.User, error)

	// GetByID retrieves a user by id, nil when not found
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// GetByEmail retrieves a user and their password hash by email, nil when not found
	GetByEmail(ctx context.Context, email string) (*models.User, string, error)

	// GetByReferralCode retrieves a user by referral code, nil when not found
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)

	// GetReferrerID returns a user's referred_by_id, nil when absent
	GetReferrerID(ctx context.Context, userID int64) (*int64, error)

	// AddEarnings credits balance and total_earned atomically
	AddEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error

	// DeductBalance debits balance with a conditional update; returns
	// (false, nil) on insufficient funds
	DeductBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)

	// ReferralCodeExists reports whether a referral code is taken
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// ReferralEarningRepository defines the interface for commission records
type ReferralEarningRepository interface {
	// Create appends one commission row
	Create(ctx context.Context, earning *models.ReferralEarning) error

	// GetLevelStats aggregates earnings by level for a beneficiary
	GetLevelStats(ctx context.Context, userID int64) ([]*models.ReferralLevelStats, error)

	// GetTotals returns distinct referral count and summed earnings
	GetTotals(ctx context.Context, userID int64) (int64, decimal.Decimal, error)

	// GetRecentByUser returns recent earnings with source user identity
	GetRecentByUser(ctx context.Context, userID int64, limit int) ([]*models.ReferralEarningDetail, error)

	// GetBySourceUser returns all earnings triggered by one registration
	GetBySourceUser(ctx context.Context, referredUserID int64) ([]*models.ReferralEarning, error)
}

// TransactionRepository defines the interface for the append-only ledger
type TransactionRepository interface {
	// Create appends one ledger entry
	Create(ctx context.Context, txn *models.Transaction) error

	// GetByUser returns a user's ledger entries, newest-first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error)

	// SumByUser returns the signed sum of a user's ledger entries
	SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// WithdrawalRepository defines the interface for withdrawal request data access
type WithdrawalRepository interface {
	// Create inserts a new request in pending state
	Create(ctx context.Context, request *models.WithdrawalRequest) error

	// GetByID retrieves a request by id, nil when not found
	GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error)

	// GetByIDForUpdate retrieves a request under a row-level lock
	GetByIDForUpdate(ctx context.Context, id int64) (*models.WithdrawalRequest, error)

	// UpdateStatus records an admin decision
	UpdateStatus(ctx context.Context, id int64, status models.WithdrawalStatus, adminComment string, processedBy int64) error

	// ListAll returns all requests in admin priority order
	ListAll(ctx context.Context) ([]*models.WithdrawalRequest, error)

	// ListByUser returns one user's requests, newest-first
	ListByUser(ctx context.Context, userID int64) ([]*models.WithdrawalRequest, error)
}

// UserService defines the interface for account operations
type UserService interface {
	// Register creates an account, propagates referral commissions, and
	// returns the new user with a signed token
	Register(ctx context.Context, email, username, password, referralCodeInput string) (*models.User, string, error)

	// Login checks credentials and returns the user with a signed token
	Login(ctx context.Context, email, password string) (*models.User, string, error)

	// GetByID retrieves a user
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// ValidateToken resolves a bearer token to a user id
	ValidateToken(token string) (int64, error)
}

// ReferralService defines the interface for referral chain operations
type ReferralService interface {
	// PropagateRegistrationBonus walks the upline from directReferrerID and
	// credits up to five levels of commission inside the caller's unit of
	// work. A missing ancestor terminates the walk without error.
	PropagateRegistrationBonus(ctx context.Context, uow UnitOfWork, newUserID, directReferrerID int64, baseBonus decimal.Decimal) error

	// GetStats returns a user's per-level referral report
	GetStats(ctx context.Context, userID int64) (*models.ReferralStats, error)
}

// WithdrawalService defines the interface for the withdrawal lifecycle
type WithdrawalService interface {
	// Create validates and inserts a pending request
	Create(ctx context.Context, userID int64, amount decimal.Decimal, paymentMethod, paymentDetails string) (*models.WithdrawalRequest, error)

	// Transition applies an admin decision; the balance debit happens
	// exactly once, on the transition into completed
	Transition(ctx context.Context, requestID, adminID int64, isAdmin bool, newStatus models.WithdrawalStatus, comment string) (*models.WithdrawalRequest, error)

	// List returns requests visible to the caller
	List(ctx context.Context, userID int64, isAdmin bool) ([]*models.WithdrawalRequest, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	ReferralEarningRepository() ReferralEarningRepository
	TransactionRepository() TransactionRepository
	WithdrawalRepository() WithdrawalRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}

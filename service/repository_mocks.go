package service

import (
	"context"

	"refledger/events"
	"refledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, email, username, passwordHash, referralCode string, referredByID *int64) (*models.User, error) {
	args := m.Called(ctx, email, username, passwordHash, referralCode, referredByID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *MockUserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetReferrerID(ctx context.Context, userID int64) (*int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int64), args.Error(1)
}

func (m *MockUserRepository) AddEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

// MockReferralEarningRepository is a mock implementation of ReferralEarningRepository
type MockReferralEarningRepository struct {
	mock.Mock
}

func (m *MockReferralEarningRepository) Create(ctx context.Context, earning *models.ReferralEarning) error {
	args := m.Called(ctx, earning)
	return args.Error(0)
}

func (m *MockReferralEarningRepository) GetLevelStats(ctx context.Context, userID int64) ([]*models.ReferralLevelStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReferralLevelStats), args.Error(1)
}

func (m *MockReferralEarningRepository) GetTotals(ctx context.Context, userID int64) (int64, decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockReferralEarningRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]*models.ReferralEarningDetail, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReferralEarningDetail), args.Error(1)
}

func (m *MockReferralEarningRepository) GetBySourceUser(ctx context.Context, referredUserID int64) ([]*models.ReferralEarning, error) {
	args := m.Called(ctx, referredUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReferralEarning), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) UpdateStatus(ctx context.Context, id int64, status models.WithdrawalStatus, adminComment string, processedBy int64) error {
	args := m.Called(ctx, id, status, adminComment, processedBy)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListAll(ctx context.Context) ([]*models.WithdrawalRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) ListByUser(ctx context.Context, userID int64) ([]*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WithdrawalRequest), args.Error(1)
}

// RecordingEventPublisher collects published events for assertions
type RecordingEventPublisher struct {
	Events []events.Event
}

func (p *RecordingEventPublisher) Publish(event events.Event) {
	p.Events = append(p.Events, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repositories are
// injected with SetRepositories; Begin/Commit/Rollback are regular testify
// expectations.
type MockUnitOfWork struct {
	mock.Mock
	userRepo       UserRepository
	earningRepo    ReferralEarningRepository
	txnRepo        TransactionRepository
	withdrawalRepo WithdrawalRepository
	publisher      *RecordingEventPublisher
}

// SetRepositories wires the mock repositories this unit of work hands out
func (m *MockUnitOfWork) SetRepositories(userRepo UserRepository, earningRepo ReferralEarningRepository, txnRepo TransactionRepository, withdrawalRepo WithdrawalRepository) {
	m.userRepo = userRepo
	m.earningRepo = earningRepo
	m.txnRepo = txnRepo
	m.withdrawalRepo = withdrawalRepo
	m.publisher = &RecordingEventPublisher{}
}

// PublishedEvents returns the events queued during the unit of work
func (m *MockUnitOfWork) PublishedEvents() []events.Event {
	if m.publisher == nil {
		return nil
	}
	return m.publisher.Events
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) ReferralEarningRepository() ReferralEarningRepository {
	return m.earningRepo
}

func (m *MockUnitOfWork) TransactionRepository() TransactionRepository {
	return m.txnRepo
}

func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository {
	return m.withdrawalRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.publisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

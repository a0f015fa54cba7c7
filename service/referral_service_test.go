package service

import (
	"context"
	"errors"
	"testing"

	"refledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func decimalEq(expected decimal.Decimal) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(expected)
	})
}

func ptrInt64(v int64) *int64 {
	return &v
}

func TestReferralService_Propagate_ThreeLevelChain(t *testing.T) {
	ctx := context.Background()

	// Setup mocks
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	// Chain: new user 4 referred by 3, 3 referred by 2, 2 referred by 1,
	// 1 has no referrer. Base bonus 100 yields 10 / 5 / 3.
	expectedBonuses := map[int64]decimal.Decimal{
		3: decimal.NewFromInt(10),
		2: decimal.NewFromInt(5),
		1: decimal.NewFromInt(3),
	}

	for referrerID, bonus := range expectedBonuses {
		referrerID, bonus := referrerID, bonus
		mockUserRepo.On("AddEarnings", ctx, referrerID, decimalEq(bonus)).Return(nil)
		mockEarningRepo.On("Create", ctx, mock.MatchedBy(func(e *models.ReferralEarning) bool {
			return e.UserID == referrerID &&
				e.ReferredUserID == 4 &&
				e.Amount.Equal(bonus)
		})).Return(nil)
		mockTxnRepo.On("Create", ctx, mock.MatchedBy(func(txn *models.Transaction) bool {
			return txn.UserID == referrerID &&
				txn.Type == models.TransactionTypeReferral &&
				txn.Amount.Equal(bonus)
		})).Return(nil)
	}

	mockUserRepo.On("GetReferrerID", ctx, int64(3)).Return(ptrInt64(2), nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(2)).Return(ptrInt64(1), nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(1)).Return(nil, nil)

	err := service.PropagateRegistrationBonus(ctx, mockUoW, 4, 3, decimal.NewFromInt(100))

	assert.NoError(t, err)
	mockUserRepo.AssertExpectations(t)
	mockEarningRepo.AssertExpectations(t)
	mockTxnRepo.AssertExpectations(t)
	mockUserRepo.AssertNumberOfCalls(t, "AddEarnings", 3)
	mockEarningRepo.AssertNumberOfCalls(t, "Create", 3)
}

func TestReferralService_Propagate_TruncatesAtFiveLevels(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	// Upline deeper than five levels: 10 <- 9 <- 8 <- ... <- 1.
	// Only users 9 down to 5 get credited.
	mockUserRepo.On("AddEarnings", ctx, mock.AnythingOfType("int64"), mock.AnythingOfType("decimal.Decimal")).Return(nil)
	mockEarningRepo.On("Create", ctx, mock.AnythingOfType("*models.ReferralEarning")).Return(nil)
	mockTxnRepo.On("Create", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	for id := int64(9); id > 1; id-- {
		mockUserRepo.On("GetReferrerID", ctx, id).Return(ptrInt64(id-1), nil).Maybe()
	}

	err := service.PropagateRegistrationBonus(ctx, mockUoW, 10, 9, decimal.NewFromInt(100))

	assert.NoError(t, err)
	mockUserRepo.AssertNumberOfCalls(t, "AddEarnings", models.MaxReferralLevels)
	mockEarningRepo.AssertNumberOfCalls(t, "Create", models.MaxReferralLevels)
	mockTxnRepo.AssertNumberOfCalls(t, "Create", models.MaxReferralLevels)
	// User 4 is level 6, never credited
	mockUserRepo.AssertNotCalled(t, "AddEarnings", ctx, int64(4), mock.Anything)
}

func TestReferralService_Propagate_SingleLevel(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	mockUserRepo.On("AddEarnings", ctx, int64(7), decimalEq(decimal.NewFromInt(10))).Return(nil)
	mockEarningRepo.On("Create", ctx, mock.MatchedBy(func(e *models.ReferralEarning) bool {
		return e.UserID == 7 && e.Level == 1 && e.Percentage.Equal(decimal.NewFromInt(10))
	})).Return(nil)
	mockTxnRepo.On("Create", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(7)).Return(nil, nil)

	err := service.PropagateRegistrationBonus(ctx, mockUoW, 8, 7, decimal.NewFromInt(100))

	assert.NoError(t, err)
	mockUserRepo.AssertExpectations(t)
	mockEarningRepo.AssertExpectations(t)
}

func TestReferralService_Propagate_CycleStopsWalk(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	// Corrupted chain: 2 -> 3 -> 2. Each ancestor is credited once; the
	// revisit stops the walk without error.
	mockUserRepo.On("AddEarnings", ctx, int64(2), mock.AnythingOfType("decimal.Decimal")).Return(nil).Once()
	mockUserRepo.On("AddEarnings", ctx, int64(3), mock.AnythingOfType("decimal.Decimal")).Return(nil).Once()
	mockEarningRepo.On("Create", ctx, mock.AnythingOfType("*models.ReferralEarning")).Return(nil)
	mockTxnRepo.On("Create", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(2)).Return(ptrInt64(3), nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(3)).Return(ptrInt64(2), nil)

	err := service.PropagateRegistrationBonus(ctx, mockUoW, 1, 2, decimal.NewFromInt(100))

	assert.NoError(t, err)
	mockUserRepo.AssertNumberOfCalls(t, "AddEarnings", 2)
}

func TestReferralService_Propagate_CreditFailureAborts(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	dbErr := errors.New("connection reset")

	mockUserRepo.On("AddEarnings", ctx, int64(3), mock.AnythingOfType("decimal.Decimal")).Return(nil)
	mockEarningRepo.On("Create", ctx, mock.AnythingOfType("*models.ReferralEarning")).Return(nil)
	mockTxnRepo.On("Create", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(3)).Return(ptrInt64(2), nil)
	mockUserRepo.On("AddEarnings", ctx, int64(2), mock.AnythingOfType("decimal.Decimal")).Return(dbErr)

	err := service.PropagateRegistrationBonus(ctx, mockUoW, 4, 3, decimal.NewFromInt(100))

	assert.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	// Level 2 never got past the failed credit
	mockEarningRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestReferralService_Propagate_RoundsFractionalBonuses(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	// 33.33 at 10% rounds to 3.33
	mockUserRepo.On("AddEarnings", ctx, int64(5), decimalEq(decimal.NewFromFloat(3.33))).Return(nil)
	mockEarningRepo.On("Create", ctx, mock.AnythingOfType("*models.ReferralEarning")).Return(nil)
	mockTxnRepo.On("Create", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	mockUserRepo.On("GetReferrerID", ctx, int64(5)).Return(nil, nil)

	err := service.PropagateRegistrationBonus(ctx, mockUoW, 6, 5, decimal.NewFromFloat(33.33))

	assert.NoError(t, err)
	mockUserRepo.AssertExpectations(t)
}

func TestReferralService_GetStats(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(1)).Return(&models.User{ID: 1, Username: "alice"}, nil)
	mockEarningRepo.On("GetLevelStats", ctx, int64(1)).Return([]*models.ReferralLevelStats{
		{Level: 1, Count: 3, Earned: decimal.NewFromInt(30)},
		{Level: 2, Count: 1, Earned: decimal.NewFromInt(5)},
	}, nil)
	mockEarningRepo.On("GetTotals", ctx, int64(1)).Return(int64(4), decimal.NewFromInt(35), nil)
	mockEarningRepo.On("GetRecentByUser", ctx, int64(1), 50).Return([]*models.ReferralEarningDetail{
		{UserID: 9, Username: "bob", Level: 1, Amount: decimal.NewFromInt(10)},
	}, nil)

	stats, err := service.GetStats(ctx, 1)

	assert.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Len(t, stats.Levels, models.MaxReferralLevels)
	assert.Equal(t, int64(3), stats.Levels[1].Count)
	assert.True(t, stats.Levels[1].Earned.Equal(decimal.NewFromInt(30)))
	// Idle levels still report the schedule percentage
	assert.Equal(t, int64(0), stats.Levels[5].Count)
	assert.True(t, stats.Levels[5].Percentage.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(4), stats.TotalReferrals)
	assert.True(t, stats.TotalEarnings.Equal(decimal.NewFromInt(35)))
	assert.Len(t, stats.Recent, 1)

	mockEarningRepo.AssertExpectations(t)
}

func TestReferralService_GetStats_UnknownUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockEarningRepo := new(MockReferralEarningRepository)
	mockTxnRepo := new(MockTransactionRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)

	mockUoW.SetRepositories(mockUserRepo, mockEarningRepo, mockTxnRepo, mockWithdrawalRepo)

	service := NewReferralService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(404)).Return(nil, nil)

	stats, err := service.GetStats(ctx, 404)

	assert.Nil(t, stats)
	assert.ErrorIs(t, err, ErrNotFound)
}

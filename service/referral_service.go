package service

import (
	"context"
	"fmt"

	"refledger/events"
	"refledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// recentEarningsLimit caps the recent-earnings listing in stats reports.
const recentEarningsLimit = 50

var oneHundred = decimal.NewFromInt(100)

// referralService implements the ReferralService interface
type referralService struct {
	uowFactory UnitOfWorkFactory
}

// NewReferralService creates a new referral service
func NewReferralService(uowFactory UnitOfWorkFactory) ReferralService {
	return &referralService{
		uowFactory: uowFactory,
	}
}

// PropagateRegistrationBonus walks the upline starting at directReferrerID
// (level 1), following each ancestor's referrer pointer up to level 5. Each
// ancestor reached is credited baseBonus scaled by the level's percentage,
// with one earning row and one ledger entry per credit. The caller's unit of
// work scopes the whole walk: any failure rolls back every level.
func (s *referralService) PropagateRegistrationBonus(ctx context.Context, uow UnitOfWork, newUserID, directReferrerID int64, baseBonus decimal.Decimal) error {
	currentID := directReferrerID

	// Referral assignment is set once at creation, so the chain should be
	// acyclic; the visited set turns a corrupted pointer into a normal stop.
	visited := map[int64]bool{newUserID: true}

	for level := 1; level <= models.MaxReferralLevels; level++ {
		if visited[currentID] {
			log.WithFields(log.Fields{
				"userID":    currentID,
				"newUserID": newUserID,
				"level":     level,
			}).Warn("Referral chain revisited an ancestor, stopping walk")
			return nil
		}
		visited[currentID] = true

		percentage := models.ReferralLevelPercents[level]
		bonus := baseBonus.Mul(percentage).Div(oneHundred).Round(2)

		if err := uow.UserRepository().AddEarnings(ctx, currentID, bonus); err != nil {
			return fmt.Errorf("failed to credit level %d referrer: %w", level, err)
		}

		earning := &models.ReferralEarning{
			UserID:         currentID,
			ReferredUserID: newUserID,
			Level:          level,
			Amount:         bonus,
			Percentage:     percentage,
		}
		if err := uow.ReferralEarningRepository().Create(ctx, earning); err != nil {
			return fmt.Errorf("failed to record level %d earning: %w", level, err)
		}

		txn := &models.Transaction{
			UserID:      currentID,
			Type:        models.TransactionTypeReferral,
			Amount:      bonus,
			Description: fmt.Sprintf("Level %d referral bonus from new user #%d", level, newUserID),
		}
		if err := RecordLedgerEntry(ctx, uow, txn); err != nil {
			return err
		}

		uow.EventBus().Publish(events.ReferralEarningRecordedEvent{
			UserID:         currentID,
			ReferredUserID: newUserID,
			Level:          level,
			Amount:         bonus,
		})

		nextID, err := uow.UserRepository().GetReferrerID(ctx, currentID)
		if err != nil {
			return fmt.Errorf("failed to resolve level %d referrer: %w", level+1, err)
		}
		if nextID == nil {
			// End of the upline, normal termination
			return nil
		}
		currentID = *nextID
	}

	return nil
}

// GetStats returns the per-level referral report for a user. Percentages for
// every level come from the fixed schedule, including levels with no activity.
func (s *referralService) GetStats(ctx context.Context, userID int64) (*models.ReferralStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	stats := &models.ReferralStats{
		Levels:        make(map[int]*models.ReferralLevelStats, models.MaxReferralLevels),
		TotalEarnings: decimal.Zero,
	}
	for level := 1; level <= models.MaxReferralLevels; level++ {
		stats.Levels[level] = &models.ReferralLevelStats{
			Level:      level,
			Earned:     decimal.Zero,
			Percentage: models.ReferralLevelPercents[level],
		}
	}

	levelStats, err := uow.ReferralEarningRepository().GetLevelStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level stats: %w", err)
	}
	for _, ls := range levelStats {
		stats.Levels[ls.Level].Count = ls.Count
		stats.Levels[ls.Level].Earned = ls.Earned
	}

	stats.TotalReferrals, stats.TotalEarnings, err = uow.ReferralEarningRepository().GetTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral totals: %w", err)
	}

	stats.Recent, err = uow.ReferralEarningRepository().GetRecentByUser(ctx, userID, recentEarningsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent earnings: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stats, nil
}

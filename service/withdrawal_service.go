package service

import (
	"context"
	"fmt"
	"strings"

	"refledger/events"
	"refledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// withdrawalService implements the WithdrawalService interface
type withdrawalService struct {
	uowFactory UnitOfWorkFactory
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(uowFactory UnitOfWorkFactory) WithdrawalService {
	return &withdrawalService{
		uowFactory: uowFactory,
	}
}

// Create validates and inserts a pending withdrawal request. The balance
// check here is advisory only: funds are not reserved, and the debit is
// re-validated when the request settles.
func (s *withdrawalService) Create(ctx context.Context, userID int64, amount decimal.Decimal, paymentMethod, paymentDetails string) (*models.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(paymentMethod) == "" || strings.TrimSpace(paymentDetails) == "" {
		return nil, ErrMissingFields
	}

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
	if user.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	request := &models.WithdrawalRequest{
		UserID:         userID,
		Amount:         amount,
		PaymentMethod:  strings.TrimSpace(paymentMethod),
		PaymentDetails: strings.TrimSpace(paymentDetails),
	}
	if err := uow.WithdrawalRepository().Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"requestID": request.ID,
		"userID":    userID,
		"amount":    amount,
	}).Info("Withdrawal request created")

	return request, nil
}

// Transition applies an admin decision to a request. The request row is
// locked for the duration, so concurrent decisions on the same request
// serialize and the loser sees the already-updated status. Settling into
// completed debits the owner's balance exactly once, conditionally; on
// insufficient funds the whole transition rolls back and the request keeps
// its prior status.
func (s *withdrawalService) Transition(ctx context.Context, requestID, adminID int64, isAdmin bool, newStatus models.WithdrawalStatus, comment string) (*models.WithdrawalRequest, error) {
	if !isAdmin {
		return nil, ErrForbidden
	}
	if !models.ValidWithdrawalStatus(newStatus) || newStatus == models.WithdrawalStatusPending {
		return nil, ErrInvalidTransition
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	request, err := uow.WithdrawalRepository().GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil {
		return nil, ErrNotFound
	}
	if !request.CanTransitionTo(newStatus) {
		return nil, ErrInvalidTransition
	}

	oldStatus := request.Status

	if newStatus == models.WithdrawalStatusCompleted {
		ok, err := uow.UserRepository().DeductBalance(ctx, request.UserID, request.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to debit balance: %w", err)
		}
		if !ok {
			return nil, ErrInsufficientBalance
		}

		txn := &models.Transaction{
			UserID:      request.UserID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      request.Amount.Neg(),
			Description: fmt.Sprintf("Withdrawal #%d payout", request.ID),
		}
		if err := RecordLedgerEntry(ctx, uow, txn); err != nil {
			return nil, err
		}
	}

	if err := uow.WithdrawalRepository().UpdateStatus(ctx, requestID, newStatus, comment, adminID); err != nil {
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}

	uow.EventBus().Publish(events.WithdrawalStatusChangeEvent{
		RequestID:   requestID,
		UserID:      request.UserID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Amount:      request.Amount,
		ProcessedBy: adminID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"requestID": requestID,
		"oldStatus": oldStatus,
		"newStatus": newStatus,
		"adminID":   adminID,
	}).Info("Withdrawal request transitioned")

	request.Status = newStatus
	request.AdminComment = comment
	request.ProcessedBy = &adminID
	return request, nil
}

// List returns the requests visible to the caller: everything in priority
// order for admins, the caller's own requests otherwise.
func (s *withdrawalService) List(ctx context.Context, userID int64, isAdmin bool) ([]*models.WithdrawalRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	var requests []*models.WithdrawalRequest
	var err error
	if isAdmin {
		requests, err = uow.WithdrawalRepository().ListAll(ctx)
	} else {
		requests, err = uow.WithdrawalRepository().ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return requests, nil
}

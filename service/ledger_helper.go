package service

import (
	"context"
	"fmt"

	"refledger/events"
	"refledger/models"
)

// RecordLedgerEntry appends the Transaction row that pairs a balance mutation
// and queues the balance change event. Every balance mutation in the system
// goes through this, in the same unit of work as the mutation itself, so the
// sum of a user's transactions always equals their stored balance.
func RecordLedgerEntry(ctx context.Context, uow UnitOfWork, txn *models.Transaction) error {
	if err := uow.TransactionRepository().Create(ctx, txn); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          txn.UserID,
		ChangeAmount:    txn.Amount,
		TransactionType: txn.Type,
	})

	return nil
}

package repository

import (
	"context"
	"fmt"

	"refledger/database"
	"refledger/events"
	"refledger/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus

	userRepo       service.UserRepository
	earningRepo    service.ReferralEarningRepository
	txnRepo        service.TransactionRepository
	withdrawalRepo service.WithdrawalRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepositoryWithTx(tx)
	u.earningRepo = newReferralEarningRepositoryWithTx(tx)
	u.txnRepo = newTransactionRepositoryWithTx(tx)
	u.withdrawalRepo = newWithdrawalRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction and discards pending events.
// No-op when the transaction was already committed.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Discard()
	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// ReferralEarningRepository returns the referral earning repository for this unit of work
func (u *unitOfWork) ReferralEarningRepository() service.ReferralEarningRepository {
	if u.earningRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.earningRepo
}

// TransactionRepository returns the ledger transaction repository for this unit of work
func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	if u.txnRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.txnRepo
}

// WithdrawalRepository returns the withdrawal repository for this unit of work
func (u *unitOfWork) WithdrawalRepository() service.WithdrawalRepository {
	if u.withdrawalRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.withdrawalRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}

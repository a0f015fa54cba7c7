package events

import (
	"context"
	"sync"

	"refledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeUserRegistered          EventType = "user_registered"
	EventTypeBalanceChange           EventType = "balance_change"
	EventTypeReferralEarningRecorded EventType = "referral_earning_recorded"
	EventTypeWithdrawalStatusChange  EventType = "withdrawal_status_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// UserRegisteredEvent represents a completed registration
type UserRegisteredEvent struct {
	UserID       int64
	Username     string
	ReferralCode string
	ReferredByID *int64
}

func (e UserRegisteredEvent) Type() EventType {
	return EventTypeUserRegistered
}

// BalanceChangeEvent represents a balance mutation that was committed
type BalanceChangeEvent struct {
	UserID          int64
	ChangeAmount    decimal.Decimal
	TransactionType models.TransactionType
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// ReferralEarningRecordedEvent represents one commission credited during an upline walk
type ReferralEarningRecordedEvent struct {
	UserID         int64 // beneficiary
	ReferredUserID int64
	Level          int
	Amount         decimal.Decimal
}

func (e ReferralEarningRecordedEvent) Type() EventType {
	return EventTypeReferralEarningRecorded
}

// WithdrawalStatusChangeEvent represents a withdrawal request state transition
type WithdrawalStatusChangeEvent struct {
	RequestID   int64
	UserID      int64
	OldStatus   models.WithdrawalStatus
	NewStatus   models.WithdrawalStatus
	Amount      decimal.Decimal
	ProcessedBy int64
}

func (e WithdrawalStatusChangeEvent) Type() EventType {
	return EventTypeWithdrawalStatusChange
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the caller
	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// TransactionalBus stashes events published during a unit of work and only
// forwards them to the real bus once the enclosing transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events; called after a successful DB commit.
func (b *TransactionalBus) Flush(ctx context.Context) {
	// Events outlive the transaction's context
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops pending events; called after rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

package event

import (
	"time"

	"github.com/google/uuid"
)

// DepositCredited credits settlement units to an account from the
// external boundary.
type DepositCredited struct {
	RequestID uuid.UUID `json:"request_id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *DepositCredited) IdempotencyKey() string { return e.RequestID.String() }
func (e *DepositCredited) EventType() EventType   { return EventTypeDepositCredited }
func (e *DepositCredited) MarketID() *uint64      { return nil }

// WithdrawalDebited debits settlement units out to the external boundary.
type WithdrawalDebited struct {
	RequestID uuid.UUID `json:"request_id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *WithdrawalDebited) IdempotencyKey() string { return e.RequestID.String() }
func (e *WithdrawalDebited) EventType() EventType   { return EventTypeWithdrawalDebited }
func (e *WithdrawalDebited) MarketID() *uint64      { return nil }

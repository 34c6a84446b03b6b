package event

import (
	"time"

	"github.com/google/uuid"
)

// SharesRedeemed records one winner's payout after resolution.
type SharesRedeemed struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	AccountID uuid.UUID `json:"account_id"`
	Shares    int64     `json:"shares"` // winning shares burned
	Payout    int64     `json:"payout"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *SharesRedeemed) IdempotencyKey() string { return e.RequestID.String() }
func (e *SharesRedeemed) EventType() EventType   { return EventTypeSharesRedeemed }
func (e *SharesRedeemed) MarketID() *uint64      { m := e.Market; return &m }

// SurplusWithdrawn records the terminal sweep of a settled market's pool.
type SurplusWithdrawn struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *SurplusWithdrawn) IdempotencyKey() string { return e.RequestID.String() }
func (e *SurplusWithdrawn) EventType() EventType   { return EventTypeSurplusWithdrawn }
func (e *SurplusWithdrawn) MarketID() *uint64      { m := e.Market; return &m }

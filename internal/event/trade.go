package event

import (
	"time"

	"github.com/google/uuid"
)

// SharesPurchased is the settled outcome of a buy.
// Idempotency key: request_id (UUID from the caller).
type SharesPurchased struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	AccountID uuid.UUID `json:"account_id"`
	Side      string    `json:"side"`   // "yes" or "no"
	Amount    int64     `json:"amount"` // shares
	Cost      int64     `json:"cost"`   // base cost into the pool
	FeeTotal  int64     `json:"fee_total"`
	Total     int64     `json:"total"` // cost + fees, debited from the buyer
	SpendCap  int64     `json:"spend_cap"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *SharesPurchased) IdempotencyKey() string {
	return e.RequestID.String()
}

func (e *SharesPurchased) EventType() EventType {
	return EventTypeSharesPurchased
}

func (e *SharesPurchased) MarketID() *uint64 {
	m := e.Market
	return &m
}

package event

import (
	"time"

	"github.com/google/uuid"
)

// FeesUpdated records a change to the protocol/LP fee rates.
type FeesUpdated struct {
	RequestID   uuid.UUID `json:"request_id"`
	ProtocolBps int64     `json:"protocol_bps"`
	LPBps       int64     `json:"lp_bps"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e *FeesUpdated) IdempotencyKey() string { return e.RequestID.String() }
func (e *FeesUpdated) EventType() EventType   { return EventTypeFeesUpdated }
func (e *FeesUpdated) MarketID() *uint64      { return nil }

// SplitUpdated records a change to the protocol fee split.
type SplitUpdated struct {
	RequestID uuid.UUID `json:"request_id"`
	DripPct   int64     `json:"drip_pct"`
	BrcPct    int64     `json:"brc_pct"`
	TeamPct   int64     `json:"team_pct"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *SplitUpdated) IdempotencyKey() string { return e.RequestID.String() }
func (e *SplitUpdated) EventType() EventType   { return EventTypeSplitUpdated }
func (e *SplitUpdated) MarketID() *uint64      { return nil }

// RecipientsUpdated records a change to the fee payout destinations.
type RecipientsUpdated struct {
	RequestID uuid.UUID `json:"request_id"`
	Drip      uuid.UUID `json:"drip"`
	Brc       uuid.UUID `json:"brc"`
	Team      uuid.UUID `json:"team"`
	LP        uuid.UUID `json:"lp"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *RecipientsUpdated) IdempotencyKey() string { return e.RequestID.String() }
func (e *RecipientsUpdated) EventType() EventType   { return EventTypeRecipientsUpdated }
func (e *RecipientsUpdated) MarketID() *uint64      { return nil }

// FeeConfigLocked latches the fee schedule immutable.
type FeeConfigLocked struct {
	RequestID uuid.UUID `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *FeeConfigLocked) IdempotencyKey() string { return e.RequestID.String() }
func (e *FeeConfigLocked) EventType() EventType   { return EventTypeFeeConfigLocked }
func (e *FeeConfigLocked) MarketID() *uint64      { return nil }

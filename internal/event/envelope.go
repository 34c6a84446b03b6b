package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMarketCreated
	EventTypeSharesPurchased
	EventTypeLiquidityAdded
	EventTypeMarketResolved
	EventTypeSharesRedeemed
	EventTypeSurplusWithdrawn
	EventTypeMarketPaused
	EventTypeMarketUnpaused
	EventTypeMaxTradeUpdated
	EventTypeFeesUpdated
	EventTypeSplitUpdated
	EventTypeRecipientsUpdated
	EventTypeFeeConfigLocked
	EventTypeDepositCredited
	EventTypeWithdrawalDebited
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from the originating request
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Market context (nil for global events)
	MarketID *uint64

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// MarketID returns the market context (nil for global events)
	MarketID() *uint64
}

func (et EventType) String() string {
	switch et {
	case EventTypeMarketCreated:
		return "MarketCreated"
	case EventTypeSharesPurchased:
		return "SharesPurchased"
	case EventTypeLiquidityAdded:
		return "LiquidityAdded"
	case EventTypeMarketResolved:
		return "MarketResolved"
	case EventTypeSharesRedeemed:
		return "SharesRedeemed"
	case EventTypeSurplusWithdrawn:
		return "SurplusWithdrawn"
	case EventTypeMarketPaused:
		return "MarketPaused"
	case EventTypeMarketUnpaused:
		return "MarketUnpaused"
	case EventTypeMaxTradeUpdated:
		return "MaxTradeUpdated"
	case EventTypeFeesUpdated:
		return "FeesUpdated"
	case EventTypeSplitUpdated:
		return "SplitUpdated"
	case EventTypeRecipientsUpdated:
		return "RecipientsUpdated"
	case EventTypeFeeConfigLocked:
		return "FeeConfigLocked"
	case EventTypeDepositCredited:
		return "DepositCredited"
	case EventTypeWithdrawalDebited:
		return "WithdrawalDebited"
	default:
		return "Unknown"
	}
}

// TypeFromString is the inverse of EventType.String, used when reading
// stored event rows back out of the log.
func TypeFromString(name string) EventType {
	switch name {
	case "MarketCreated":
		return EventTypeMarketCreated
	case "SharesPurchased":
		return EventTypeSharesPurchased
	case "LiquidityAdded":
		return EventTypeLiquidityAdded
	case "MarketResolved":
		return EventTypeMarketResolved
	case "SharesRedeemed":
		return EventTypeSharesRedeemed
	case "SurplusWithdrawn":
		return EventTypeSurplusWithdrawn
	case "MarketPaused":
		return EventTypeMarketPaused
	case "MarketUnpaused":
		return EventTypeMarketUnpaused
	case "MaxTradeUpdated":
		return EventTypeMaxTradeUpdated
	case "FeesUpdated":
		return EventTypeFeesUpdated
	case "SplitUpdated":
		return EventTypeSplitUpdated
	case "RecipientsUpdated":
		return EventTypeRecipientsUpdated
	case "FeeConfigLocked":
		return EventTypeFeeConfigLocked
	case "DepositCredited":
		return EventTypeDepositCredited
	case "WithdrawalDebited":
		return EventTypeWithdrawalDebited
	default:
		return EventTypeUnknown
	}
}

// Subject returns the lower-snake token used in stream subjects.
func (et EventType) Subject() string {
	switch et {
	case EventTypeMarketCreated:
		return "market_created"
	case EventTypeSharesPurchased:
		return "shares_purchased"
	case EventTypeLiquidityAdded:
		return "liquidity_added"
	case EventTypeMarketResolved:
		return "market_resolved"
	case EventTypeSharesRedeemed:
		return "shares_redeemed"
	case EventTypeSurplusWithdrawn:
		return "surplus_withdrawn"
	case EventTypeMarketPaused:
		return "market_paused"
	case EventTypeMarketUnpaused:
		return "market_unpaused"
	case EventTypeMaxTradeUpdated:
		return "max_trade_updated"
	case EventTypeFeesUpdated:
		return "fees_updated"
	case EventTypeSplitUpdated:
		return "split_updated"
	case EventTypeRecipientsUpdated:
		return "recipients_updated"
	case EventTypeFeeConfigLocked:
		return "fee_config_locked"
	case EventTypeDepositCredited:
		return "deposit_credited"
	case EventTypeWithdrawalDebited:
		return "withdrawal_debited"
	default:
		return "unknown"
	}
}

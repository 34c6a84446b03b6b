package event

import (
	"time"

	"github.com/google/uuid"
)

// MarketCreated records a new market and its opening calibration.
type MarketCreated struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	Seed      int64     `json:"seed"`
	Liquidity int64     `json:"liquidity"` // b, fixed-point
	Timestamp time.Time `json:"timestamp"`
}

func (e *MarketCreated) IdempotencyKey() string { return e.RequestID.String() }
func (e *MarketCreated) EventType() EventType   { return EventTypeMarketCreated }
func (e *MarketCreated) MarketID() *uint64      { m := e.Market; return &m }

// LiquidityAdded records a pool top-up and the resulting depth.
type LiquidityAdded struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	Amount    int64     `json:"amount"`
	Liquidity int64     `json:"liquidity"` // b after the top-up
	Timestamp time.Time `json:"timestamp"`
}

func (e *LiquidityAdded) IdempotencyKey() string { return e.RequestID.String() }
func (e *LiquidityAdded) EventType() EventType   { return EventTypeLiquidityAdded }
func (e *LiquidityAdded) MarketID() *uint64      { m := e.Market; return &m }

// MarketResolved finalizes the outcome.
type MarketResolved struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	Outcome   string    `json:"outcome"` // "YES" or "NO"
	Pool      int64     `json:"pool"`    // pool at resolution
	Timestamp time.Time `json:"timestamp"`
}

func (e *MarketResolved) IdempotencyKey() string { return e.RequestID.String() }
func (e *MarketResolved) EventType() EventType   { return EventTypeMarketResolved }
func (e *MarketResolved) MarketID() *uint64      { m := e.Market; return &m }

// MarketPaused suspends trading on a market.
type MarketPaused struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *MarketPaused) IdempotencyKey() string { return e.RequestID.String() }
func (e *MarketPaused) EventType() EventType   { return EventTypeMarketPaused }
func (e *MarketPaused) MarketID() *uint64      { m := e.Market; return &m }

// MarketUnpaused resumes trading on a market.
type MarketUnpaused struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *MarketUnpaused) IdempotencyKey() string { return e.RequestID.String() }
func (e *MarketUnpaused) EventType() EventType   { return EventTypeMarketUnpaused }
func (e *MarketUnpaused) MarketID() *uint64      { m := e.Market; return &m }

// MaxTradeUpdated changes the per-trade size limit; 0 removes it.
type MaxTradeUpdated struct {
	RequestID uuid.UUID `json:"request_id"`
	Market    uint64    `json:"market_id"`
	MaxTrade  int64     `json:"max_trade"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *MaxTradeUpdated) IdempotencyKey() string { return e.RequestID.String() }
func (e *MaxTradeUpdated) EventType() EventType   { return EventTypeMaxTradeUpdated }
func (e *MaxTradeUpdated) MarketID() *uint64      { m := e.Market; return &m }

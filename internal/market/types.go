package market

import (
	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/fpmath"
)

// Unit is the settlement-asset value of one winning share: each share on
// the winning side is worth Unit smallest settlement units at resolution
// (flat policy) and anchors the cost-curve calibration in both policies.
const Unit int64 = 100

// Side is one of the two binary outcomes a trade can back.
type Side uint8

const (
	SideYes Side = iota
	SideNo
)

func (s Side) String() string {
	if s == SideYes {
		return "yes"
	}
	return "no"
}

// Status is the per-market lifecycle state. Open and Paused toggle
// freely; Resolved is terminal.
type Status uint8

const (
	StatusOpen Status = iota
	StatusPaused
	StatusResolved
)

func (st Status) String() string {
	switch st {
	case StatusOpen:
		return "open"
	case StatusPaused:
		return "paused"
	case StatusResolved:
		return "resolved"
	}
	return "unknown"
}

// Outcome is the resolved result; meaningful only once Status is Resolved.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeYes
	OutcomeNo
)

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	}
	return "NONE"
}

// Winner returns the share side that pays out under this outcome.
func (o Outcome) Winner() Side {
	if o == OutcomeNo {
		return SideNo
	}
	return SideYes
}

// Market is the aggregate for a single binary market. It is owned
// exclusively by the Registry: all mutation goes through Registry
// methods and no other component holds a mutable reference.
//
// All monetary fields are int64 smallest settlement units and are kept
// non-negative by the mutation paths; b is fixed-point at fpmath.Scale.
type Market struct {
	ID        uint64
	Pool      int64
	B         int64
	YesSupply int64
	NoSupply  int64
	Status    Status
	Outcome   Outcome
	MaxTrade  int64 // 0 = unlimited

	yesBalances map[uuid.UUID]int64
	noBalances  map[uuid.UUID]int64
	spendCap    map[uuid.UUID]int64
	spent       map[uuid.UUID]int64
}

func newMarket(id uint64, seed int64) *Market {
	return &Market{
		ID:          id,
		Pool:        seed,
		B:           fpmath.LiquidityFromSeed(seed, Unit),
		Status:      StatusOpen,
		Outcome:     OutcomeNone,
		yesBalances: make(map[uuid.UUID]int64),
		noBalances:  make(map[uuid.UUID]int64),
		spendCap:    make(map[uuid.UUID]int64),
		spent:       make(map[uuid.UUID]int64),
	}
}

// Balance returns the account's share balance on one side.
func (m *Market) Balance(account uuid.UUID, side Side) int64 {
	if side == SideYes {
		return m.yesBalances[account]
	}
	return m.noBalances[account]
}

// Spent returns the account's cumulative spend (base cost plus fees).
func (m *Market) Spent(account uuid.UUID) int64 {
	return m.spent[account]
}

// Cap returns the account's spend cap; 0 means never raised.
func (m *Market) Cap(account uuid.UUID) int64 {
	return m.spendCap[account]
}

// Supply returns the outstanding shares on one side.
func (m *Market) Supply(side Side) int64 {
	if side == SideYes {
		return m.YesSupply
	}
	return m.NoSupply
}

// winningSupply is only meaningful once the market is resolved.
func (m *Market) winningSupply() int64 {
	return m.Supply(m.Outcome.Winner())
}

func (m *Market) creditShares(account uuid.UUID, side Side, amount int64) {
	if side == SideYes {
		m.yesBalances[account] += amount
		m.YesSupply += amount
	} else {
		m.noBalances[account] += amount
		m.NoSupply += amount
	}
}

func (m *Market) burnShares(account uuid.UUID, side Side, amount int64) {
	if side == SideYes {
		m.yesBalances[account] -= amount
		m.YesSupply -= amount
	} else {
		m.noBalances[account] -= amount
		m.NoSupply -= amount
	}
}

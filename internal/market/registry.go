package market

import (
	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/fpmath"
)

// Registry owns every market aggregate, keyed by market id. Markets are
// never deleted. The registry is pure state: it validates and mutates
// aggregates but never touches the settlement ledger — the engine
// orchestrates transfers around these calls inside one critical section.
//
// Not safe for concurrent use; the owning engine serializes access.
type Registry struct {
	markets map[uint64]*Market
	fees    *FeeConfig
	policy  RedemptionPolicy
}

func NewRegistry(policy RedemptionPolicy) *Registry {
	return &Registry{
		markets: make(map[uint64]*Market),
		fees:    NewFeeConfig(),
		policy:  policy,
	}
}

// Fees exposes the global fee config for governance and quoting.
func (r *Registry) Fees() *FeeConfig {
	return r.fees
}

// Policy returns the configured redemption policy.
func (r *Registry) Policy() RedemptionPolicy {
	return r.policy
}

// Get returns the market aggregate, or nil when the id is unknown.
func (r *Registry) Get(id uint64) *Market {
	return r.markets[id]
}

// IDs returns every known market id in unspecified order.
func (r *Registry) IDs() []uint64 {
	ids := make([]uint64, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	return ids
}

// Create initializes a new market from seed liquidity. The seed is the
// opening pool balance and calibrates b; supplies start at zero.
func (r *Registry) Create(id uint64, seed int64) (*Market, error) {
	if _, ok := r.markets[id]; ok {
		return nil, ErrMarketExists
	}
	if seed <= 0 {
		return nil, ErrZeroLiquidity
	}

	m := newMarket(id, seed)
	r.markets[id] = m
	return m, nil
}

// QuoteBuy prices a purchase without touching state. The committed buy
// reproduces these exact numbers when no trade intervenes.
func (r *Registry) QuoteBuy(id uint64, side Side, amount int64) (FeeBreakdown, error) {
	m := r.markets[id]
	if m == nil {
		return FeeBreakdown{}, ErrNotInitialized
	}
	if amount <= 0 {
		return FeeBreakdown{}, ErrZeroAmount
	}

	var dy, dn int64
	if side == SideYes {
		dy = amount
	} else {
		dn = amount
	}
	cost := fpmath.CostDelta(m.YesSupply, m.NoSupply, m.B, dy, dn, Unit)
	return r.fees.Quote(cost), nil
}

// Buy executes a direct purchase under the account's existing spend cap.
// Direct buys carry no slippage bound; use BuyAuto for one.
func (r *Registry) Buy(id uint64, side Side, amount int64, account uuid.UUID) (FeeBreakdown, error) {
	return r.executeBuy(id, side, amount, account, TradeCheck{Amount: amount})
}

// BuyAuto executes a purchase, first raising the account's spend cap to
// targetCap when that exceeds the current cap, and enforcing the
// maxCost slippage bound on the quoted total.
func (r *Registry) BuyAuto(id uint64, side Side, amount int64, account uuid.UUID, targetCap, maxCost int64) (FeeBreakdown, error) {
	return r.executeBuy(id, side, amount, account, TradeCheck{
		Amount:    amount,
		MaxCost:   maxCost,
		Auto:      true,
		TargetCap: targetCap,
	})
}

// executeBuy quotes, validates, then applies. All checks complete before
// the first write, so a failure leaves market and account state intact.
func (r *Registry) executeBuy(id uint64, side Side, amount int64, account uuid.UUID, chk TradeCheck) (FeeBreakdown, error) {
	m := r.markets[id]
	if m == nil {
		return FeeBreakdown{}, ErrNotInitialized
	}

	var quote FeeBreakdown
	if amount > 0 {
		var dy, dn int64
		if side == SideYes {
			dy = amount
		} else {
			dn = amount
		}
		cost := fpmath.CostDelta(m.YesSupply, m.NoSupply, m.B, dy, dn, Unit)
		quote = r.fees.Quote(cost)
	}
	chk.Total = quote.Total

	cap, err := ValidateTrade(m, account, chk)
	if err != nil {
		return FeeBreakdown{}, err
	}

	m.Pool += quote.Cost
	m.creditShares(account, side, amount)
	m.spent[account] += quote.Total
	m.spendCap[account] = cap
	return quote, nil
}

// AddLiquidity tops up the pool and recalibrates b upward. Allowed while
// paused, never after resolution. Outstanding positions keep their
// priced history; only forward quotes see the deeper book.
func (r *Registry) AddLiquidity(id uint64, amount int64) error {
	m := r.markets[id]
	if m == nil {
		return ErrNotInitialized
	}
	if m.Status == StatusResolved {
		return ErrTradingClosed
	}
	if amount <= 0 {
		return ErrZeroLiquidity
	}

	m.Pool += amount
	m.B += fpmath.LiquidityFromSeed(amount, Unit)
	return nil
}

// Pause suspends trading. No-op when already paused.
func (r *Registry) Pause(id uint64) error {
	m := r.markets[id]
	if m == nil {
		return ErrNotInitialized
	}
	if m.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	m.Status = StatusPaused
	return nil
}

// Unpause resumes trading. No-op when already open.
func (r *Registry) Unpause(id uint64) error {
	m := r.markets[id]
	if m == nil {
		return ErrNotInitialized
	}
	if m.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	m.Status = StatusOpen
	return nil
}

// SetMaxTrade updates the per-trade size limit; 0 removes it.
func (r *Registry) SetMaxTrade(id uint64, amount int64) error {
	m := r.markets[id]
	if m == nil {
		return ErrNotInitialized
	}
	m.MaxTrade = amount
	return nil
}

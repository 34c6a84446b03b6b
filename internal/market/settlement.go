package market

import (
	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/fpmath"
)

// RedemptionPolicy selects how winning shares convert to settlement
// units after resolution.
type RedemptionPolicy uint8

const (
	// PolicyProRata pays floor(pool·bal/winningSupply) per redemption;
	// the last claimer sweeps the entire remaining pool so no rounding
	// dust is ever stranded. The default.
	PolicyProRata RedemptionPolicy = iota

	// PolicyFlat pays bal·Unit per redemption. Resolve performs a
	// solvency precheck (pool ≥ winningSupply·Unit); the residue left
	// after all winners claim exits via WithdrawSurplus.
	PolicyFlat
)

func (p RedemptionPolicy) String() string {
	if p == PolicyFlat {
		return "flat"
	}
	return "pro-rata"
}

// Resolve finalizes the market outcome. Terminal: a second call fails
// and no further buys ever succeed.
func (r *Registry) Resolve(id uint64, outcome Outcome) error {
	m := r.markets[id]
	if m == nil {
		return ErrNotInitialized
	}
	if m.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	if outcome != OutcomeYes && outcome != OutcomeNo {
		return ErrInvalidOutcome
	}
	if r.policy == PolicyFlat {
		winning := m.Supply(outcome.Winner())
		if m.Pool < winning*Unit {
			return ErrPoolInsolvent
		}
	}

	m.Status = StatusResolved
	m.Outcome = outcome
	return nil
}

// Redeem pays out the caller's winning-side balance and burns it.
// Losing-side balances become worthless but are never force-burned.
func (r *Registry) Redeem(id uint64, account uuid.UUID) (int64, error) {
	m := r.markets[id]
	if m == nil {
		return 0, ErrNotInitialized
	}
	if m.Status != StatusResolved {
		return 0, ErrNotResolved
	}

	winner := m.Outcome.Winner()
	supply := m.Supply(winner)
	if supply == 0 {
		return 0, ErrNoWinningSupply
	}
	bal := m.Balance(account, winner)
	if bal == 0 {
		return 0, ErrNothingToRedeem
	}

	var payout int64
	switch {
	case r.policy == PolicyFlat:
		payout = bal * Unit
	case bal == supply:
		// Last claimer sweeps the remainder, rounding dust included.
		payout = m.Pool
	default:
		payout = fpmath.MulDiv(m.Pool, bal, supply, fpmath.RoundDown)
	}

	m.burnShares(account, winner, bal)
	m.Pool -= payout
	return payout, nil
}

// WithdrawSurplus drains the leftover pool once no winning claim can
// ever arrive. Returns the swept amount.
func (r *Registry) WithdrawSurplus(id uint64) (int64, error) {
	m := r.markets[id]
	if m == nil {
		return 0, ErrNotInitialized
	}
	if m.Status != StatusResolved {
		return 0, ErrWithdrawUnsettled
	}
	if m.winningSupply() != 0 {
		return 0, ErrWithdrawClaimable
	}
	if m.Pool == 0 {
		return 0, ErrWithdrawEmpty
	}

	surplus := m.Pool
	m.Pool = 0
	return surplus, nil
}

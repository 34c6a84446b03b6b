package market

import "github.com/google/uuid"

// TradeCheck carries the already-quoted numbers a trade must satisfy.
// Total comes from FeeConfig.Quote over the CostDelta of the same
// request; the guard itself never prices anything.
type TradeCheck struct {
	Amount    int64
	Total     int64
	MaxCost   int64 // 0 = no slippage bound (direct buys)
	Auto      bool
	TargetCap int64 // auto only: raise the cap to this before checking
}

// ValidateTrade runs every trade precondition in contract order and
// returns the spend cap the trade should commit under. It is pure: the
// returned cap is only written back by the registry once the whole
// trade succeeds, so a failed call leaves all state untouched.
//
// Check order: not-initialized, paused, resolved, zero amount, max
// trade size, cap-not-set (direct only), cap, slippage.
func ValidateTrade(m *Market, account uuid.UUID, chk TradeCheck) (int64, error) {
	if m == nil {
		return 0, ErrNotInitialized
	}
	if m.Status == StatusPaused {
		return 0, ErrPaused
	}
	if m.Status == StatusResolved {
		return 0, ErrTradingClosed
	}
	if chk.Amount <= 0 {
		return 0, ErrZeroAmount
	}
	if m.MaxTrade != 0 && chk.Amount > m.MaxTrade {
		return 0, ErrTradeTooLarge
	}

	cap := m.Cap(account)
	if chk.Auto && chk.TargetCap > cap {
		cap = chk.TargetCap
	}
	if !chk.Auto && cap == 0 {
		return 0, ErrCapNotSet
	}
	if m.Spent(account)+chk.Total > cap {
		return 0, ErrCapExceeded
	}
	if chk.MaxCost > 0 && chk.Total > chk.MaxCost {
		return 0, ErrSlippageExceeded
	}

	return cap, nil
}

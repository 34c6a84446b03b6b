package market

import "fmt"

// Error is a categorical engine failure with a stable numeric code.
// Callers branch on the error value (errors.Is) or on Code over the
// wire; the code space is part of the public contract and never reused.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("market: %s (u%d)", e.Message, e.Code)
}

// Lifecycle errors.
var (
	ErrNotInitialized  = &Error{Code: 721, Message: "market not initialized"}
	ErrTradingClosed   = &Error{Code: 100, Message: "market is resolved, no further trades"}
	ErrInvalidOutcome  = &Error{Code: 101, Message: "outcome must be YES or NO"}
	ErrAlreadyResolved = &Error{Code: 102, Message: "market already resolved"}
	ErrNotResolved     = &Error{Code: 104, Message: "market not resolved"}
)

// Trade guard errors.
var (
	ErrPaused            = &Error{Code: 720, Message: "market paused"}
	ErrZeroAmount        = &Error{Code: 704, Message: "amount must be positive"}
	ErrTradeTooLarge     = &Error{Code: 722, Message: "amount exceeds max trade size"}
	ErrCapNotSet         = &Error{Code: 730, Message: "spend cap not set"}
	ErrCapExceeded       = &Error{Code: 731, Message: "spend cap exceeded"}
	ErrSlippageExceeded  = &Error{Code: 732, Message: "total exceeds max cost"}
	ErrInsufficientFunds = &Error{Code: 1, Message: "insufficient settlement balance"}
)

// Settlement errors.
var (
	ErrNoWinningSupply   = &Error{Code: 105, Message: "no winning supply to redeem against"}
	ErrNothingToRedeem   = &Error{Code: 106, Message: "no winning shares held"}
	ErrWithdrawUnsettled = &Error{Code: 707, Message: "cannot withdraw before resolution"}
	ErrWithdrawClaimable = &Error{Code: 708, Message: "winning supply outstanding"}
	ErrWithdrawEmpty     = &Error{Code: 710, Message: "pool is empty"}
	ErrPoolInsolvent     = &Error{Code: 711, Message: "pool cannot cover winning supply at unit rate"}
)

// Configuration errors.
var (
	ErrZeroLiquidity     = &Error{Code: 702, Message: "liquidity amount must be positive"}
	ErrMarketExists      = &Error{Code: 703, Message: "market id already exists"}
	ErrNotAdmin          = &Error{Code: 706, Message: "caller is not the admin"}
	ErrProtocolBpsRange  = &Error{Code: 740, Message: "protocol fee bps out of range"}
	ErrLPBpsRange        = &Error{Code: 741, Message: "lp fee bps out of range"}
	ErrSplitNotHundred   = &Error{Code: 742, Message: "protocol split must sum to 100"}
	ErrFeeConfigLocked   = &Error{Code: 743, Message: "fee config is locked"}
)

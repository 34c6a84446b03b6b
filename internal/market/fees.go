package market

import (
	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/fpmath"
)

const (
	bpsDenominator   = 10_000
	splitDenominator = 100
)

// FeeRecipients are the four payout destinations for trade fees.
type FeeRecipients struct {
	Drip uuid.UUID
	Brc  uuid.UUID
	Team uuid.UUID
	LP   uuid.UUID
}

// FeeConfig is the global fee schedule shared by every market. Once
// Locked is set, every mutating setter fails with ErrFeeConfigLocked;
// the latch is one-way.
type FeeConfig struct {
	ProtocolBps int64
	LPBps       int64

	// Protocol fee split, must always sum to exactly 100.
	DripPct int64
	BrcPct  int64
	TeamPct int64

	Recipients FeeRecipients
	Locked     bool
}

// NewFeeConfig returns the zero-fee default: no fees, the team side of
// the split carrying the full 100 so the invariant holds from genesis.
func NewFeeConfig() *FeeConfig {
	return &FeeConfig{TeamPct: splitDenominator}
}

// SetFees updates the protocol and LP fee rates.
func (c *FeeConfig) SetFees(protocolBps, lpBps int64) error {
	if c.Locked {
		return ErrFeeConfigLocked
	}
	if protocolBps < 0 || protocolBps > bpsDenominator {
		return ErrProtocolBpsRange
	}
	if lpBps < 0 || lpBps > bpsDenominator {
		return ErrLPBpsRange
	}
	c.ProtocolBps = protocolBps
	c.LPBps = lpBps
	return nil
}

// SetSplit updates the three-way protocol fee split.
func (c *FeeConfig) SetSplit(dripPct, brcPct, teamPct int64) error {
	if c.Locked {
		return ErrFeeConfigLocked
	}
	if dripPct < 0 || brcPct < 0 || teamPct < 0 ||
		dripPct+brcPct+teamPct != splitDenominator {
		return ErrSplitNotHundred
	}
	c.DripPct = dripPct
	c.BrcPct = brcPct
	c.TeamPct = teamPct
	return nil
}

// SetRecipients updates the fee payout destinations.
func (c *FeeConfig) SetRecipients(r FeeRecipients) error {
	if c.Locked {
		return ErrFeeConfigLocked
	}
	c.Recipients = r
	return nil
}

// Lock latches the config immutable. Idempotent.
func (c *FeeConfig) Lock() {
	c.Locked = true
}

// FeeBreakdown is the full price decomposition of a trade. The identities
//
//	Total = Cost + FeeProtocol + FeeLP
//	FeeProtocol = Drip + Brc + Team
//
// hold exactly, with no rounding slack.
type FeeBreakdown struct {
	Cost        int64 `json:"cost"`
	FeeProtocol int64 `json:"fee_protocol"`
	FeeLP       int64 `json:"fee_lp"`
	Drip        int64 `json:"drip"`
	Brc         int64 `json:"brc"`
	Team        int64 `json:"team"`
	Total       int64 `json:"total"`
}

// Quote computes the fee breakdown for a base cost. Pure: quoting twice
// with unchanged config returns identical results, and the committed
// trade reproduces the quote. Fees round up (recipients never lose to
// truncation); within the protocol split, drip and brc round down and
// team absorbs the residue so the parts sum exactly.
func (c *FeeConfig) Quote(cost int64) FeeBreakdown {
	feeProtocol := fpmath.MulDiv(cost, c.ProtocolBps, bpsDenominator, fpmath.RoundUp)
	feeLP := fpmath.MulDiv(cost, c.LPBps, bpsDenominator, fpmath.RoundUp)

	drip := fpmath.MulDiv(feeProtocol, c.DripPct, splitDenominator, fpmath.RoundDown)
	brc := fpmath.MulDiv(feeProtocol, c.BrcPct, splitDenominator, fpmath.RoundDown)
	team := feeProtocol - drip - brc

	return FeeBreakdown{
		Cost:        cost,
		FeeProtocol: feeProtocol,
		FeeLP:       feeLP,
		Drip:        drip,
		Brc:         brc,
		Team:        team,
		Total:       cost + feeProtocol + feeLP,
	}
}

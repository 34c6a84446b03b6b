package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/event"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
)

// AdminID returns the configured admin identity.
func (e *Engine) AdminID() uuid.UUID {
	return e.admin.ID()
}

// ReplayEvent re-applies one stored event by reissuing the command it
// recorded. Every payload carries the full command input, and the
// engine is deterministic, so replaying the log in sequence order
// reproduces the exact same state and hash chain.
//
// Duplicate rejections are swallowed: they mean the event was already
// covered by a snapshot or an earlier replay pass.
func (e *Engine) ReplayEvent(eventType string, payload []byte) error {
	err := e.replayEvent(eventType, payload)
	if errors.Is(err, ErrDuplicateRequest) {
		return nil
	}
	return err
}

func (e *Engine) replayEvent(eventType string, payload []byte) error {
	admin := e.admin.ID()

	switch eventType {
	case "DepositCredited":
		var p event.DepositCredited
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.Deposit(p.RequestID, p.AccountID, p.Amount, p.Timestamp)

	case "WithdrawalDebited":
		var p event.WithdrawalDebited
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.Withdraw(p.RequestID, p.AccountID, p.Amount, p.Timestamp)

	case "MarketCreated":
		var p event.MarketCreated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.CreateMarket(p.RequestID, admin, p.Market, p.Seed, p.Timestamp)

	case "LiquidityAdded":
		var p event.LiquidityAdded
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.AddLiquidity(p.RequestID, admin, p.Market, p.Amount, p.Timestamp)

	case "SharesPurchased":
		var p event.SharesPurchased
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		side := market.SideYes
		if p.Side == market.SideNo.String() {
			side = market.SideNo
		}
		// The recorded spend cap is the cap after the trade; replaying
		// with it as the target reproduces the same cap state.
		_, err := e.BuyAuto(p.RequestID, p.AccountID, p.Market, side, p.Amount, p.SpendCap, 0, p.Timestamp)
		return err

	case "MarketResolved":
		var p event.MarketResolved
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		outcome := market.OutcomeYes
		if p.Outcome == market.OutcomeNo.String() {
			outcome = market.OutcomeNo
		}
		return e.Resolve(p.RequestID, admin, p.Market, outcome, p.Timestamp)

	case "SharesRedeemed":
		var p event.SharesRedeemed
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		_, err := e.Redeem(p.RequestID, p.AccountID, p.Market, p.Timestamp)
		return err

	case "SurplusWithdrawn":
		var p event.SurplusWithdrawn
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		_, err := e.WithdrawSurplus(p.RequestID, admin, p.Market, p.Timestamp)
		return err

	case "MarketPaused":
		var p event.MarketPaused
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.Pause(p.RequestID, admin, p.Market, p.Timestamp)

	case "MarketUnpaused":
		var p event.MarketUnpaused
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.Unpause(p.RequestID, admin, p.Market, p.Timestamp)

	case "MaxTradeUpdated":
		var p event.MaxTradeUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.SetMaxTrade(p.RequestID, admin, p.Market, p.MaxTrade, p.Timestamp)

	case "FeesUpdated":
		var p event.FeesUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.SetFees(p.RequestID, admin, p.ProtocolBps, p.LPBps, p.Timestamp)

	case "SplitUpdated":
		var p event.SplitUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.SetSplit(p.RequestID, admin, p.DripPct, p.BrcPct, p.TeamPct, p.Timestamp)

	case "RecipientsUpdated":
		var p event.RecipientsUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.SetRecipients(p.RequestID, admin, market.FeeRecipients{
			Drip: p.Drip, Brc: p.Brc, Team: p.Team, LP: p.LP,
		}, p.Timestamp)

	case "FeeConfigLocked":
		var p event.FeeConfigLocked
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e.LockFees(p.RequestID, admin, p.Timestamp)
	}

	return fmt.Errorf("unknown event type %q", eventType)
}

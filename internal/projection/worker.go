package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/event"
)

// Worker maintains the queryable read models: per-account balances,
// per-market state, and the trade feed. It drains the projection
// channel, which the engine fills non-blocking with drop, so the read
// side is eventually consistent and can always be rebuilt from the
// event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan core.Output, logger zerolog.Logger) *Worker {
	return &Worker{db: db, inputChan: inputChan, log: logger}
}

// Run processes outputs until ctx is cancelled or the channel closes.
func (pw *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.apply(ctx, output); err != nil {
				// Projection failures are not fatal: the read models
				// lag until a rebuild, the write side is unaffected.
				pw.log.Warn().
					Err(err).
					Int64("sequence", output.Envelope.Sequence).
					Msg("projection update failed")
			}
		}
	}
}

func (pw *Worker) apply(ctx context.Context, output core.Output) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq := output.Envelope.Sequence

	if output.Batch != nil {
		for _, j := range output.Batch.Journals {
			if err := pw.applyJournal(ctx, tx, seq,
				j.DebitAccount.AccountPath(), j.CreditAccount.AccountPath(),
				uint16(j.AssetID), j.Amount); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	if err := applyEvent(ctx, tx, output.Envelope); err != nil {
		return fmt.Errorf("event projection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// applyJournal mirrors the ledger convention: the debit account
// receives the amount, the credit account gives it up.
func (pw *Worker) applyJournal(ctx context.Context, tx *sql.Tx, seq int64, debit, credit string, assetID uint16, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, debit, assetID, amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, credit, assetID, amount, seq); err != nil {
		return err
	}

	return nil
}

// applyEvent updates the market read model and the trade feed from the
// event payload. Shared by the live worker and Rebuild, which feeds it
// envelopes reconstructed from stored event rows.
func applyEvent(ctx context.Context, tx *sql.Tx, env *event.Envelope) error {
	seq := env.Sequence

	switch env.EventType {
	case event.EventTypeMarketCreated:
		var p event.MarketCreated
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.markets
				(market_id, pool, liquidity, yes_supply, no_supply, status, outcome, max_trade, last_sequence)
			VALUES ($1, $2, $3, 0, 0, 'open', 'NONE', 0, $4)
			ON CONFLICT (market_id) DO NOTHING
		`, p.Market, p.Seed, p.Liquidity, seq)
		return err

	case event.EventTypeSharesPurchased:
		var p event.SharesPurchased
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		column := "yes_supply"
		if p.Side == "no" {
			column = "no_supply"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE projections.markets
			SET pool = pool + $2, %s = %s + $3, last_sequence = $4
			WHERE market_id = $1
		`, column, column), p.Market, p.Cost, p.Amount, seq); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.trades
				(sequence, market_id, account_id, side, amount, cost, fee_total, total, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (sequence) DO NOTHING
		`, seq, p.Market, p.AccountID, p.Side, p.Amount, p.Cost, p.FeeTotal, p.Total, p.Timestamp)
		return err

	case event.EventTypeLiquidityAdded:
		var p event.LiquidityAdded
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET pool = pool + $2, liquidity = $3, last_sequence = $4
			WHERE market_id = $1
		`, p.Market, p.Amount, p.Liquidity, seq)
		return err

	case event.EventTypeMarketResolved:
		var p event.MarketResolved
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET status = 'resolved', outcome = $2, pool = $3, last_sequence = $4
			WHERE market_id = $1
		`, p.Market, p.Outcome, p.Pool, seq)
		return err

	case event.EventTypeSharesRedeemed:
		var p event.SharesRedeemed
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		// The redeemed shares burn out of whichever side won.
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET pool = pool - $2,
			    yes_supply = yes_supply - CASE WHEN outcome = 'YES' THEN $3 ELSE 0 END,
			    no_supply  = no_supply  - CASE WHEN outcome = 'NO'  THEN $3 ELSE 0 END,
			    last_sequence = $4
			WHERE market_id = $1
		`, p.Market, p.Payout, p.Shares, seq)
		return err

	case event.EventTypeSurplusWithdrawn:
		var p event.SurplusWithdrawn
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET pool = 0, last_sequence = $2
			WHERE market_id = $1
		`, p.Market, seq)
		return err

	case event.EventTypeMarketPaused:
		return setStatus(ctx, tx, env, "paused")

	case event.EventTypeMarketUnpaused:
		return setStatus(ctx, tx, env, "open")

	case event.EventTypeMaxTradeUpdated:
		var p event.MaxTradeUpdated
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET max_trade = $2, last_sequence = $3
			WHERE market_id = $1
		`, p.Market, p.MaxTrade, seq)
		return err
	}

	// Fee governance and fund movements touch no market read model.
	return nil
}

func setStatus(ctx context.Context, tx *sql.Tx, env *event.Envelope, status string) error {
	if env.MarketID == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.markets
		SET status = $2, last_sequence = $3
		WHERE market_id = $1
	`, *env.MarketID, status, env.Sequence)
	return err
}

// Rebuild truncates the read models and reconstructs them from the
// durable log: balances aggregate out of the journal, market state and
// the trade feed come from re-applying every stored event in sequence
// order.
func Rebuild(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.markets`,
		`TRUNCATE projections.trades`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debit side receives.
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	return rebuildFromEvents(ctx, db)
}

// rebuildFromEvents replays the stored event rows through the same
// projection handlers the live worker uses, inside one transaction.
func rebuildFromEvents(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := db.QueryContext(ctx, `
		SELECT sequence, event_type, market_id, payload
		FROM event_log.events
		ORDER BY sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild events: %w", err)
	}
	defer rows.Close()

	var lastSeq int64
	applied := false
	for rows.Next() {
		var (
			seq      int64
			typeName string
			marketID sql.NullInt64
			payload  []byte
		)
		if err := rows.Scan(&seq, &typeName, &marketID, &payload); err != nil {
			return err
		}

		env := &event.Envelope{
			Sequence:  seq,
			EventType: event.TypeFromString(typeName),
			Payload:   payload,
		}
		if marketID.Valid {
			id := uint64(marketID.Int64)
			env.MarketID = &id
		}

		if err := applyEvent(ctx, tx, env); err != nil {
			return fmt.Errorf("rebuild event %d: %w", seq, err)
		}
		lastSeq = seq
		applied = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if applied {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
			VALUES ('main', $1, NOW())
			ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
		`, lastSeq); err != nil {
			return fmt.Errorf("watermark update: %w", err)
		}
	}

	return tx.Commit()
}

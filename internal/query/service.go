package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Service provides read-only access to the projection tables. Every
// response carries as_of_sequence so callers can reason about
// staleness against the engine's live sequence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns a user's projected cash balance.
func (qs *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	accountPath := fmt.Sprintf("user:%s:cash:SATS", userID)
	balance, err := qs.getProjectedBalance(ctx, accountPath)
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		UserID:       userID,
		Asset:        "SATS",
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// ListMarkets returns every market in the read model.
func (qs *Service) ListMarkets(ctx context.Context) ([]MarketResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT market_id, pool, liquidity, yes_supply, no_supply, status, outcome, max_trade
		FROM projections.markets
		ORDER BY market_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []MarketResponse
	for rows.Next() {
		var m MarketResponse
		m.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&m.MarketID, &m.Pool, &m.Liquidity, &m.YesSupply, &m.NoSupply,
			&m.Status, &m.Outcome, &m.MaxTrade,
		); err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}

	return markets, rows.Err()
}

// GetMarket returns one market, or nil when unknown.
func (qs *Service) GetMarket(ctx context.Context, marketID uint64) (*MarketResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var m MarketResponse
	m.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT market_id, pool, liquidity, yes_supply, no_supply, status, outcome, max_trade
		FROM projections.markets
		WHERE market_id = $1
	`, marketID).Scan(
		&m.MarketID, &m.Pool, &m.Liquidity, &m.YesSupply, &m.NoSupply,
		&m.Status, &m.Outcome, &m.MaxTrade,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetTrades returns a market's trade feed, newest first, with
// cursor-based pagination on sequence.
func (qs *Service) GetTrades(ctx context.Context, marketID uint64, limit int, beforeSequence *int64) ([]TradeResponse, error) {
	query := `
		SELECT sequence, market_id, account_id, side, amount, cost, fee_total, total, timestamp
		FROM projections.trades
		WHERE market_id = $1
	`
	args := []interface{}{marketID}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeResponse
	for rows.Next() {
		var t TradeResponse
		if err := rows.Scan(
			&t.Sequence, &t.MarketID, &t.AccountID, &t.Side, &t.Amount,
			&t.Cost, &t.FeeTotal, &t.Total, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// GetJournalHistory returns a user's journal entries with pagination.
func (qs *Service) GetJournalHistory(ctx context.Context, userID uuid.UUID, limit int, afterSequence *int64) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", userID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE debit_account LIKE $1 OR credit_account LIKE $1
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// VerifyIntegrity checks hash chain continuity in the event log and
// the zero-sum invariant over projected balances.
func (qs *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

func (qs *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *Service) getProjectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
)

// SnapshotStore persists and loads engine state snapshots. A snapshot
// plus the events at or after its sequence reproduces the full state,
// so restarts replay only the tail of the log.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// snapshotDoc wraps core.SnapshotState for storage; the hash-chain tip
// is carried outside the JSON body so integrity checks can read it
// without decoding the whole document.
type snapshotDoc struct {
	State     *core.SnapshotState `json:"state"`
	CreatedAt time.Time           `json:"created_at"`
}

// Save persists a snapshot. Saving the same sequence twice overwrites.
func (ss *SnapshotStore) Save(ctx context.Context, snap *core.SnapshotState) error {
	doc := snapshotDoc{State: snap, CreatedAt: time.Now()}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, 1, $5, FALSE, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $5
	`, uuid.New(), snap.Sequence, data, snap.StateHash[:], len(data), doc.CreatedAt)

	return err
}

// LoadLatest returns the most recent verified snapshot, or nil when the
// store is empty (cold start).
func (ss *SnapshotStore) LoadLatest(ctx context.Context) (*core.SnapshotState, error) {
	row := ss.db.QueryRowContext(ctx, `
		SELECT data, state_hash FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data, stateHash []byte
	if err := row.Scan(&data, &stateHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if doc.State == nil {
		return nil, fmt.Errorf("snapshot document has no state")
	}
	copy(doc.State.StateHash[:], stateHash)
	return doc.State, nil
}

// MarkVerified flags a snapshot as safe to restore from.
func (ss *SnapshotStore) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := ss.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom pages through the event log for replay.
func (ss *SnapshotStore) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, market_id, payload,
		       state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.MarketID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// LatestSequence returns the highest sequence in the event log, or -1
// when the log is empty.
func (ss *SnapshotStore) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := ss.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return -1, nil
	}
	return seq.Int64, nil
}

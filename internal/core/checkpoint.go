package core

import (
	"fmt"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/ledger"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
)

// SnapshotState is the engine's full in-memory state at a point in
// time: every balance, every market aggregate, the hash-chain tip, the
// timestamp high-water marks, and recent idempotency keys for LRU
// warming. Balances are keyed by account path so the snapshot is a
// plain serializable value.
type SnapshotState struct {
	// Sequence is the NEXT sequence the engine will assign, i.e. every
	// event with sequence >= this value is missing from the snapshot
	// and must be recovered from the event log.
	Sequence int64 `json:"sequence"`

	JournalSequence int64 `json:"journal_sequence"`

	StateHash [32]byte `json:"-"`
	PrevHash  [32]byte `json:"-"`

	Balances        map[string]int64     `json:"balances"`
	Registry        market.RegistryState `json:"registry"`
	Partitions      map[string]int64     `json:"partitions"`
	IdempotencyKeys []string             `json:"idempotency_keys"`
}

// maxSnapshotKeys bounds how many idempotency keys a snapshot carries.
const maxSnapshotKeys = 100_000

// CreateSnapshotState captures the engine state under the lock.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.Lock()
	defer e.mu.Unlock()

	balances := make(map[string]int64)
	for key, bal := range e.balanceTracker.Snapshot() {
		if bal != 0 {
			balances[key.AccountPath()] = bal
		}
	}

	return &SnapshotState{
		Sequence:        e.sequence,
		JournalSequence: e.journalGen.Sequence(),
		StateHash:       e.hasher.GetPrevHash(),
		Balances:        balances,
		Registry:        e.registry.ExportState(),
		Partitions:      e.clock.Partitions(),
		IdempotencyKeys: e.idempotency.RecentKeys(maxSnapshotKeys),
	}
}

// RestoreFromSnapshot replaces the engine state with a snapshot. Must
// run before the engine serves any command.
func (e *Engine) RestoreFromSnapshot(s *SnapshotState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	balances := make(map[ledger.AccountKey]int64, len(s.Balances))
	for path, bal := range s.Balances {
		key, err := ledger.ParseAccountPath(path)
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		balances[key] = bal
	}

	e.sequence = s.Sequence
	e.journalGen.SetSequence(s.JournalSequence)
	e.hasher.SetPrevHash(s.StateHash)
	e.balanceTracker.Restore(balances)
	e.registry.RestoreState(s.Registry)
	for partition, micros := range s.Partitions {
		e.clock.SetLastSeen(partition, micros)
	}
	e.idempotency.Warm(s.IdempotencyKeys)
	return nil
}

// WarmLRU preloads idempotency keys without touching other state.
func (e *Engine) WarmLRU(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.Warm(keys)
}

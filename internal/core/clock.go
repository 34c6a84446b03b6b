package core

import (
	"fmt"
	"time"
)

// TimestampValidator enforces non-decreasing versioned timestamps per
// partition. The engine never reads the wall clock; every command
// carries its timestamp as an input, and this validator rejects
// regressions that would make replay diverge.
// Not thread-safe — only accessed under the engine's lock.
type TimestampValidator struct {
	lastSeen map[string]int64 // partition -> last accepted micros
	metrics  *ClockMetrics
}

func NewTimestampValidator() *TimestampValidator {
	return &TimestampValidator{
		lastSeen: make(map[string]int64),
		metrics:  NewClockMetrics(),
	}
}

// Validate checks the timestamp against the partition's high-water mark
// and advances it. Equal timestamps are accepted: independent commands
// may share a version tick.
func (tv *TimestampValidator) Validate(partition string, ts time.Time) error {
	micros := ts.UnixMicro()
	last, seen := tv.lastSeen[partition]

	if seen && micros < last {
		tv.metrics.RecordRegression(partition)
		return fmt.Errorf("timestamp regression: partition=%s, last=%d, got=%d",
			partition, last, micros)
	}

	tv.lastSeen[partition] = micros
	return nil
}

// LastSeen returns the partition's high-water mark in epoch micros.
func (tv *TimestampValidator) LastSeen(partition string) int64 {
	return tv.lastSeen[partition]
}

// SetLastSeen initializes a high-water mark (used during recovery).
func (tv *TimestampValidator) SetLastSeen(partition string, micros int64) {
	tv.lastSeen[partition] = micros
}

// Partitions returns a copy of every high-water mark (used for snapshots).
func (tv *TimestampValidator) Partitions() map[string]int64 {
	out := make(map[string]int64, len(tv.lastSeen))
	for p, m := range tv.lastSeen {
		out[p] = m
	}
	return out
}

// --- Metrics ---

// ClockMetrics tracks timestamp validation stats.
// Not thread-safe — only accessed under the engine's lock.
type ClockMetrics struct {
	regressions map[string]int64 // partition -> count
}

func NewClockMetrics() *ClockMetrics {
	return &ClockMetrics{
		regressions: make(map[string]int64),
	}
}

func (m *ClockMetrics) RecordRegression(partition string) {
	m.regressions[partition]++
}

func (m *ClockMetrics) GetRegressions(partition string) int64 {
	return m.regressions[partition]
}

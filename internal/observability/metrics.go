package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the market engine.
type Metrics struct {
	// --- Core Processing ---
	CoreCommandsApplied  *prometheus.CounterVec
	CoreCommandsRejected *prometheus.CounterVec
	CoreCommandDuration  *prometheus.HistogramVec
	CoreJournals         *prometheus.CounterVec
	CoreSequence         prometheus.Gauge

	// --- Markets ---
	MarketsOpen      prometheus.Gauge
	MarketsResolved  prometheus.Counter
	TradesExecuted   *prometheus.CounterVec
	TradeVolume      *prometheus.CounterVec
	FeesCollected    *prometheus.CounterVec
	RedemptionsPaid  prometheus.Counter
	RedemptionVolume prometheus.Counter
	PoolBalance      *prometheus.GaugeVec

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge
	PersistBatchSize       prometheus.Histogram

	// --- Snapshots ---
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotLastSeq  prometheus.Gauge

	// --- Stream publisher ---
	PublishedEvents *prometheus.CounterVec
	PublishErrors   prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core Processing
		CoreCommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_core_commands_applied_total",
			Help: "Commands successfully applied by the engine",
		}, []string{"command"}),

		CoreCommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_core_commands_rejected_total",
			Help: "Commands rejected (dedup, guard, validation)",
		}, []string{"command", "reason"}),

		CoreCommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bw_core_command_apply_duration_seconds",
			Help:    "Time to apply a single command in the engine",
			Buckets: latencyBuckets,
		}, []string{"command"}),

		CoreJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bw_core_sequence",
			Help: "Current global sequence number",
		}),

		// Markets
		MarketsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bw_markets_open",
			Help: "Markets currently accepting trades",
		}),

		MarketsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_markets_resolved_total",
			Help: "Markets resolved to a final outcome",
		}),

		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_trades_executed_total",
			Help: "Share purchases settled",
		}, []string{"side"}),

		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_trade_volume_units_total",
			Help: "Settlement units moved into pools by trades",
		}, []string{"side"}),

		FeesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_fees_collected_units_total",
			Help: "Fee units routed to recipients",
		}, []string{"leg"}),

		RedemptionsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_redemptions_paid_total",
			Help: "Winning redemptions paid out",
		}),

		RedemptionVolume: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_redemption_volume_units_total",
			Help: "Settlement units paid to winners",
		}),

		PoolBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bw_pool_balance_units",
			Help: "Current pool balance per market",
		}, []string{"market_id"}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bw_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bw_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bw_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Idempotency
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"command", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bw_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bw_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bw_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bw_persist_batch_size",
			Help:    "Events per Postgres batch write",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		// Snapshots
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_snapshot_taken_total",
			Help: "Snapshots persisted",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bw_snapshot_duration_seconds",
			Help:    "Snapshot capture and save duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bw_snapshot_last_sequence",
			Help: "Sequence of the most recent snapshot",
		}),

		// Stream publisher
		PublishedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_published_events_total",
			Help: "Events published to the outbound stream",
		}, []string{"event_type"}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bw_publish_errors_total",
			Help: "Outbound publish failures",
		}),

		// HTTP API
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bw_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bw_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}

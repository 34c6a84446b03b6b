package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/config"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/observability"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/persistence"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/projection"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/query"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/server"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/stream"
)

const replayPageSize = 1000

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	log := observability.NewLoggerWithLevel("main", level)
	log.Info().Str("config", *configPath).Msg("bitcoin-world starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir, observability.NewLoggerWithLevel("migrate", level))
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	// --- Recovery: snapshot + log replay ---
	snapshots := persistence.NewSnapshotStore(db)

	snap, err := snapshots.LoadLatest(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load snapshot")
	}
	startSequence := int64(0)
	if snap != nil {
		startSequence = snap.Sequence
		log.Info().Int64("sequence", snap.Sequence).Msg("snapshot loaded")
	} else {
		log.Info().Msg("no snapshot, cold start")
	}

	persistChan := make(chan core.Output, cfg.Engine.PersistBuffer)
	projChan := make(chan core.Output, cfg.Engine.ProjectionBuffer)

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	policy := market.PolicyProRata
	if cfg.Engine.RedemptionPolicy == "flat" {
		policy = market.PolicyFlat
	}

	engine := core.NewEngine(core.Config{
		StartSequence:       startSequence,
		AdminID:             cfg.AdminUUID(),
		Policy:              policy,
		PersistChan:         persistChan,
		ProjectionChan:      projChan,
		DBChecker:           persistence.NewPostgresIdempotencyChecker(db),
		Metrics:             metrics,
		Logger:              observability.NewLoggerWithLevel("core", level),
		IdempotencyCapacity: cfg.Engine.IdempotencyCapacity,
	})

	if snap != nil {
		if err := engine.RestoreFromSnapshot(snap); err != nil {
			log.Fatal().Err(err).Msg("restore snapshot")
		}
	}

	// Replayed commands re-emit outputs; the rows already exist in the
	// event log, so both channels are discarded until replay completes.
	replayCtx, stopDiscard := context.WithCancel(ctx)
	discardDone := make(chan struct{})
	go func() {
		defer close(discardDone)
		for {
			select {
			case <-replayCtx.Done():
				return
			case <-persistChan:
			case <-projChan:
			}
		}
	}()

	replayed, err := replayLog(ctx, snapshots, engine, startSequence, log)
	if err != nil {
		log.Fatal().Err(err).Msg("event replay")
	}
	stopDiscard()
	<-discardDone
	drain(persistChan)
	drain(projChan)

	if replayed > 0 {
		log.Info().Int("events", replayed).Int64("sequence", engine.Sequence()).Msg("log replayed")
		// Read models missed the replayed tail; rebuild from the log.
		if err := projection.Rebuild(ctx, db); err != nil {
			log.Warn().Err(err).Msg("projection rebuild")
		}
	} else if snap != nil {
		got := engine.StateHash()
		if !bytes.Equal(got[:], snap.StateHash[:]) {
			log.Fatal().
				Hex("expected", snap.StateHash[:]).
				Hex("got", got[:]).
				Msg("state hash mismatch after restore")
		}
		log.Info().Msg("state hash verified after restore")
	}

	// Cold start with configured fees: applied as normal governance
	// commands so the events replay like any other.
	if engine.Sequence() == 0 {
		if err := bootstrapFees(engine, cfg); err != nil {
			log.Fatal().Err(err).Msg("bootstrap fee config")
		}
	}

	// --- NATS ---
	var publishChan chan core.Output
	var natsClose func()
	if cfg.NATS.Enabled {
		nc, js, err := stream.Connect(cfg.NATS.URL, observability.NewLoggerWithLevel("nats", level))
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		natsClose = nc.Close
		if err := stream.EnsureStream(ctx, js, cfg.NATS.StreamName, cfg.NATS.SubjectPrefix); err != nil {
			log.Fatal().Err(err).Msg("ensure stream")
		}
		publishChan = make(chan core.Output, cfg.NATS.PublishBuffer)
		publisher := stream.NewPublisher(js, publishChan, cfg.NATS.SubjectPrefix, metrics, observability.NewLoggerWithLevel("stream", level))
		go func() { _ = publisher.Run(ctx) }()
		log.Info().Str("url", cfg.NATS.URL).Msg("nats connected")
	}

	// --- Workers ---
	errChan := make(chan error, 4)

	persistWorker := persistence.NewWorker(db, persistChan,
		cfg.Engine.PersistBatchSize, cfg.Engine.PersistFlushTimeout,
		metrics, observability.NewLoggerWithLevel("persist", level))
	persistDone := make(chan struct{})
	go func() {
		if err := persistWorker.Run(ctx); err != nil && err != context.Canceled {
			errChan <- err
		}
		close(persistDone)
	}()

	// Projection and stream both consume the projection channel; the tee
	// forwards non-blocking so a slow publisher never stalls projections.
	projWorkerChan := make(chan core.Output, cfg.Engine.ProjectionBuffer)
	go tee(ctx, projChan, projWorkerChan, publishChan)

	projWorker := projection.NewWorker(db, projWorkerChan, observability.NewLoggerWithLevel("projection", level))
	go func() { errChan <- projWorker.Run(ctx) }()

	// --- Periodic snapshots ---
	go runPeriodicSnapshots(ctx, engine, snapshots, cfg.Engine.SnapshotInterval, metrics, log)

	// --- HTTP API ---
	httpServer := server.NewServer(cfg.Server, server.Deps{
		Engine:  engine,
		Query:   query.NewService(db),
		Health:  health,
		Metrics: metrics,
		Logger:  observability.NewLoggerWithLevel("http", level),
	})
	go func() { errChan <- httpServer.Start() }()

	// --- Metrics endpoint ---
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	health.SetReady(true)
	log.Info().
		Int64("sequence", engine.Sequence()).
		Str("http", cfg.Server.HTTPAddr).
		Str("metrics", cfg.Server.MetricsAddr).
		Msg("bitcoin-world ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("worker failed, shutting down")
		}
	}

	// --- Graceful shutdown ---
	health.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	// Closing the persist channel makes the worker drain, flush its final
	// batch, and exit; only then is the snapshot durable to take.
	close(persistChan)
	select {
	case <-persistDone:
	case <-shutdownCtx.Done():
		log.Error().Msg("persist worker did not drain before deadline")
	}
	cancel()

	if err := takeSnapshot(shutdownCtx, engine, snapshots, metrics); err != nil {
		log.Error().Err(err).Msg("final snapshot")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	if natsClose != nil {
		natsClose()
	}
	log.Info().Msg("shutdown complete")
}

// replayLog feeds the event-log tail back through the engine in pages.
func replayLog(ctx context.Context, store *persistence.SnapshotStore, engine *core.Engine, from int64, log zerolog.Logger) (int, error) {
	count := 0
	next := from
	for {
		events, err := store.LoadEventsFrom(ctx, next, replayPageSize)
		if err != nil {
			return count, fmt.Errorf("load events from %d: %w", next, err)
		}
		if len(events) == 0 {
			return count, nil
		}
		for _, ev := range events {
			if err := engine.ReplayEvent(ev.EventType, ev.Payload); err != nil {
				return count, fmt.Errorf("replay sequence %d (%s): %w", ev.Sequence, ev.EventType, err)
			}
			count++
		}
		next = events[len(events)-1].Sequence + 1
		if count%10_000 == 0 {
			log.Info().Int("events", count).Msg("replay progress")
		}
	}
}

// bootstrapFees issues the configured fee schedule as governance
// commands on a fresh log.
func bootstrapFees(engine *core.Engine, cfg *config.Config) error {
	f := cfg.Fees
	if f.ProtocolBps == 0 && f.LPBps == 0 && f.DripPct == 0 && f.BrcPct == 0 && !f.Locked {
		return nil
	}
	admin := cfg.AdminUUID()
	ts := time.Now()
	if err := engine.SetFees(uuid.New(), admin, f.ProtocolBps, f.LPBps, ts); err != nil {
		return fmt.Errorf("set fees: %w", err)
	}
	if err := engine.SetSplit(uuid.New(), admin, f.DripPct, f.BrcPct, f.TeamPct, ts); err != nil {
		return fmt.Errorf("set split: %w", err)
	}
	if f.Locked {
		if err := engine.LockFees(uuid.New(), admin, ts); err != nil {
			return fmt.Errorf("lock fees: %w", err)
		}
	}
	return nil
}

// tee fans one output stream out to the projection worker and the
// outbound publisher. Both sends are non-blocking: these consumers are
// rebuildable or best-effort, never backpressure.
func tee(ctx context.Context, in <-chan core.Output, projOut, publishOut chan<- core.Output) {
	for {
		select {
		case <-ctx.Done():
			return
		case output, ok := <-in:
			if !ok {
				return
			}
			select {
			case projOut <- output:
			default:
			}
			if publishOut != nil {
				select {
				case publishOut <- output:
				default:
				}
			}
		}
	}
}

func runPeriodicSnapshots(ctx context.Context, engine *core.Engine, store *persistence.SnapshotStore, interval int64, metrics *observability.Metrics, log zerolog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	lastSnapSeq := engine.Sequence()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if engine.Sequence()-lastSnapSeq < interval {
				continue
			}
			if err := takeSnapshot(ctx, engine, store, metrics); err != nil {
				log.Warn().Err(err).Msg("periodic snapshot")
				continue
			}
			lastSnapSeq = engine.Sequence()
			log.Info().Int64("sequence", lastSnapSeq).Msg("snapshot taken")
		}
	}
}

// takeSnapshot saves the engine state and marks it verified once every
// event it covers is durable in the log. On shutdown the persist worker
// has already flushed, so the final snapshot verifies immediately.
func takeSnapshot(ctx context.Context, engine *core.Engine, store *persistence.SnapshotStore, metrics *observability.Metrics) error {
	start := time.Now()
	snap := engine.CreateSnapshotState()

	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		persisted, err := store.LatestSequence(ctx)
		if err != nil {
			return fmt.Errorf("check persisted sequence: %w", err)
		}
		if persisted >= snap.Sequence-1 {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("snapshot %d ahead of persisted log (%d)", snap.Sequence, persisted)
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := store.MarkVerified(ctx, snap.Sequence); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	if metrics != nil {
		metrics.SnapshotTaken.Inc()
		metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	}
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func drain(ch <-chan core.Output) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/config"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/observability"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/query"
)

// Server is the HTTP JSON API in front of the engine. Commands carry
// the caller in X-Account-ID and an idempotency key in X-Request-ID;
// the server stamps each command with its arrival time, so the engine
// itself never reads the wall clock.
type Server struct {
	httpServer *http.Server
	engine     *core.Engine
	query      *query.Service
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	log        zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// Deps are the server's collaborators. Query may be nil when the read
// models are not wired (live engine queries still work).
type Deps struct {
	Engine  *core.Engine
	Query   *query.Service
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		engine:  deps.Engine,
		query:   deps.Query,
		health:  deps.Health,
		metrics: deps.Metrics,
		log:     deps.Logger,
		now:     time.Now,
	}

	mux := http.NewServeMux()

	// Liveness and readiness.
	if deps.Health != nil {
		mux.HandleFunc("GET /healthz", deps.Health.LivenessHandler)
		mux.HandleFunc("GET /readyz", deps.Health.ReadinessHandler)
	}

	// Funds.
	mux.HandleFunc("POST /v1/deposits", s.handleDeposit)
	mux.HandleFunc("POST /v1/withdrawals", s.handleWithdraw)
	mux.HandleFunc("GET /v1/balance", s.handleBalance)

	// Markets.
	mux.HandleFunc("POST /v1/markets", s.handleCreateMarket)
	mux.HandleFunc("GET /v1/markets", s.handleListMarkets)
	mux.HandleFunc("GET /v1/markets/{id}", s.handleGetMarket)
	mux.HandleFunc("POST /v1/markets/{id}/quote", s.handleQuote)
	mux.HandleFunc("POST /v1/markets/{id}/buy", s.handleBuy)
	mux.HandleFunc("POST /v1/markets/{id}/buy-auto", s.handleBuyAuto)
	mux.HandleFunc("POST /v1/markets/{id}/liquidity", s.handleAddLiquidity)
	mux.HandleFunc("POST /v1/markets/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /v1/markets/{id}/unpause", s.handleUnpause)
	mux.HandleFunc("PUT /v1/markets/{id}/max-trade", s.handleSetMaxTrade)
	mux.HandleFunc("POST /v1/markets/{id}/resolve", s.handleResolve)
	mux.HandleFunc("POST /v1/markets/{id}/redeem", s.handleRedeem)
	mux.HandleFunc("POST /v1/markets/{id}/surplus", s.handleWithdrawSurplus)
	mux.HandleFunc("GET /v1/markets/{id}/position", s.handlePosition)

	// Fee governance.
	mux.HandleFunc("GET /v1/fees", s.handleGetFees)
	mux.HandleFunc("PUT /v1/fees", s.handleSetFees)
	mux.HandleFunc("PUT /v1/fees/split", s.handleSetSplit)
	mux.HandleFunc("PUT /v1/fees/recipients", s.handleSetRecipients)
	mux.HandleFunc("POST /v1/fees/lock", s.handleLockFees)

	// Engine status.
	mux.HandleFunc("GET /v1/status", s.handleStatus)

	// Read models (projection-backed, eventually consistent).
	mux.HandleFunc("GET /v1/history/trades", s.handleTradeHistory)
	mux.HandleFunc("GET /v1/history/journal", s.handleJournalHistory)
	mux.HandleFunc("GET /v1/history/markets", s.handleProjectedMarkets)
	mux.HandleFunc("GET /v1/history/markets/{id}", s.handleProjectedMarket)
	mux.HandleFunc("GET /v1/history/balance", s.handleProjectedBalance)
	mux.HandleFunc("GET /v1/integrity", s.handleIntegrity)

	var h http.Handler = mux
	h = s.instrument(h)

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// instrument wraps the mux with request logging and metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		route := r.Method + " " + r.URL.Path

		if s.metrics != nil {
			pattern := r.Pattern
			if pattern == "" {
				pattern = "unmatched"
			}
			s.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(sw.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())
		}

		s.log.Debug().
			Str("route", route).
			Int("status", sw.status).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

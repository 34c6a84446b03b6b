package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
)

// Every command carries the caller in X-Account-ID and an idempotency
// key in X-Request-ID; retrying with the same request id is safe.

const (
	headerAccountID = "X-Account-ID"
	headerRequestID = "X-Request-ID"
)

// identity extracts the caller and request id from the command headers.
func identity(r *http.Request) (account, requestID uuid.UUID, ok bool) {
	account, err := uuid.Parse(r.Header.Get(headerAccountID))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	requestID, err = uuid.Parse(r.Header.Get(headerRequestID))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return account, requestID, true
}

func marketIDFromPath(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func parseSide(s string) (market.Side, bool) {
	switch strings.ToLower(s) {
	case "yes":
		return market.SideYes, true
	case "no":
		return market.SideNo, true
	}
	return 0, false
}

func parseOutcome(s string) (market.Outcome, bool) {
	switch strings.ToUpper(s) {
	case "YES":
		return market.OutcomeYes, true
	case "NO":
		return market.OutcomeNo, true
	}
	return market.OutcomeNone, false
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ============================================================================
// Funds
// ============================================================================

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type ackResponse struct {
	Sequence int64 `json:"sequence"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.Deposit(requestID, account, req.Amount, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.Withdraw(requestID, account, req.Amount, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

type balanceResponse struct {
	UserID   string `json:"user_id"`
	Asset    string `json:"asset"`
	Balance  int64  `json:"balance"`
	Sequence int64  `json:"sequence"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(r.Header.Get(headerAccountID))
	if err != nil {
		writeBadRequest(w, "X-Account-ID must be a UUID")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		UserID:   account.String(),
		Asset:    "SATS",
		Balance:  s.engine.GetBalance(account),
		Sequence: s.engine.Sequence(),
	})
}

// ============================================================================
// Markets
// ============================================================================

type createMarketRequest struct {
	MarketID uint64 `json:"market_id"`
	Seed     int64  `json:"seed"`
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.CreateMarket(requestID, caller, req.MarketID, req.Seed, s.now()); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.engine.GetSnapshot(req.MarketID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.MarketIDs()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		snap, err := s.engine.GetSnapshot(id)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": out})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	snap, err := s.engine.GetSnapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	account, err := uuid.Parse(r.Header.Get(headerAccountID))
	if err != nil {
		writeBadRequest(w, "X-Account-ID must be a UUID")
		return
	}
	pos, err := s.engine.GetPosition(id, account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// ============================================================================
// Trading
// ============================================================================

type quoteRequest struct {
	Side   string `json:"side"`
	Amount int64  `json:"amount"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	var req quoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeBadRequest(w, "side must be yes or no")
		return
	}
	quote, err := s.engine.QuoteBuy(id, side, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type buyRequest struct {
	Side   string `json:"side"`
	Amount int64  `json:"amount"`
}

type buyResponse struct {
	market.FeeBreakdown
	Sequence int64 `json:"sequence"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	account, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeBadRequest(w, "side must be yes or no")
		return
	}
	quote, err := s.engine.Buy(requestID, account, id, side, req.Amount, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buyResponse{FeeBreakdown: quote, Sequence: s.engine.Sequence()})
}

type buyAutoRequest struct {
	Side     string `json:"side"`
	Amount   int64  `json:"amount"`
	SpendCap int64  `json:"spend_cap"`
	MaxCost  int64  `json:"max_cost"`
}

func (s *Server) handleBuyAuto(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	account, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req buyAutoRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeBadRequest(w, "side must be yes or no")
		return
	}
	quote, err := s.engine.BuyAuto(requestID, account, id, side, req.Amount, req.SpendCap, req.MaxCost, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buyResponse{FeeBreakdown: quote, Sequence: s.engine.Sequence()})
}

// ============================================================================
// Admin lifecycle
// ============================================================================

func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.AddLiquidity(requestID, caller, id, req.Amount, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.engine.Pause)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.engine.Unpause)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(requestID, caller uuid.UUID, marketID uint64, ts time.Time) error) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	if err := op(requestID, caller, id, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

type maxTradeRequest struct {
	MaxTrade int64 `json:"max_trade"`
}

func (s *Server) handleSetMaxTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req maxTradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.SetMaxTrade(requestID, caller, id, req.MaxTrade, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

// ============================================================================
// Settlement
// ============================================================================

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	outcome, ok := parseOutcome(req.Outcome)
	if !ok {
		writeBadRequest(w, "outcome must be YES or NO")
		return
	}
	if err := s.engine.Resolve(requestID, caller, id, outcome, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

type payoutResponse struct {
	Payout   int64 `json:"payout"`
	Sequence int64 `json:"sequence"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	account, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	payout, err := s.engine.Redeem(requestID, account, id, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutResponse{Payout: payout, Sequence: s.engine.Sequence()})
}

func (s *Server) handleWithdrawSurplus(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	surplus, err := s.engine.WithdrawSurplus(requestID, caller, id, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutResponse{Payout: surplus, Sequence: s.engine.Sequence()})
}

// ============================================================================
// Fee governance
// ============================================================================

type feeConfigResponse struct {
	ProtocolBps int64  `json:"protocol_bps"`
	LPBps       int64  `json:"lp_bps"`
	DripPct     int64  `json:"drip_pct"`
	BrcPct      int64  `json:"brc_pct"`
	TeamPct     int64  `json:"team_pct"`
	Drip        string `json:"drip_recipient"`
	Brc         string `json:"brc_recipient"`
	Team        string `json:"team_recipient"`
	LP          string `json:"lp_recipient"`
	Locked      bool   `json:"locked"`
}

func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request) {
	fc := s.engine.FeeConfig()
	writeJSON(w, http.StatusOK, feeConfigResponse{
		ProtocolBps: fc.ProtocolBps,
		LPBps:       fc.LPBps,
		DripPct:     fc.DripPct,
		BrcPct:      fc.BrcPct,
		TeamPct:     fc.TeamPct,
		Drip:        fc.Recipients.Drip.String(),
		Brc:         fc.Recipients.Brc.String(),
		Team:        fc.Recipients.Team.String(),
		LP:          fc.Recipients.LP.String(),
		Locked:      fc.Locked,
	})
}

type setFeesRequest struct {
	ProtocolBps int64 `json:"protocol_bps"`
	LPBps       int64 `json:"lp_bps"`
}

func (s *Server) handleSetFees(w http.ResponseWriter, r *http.Request) {
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req setFeesRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.SetFees(requestID, caller, req.ProtocolBps, req.LPBps, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

type setSplitRequest struct {
	DripPct int64 `json:"drip_pct"`
	BrcPct  int64 `json:"brc_pct"`
	TeamPct int64 `json:"team_pct"`
}

func (s *Server) handleSetSplit(w http.ResponseWriter, r *http.Request) {
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req setSplitRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := s.engine.SetSplit(requestID, caller, req.DripPct, req.BrcPct, req.TeamPct, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

type setRecipientsRequest struct {
	Drip string `json:"drip"`
	Brc  string `json:"brc"`
	Team string `json:"team"`
	LP   string `json:"lp"`
}

func (s *Server) handleSetRecipients(w http.ResponseWriter, r *http.Request) {
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	var req setRecipientsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	var rec market.FeeRecipients
	var err error
	if rec.Drip, err = uuid.Parse(req.Drip); err != nil {
		writeBadRequest(w, "drip must be a UUID")
		return
	}
	if rec.Brc, err = uuid.Parse(req.Brc); err != nil {
		writeBadRequest(w, "brc must be a UUID")
		return
	}
	if rec.Team, err = uuid.Parse(req.Team); err != nil {
		writeBadRequest(w, "team must be a UUID")
		return
	}
	if rec.LP, err = uuid.Parse(req.LP); err != nil {
		writeBadRequest(w, "lp must be a UUID")
		return
	}
	if err := s.engine.SetRecipients(requestID, caller, rec, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

func (s *Server) handleLockFees(w http.ResponseWriter, r *http.Request) {
	caller, requestID, ok := identity(r)
	if !ok {
		writeBadRequest(w, "X-Account-ID and X-Request-ID must be UUIDs")
		return
	}
	if err := s.engine.LockFees(requestID, caller, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Sequence: s.engine.Sequence()})
}

// ============================================================================
// Status and read models
// ============================================================================

type statusResponse struct {
	Sequence  int64  `json:"sequence"`
	StateHash string `json:"state_hash"`
	Markets   int    `json:"markets"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hash := s.engine.StateHash()
	writeJSON(w, http.StatusOK, statusResponse{
		Sequence:  s.engine.Sequence(),
		StateHash: hex.EncodeToString(hash[:]),
		Markets:   len(s.engine.MarketIDs()),
	})
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code: "unavailable", Message: "read models not configured",
		}})
		return
	}
	marketID, err := strconv.ParseUint(r.URL.Query().Get("market"), 10, 64)
	if err != nil {
		writeBadRequest(w, "market query parameter must be an unsigned integer")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var before *int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "before must be an integer sequence")
			return
		}
		before = &v
	}
	trades, err := s.query.GetTrades(r.Context(), marketID, limit, before)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

func (s *Server) handleJournalHistory(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code: "unavailable", Message: "read models not configured",
		}})
		return
	}
	account, err := uuid.Parse(r.Header.Get(headerAccountID))
	if err != nil {
		writeBadRequest(w, "X-Account-ID must be a UUID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var after *int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "after must be an integer sequence")
			return
		}
		after = &v
	}
	entries, err := s.query.GetJournalHistory(r.Context(), account, limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journal": entries})
}

// The projected market and balance endpoints answer from the read
// models, so they stay serviceable from Postgres alone and carry the
// as-of sequence instead of the live engine's.

func (s *Server) handleProjectedMarkets(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code: "unavailable", Message: "read models not configured",
		}})
		return
	}
	markets, err := s.query.ListMarkets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

func (s *Server) handleProjectedMarket(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code: "unavailable", Message: "read models not configured",
		}})
		return
	}
	id, ok := marketIDFromPath(r)
	if !ok {
		writeBadRequest(w, "market id must be an unsigned integer")
		return
	}
	m, err := s.query.GetMarket(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeError(w, market.ErrNotInitialized)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleProjectedBalance(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code: "unavailable", Message: "read models not configured",
		}})
		return
	}
	account, err := uuid.Parse(r.Header.Get(headerAccountID))
	if err != nil {
		writeBadRequest(w, "X-Account-ID must be a UUID")
		return
	}
	bal, err := s.query.GetBalance(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code: "unavailable", Message: "read models not configured",
		}})
		return
	}
	report, err := s.query.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

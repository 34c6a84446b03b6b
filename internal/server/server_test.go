package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/config"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/server"
)

type apiEnv struct {
	srv   *httptest.Server
	admin uuid.UUID
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	admin := uuid.New()
	engine := core.NewEngine(core.Config{
		AdminID:        admin,
		Policy:         market.PolicyProRata,
		PersistChan:    make(chan core.Output, 4096),
		ProjectionChan: make(chan core.Output, 4096),
		Logger:         zerolog.Nop(),
	})
	s := server.NewServer(config.Defaults().Server, server.Deps{
		Engine: engine,
		Logger: zerolog.Nop(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &apiEnv{srv: ts, admin: admin}
}

// do issues a request with fresh identity headers and decodes the body.
func (env *apiEnv) do(t *testing.T, method, path string, account uuid.UUID, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, env.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Account-ID", account.String())
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (env *apiEnv) deposit(t *testing.T, account uuid.UUID, amount int64) {
	t.Helper()
	code := env.do(t, http.MethodPost, "/v1/deposits", account, map[string]int64{"amount": amount}, nil)
	if code != http.StatusOK {
		t.Fatalf("deposit status = %d, want 200", code)
	}
}

func (env *apiEnv) createMarket(t *testing.T, id uint64, seed int64) {
	t.Helper()
	env.deposit(t, env.admin, seed)
	code := env.do(t, http.MethodPost, "/v1/markets", env.admin,
		map[string]any{"market_id": id, "seed": seed}, nil)
	if code != http.StatusCreated {
		t.Fatalf("create market status = %d, want 201", code)
	}
}

type errResp struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestDepositAndBalance(t *testing.T) {
	env := newAPIEnv(t)
	user := uuid.New()
	env.deposit(t, user, 50_000)

	var got struct {
		UserID  string `json:"user_id"`
		Asset   string `json:"asset"`
		Balance int64  `json:"balance"`
	}
	code := env.do(t, http.MethodGet, "/v1/balance", user, nil, &got)
	if code != http.StatusOK {
		t.Fatalf("balance status = %d, want 200", code)
	}
	if got.Balance != 50_000 {
		t.Errorf("balance = %d, want 50000", got.Balance)
	}
	if got.Asset != "SATS" {
		t.Errorf("asset = %q, want SATS", got.Asset)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	env := newAPIEnv(t)
	user := uuid.New()
	env.deposit(t, user, 100)

	var got errResp
	code := env.do(t, http.MethodPost, "/v1/withdrawals", user,
		map[string]int64{"amount": 500}, &got)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("withdraw status = %d, want 422", code)
	}
	if got.Error.Code != "u1" {
		t.Errorf("error code = %q, want u1", got.Error.Code)
	}
}

func TestCreateMarketRequiresAdmin(t *testing.T) {
	env := newAPIEnv(t)
	user := uuid.New()
	env.deposit(t, user, 10_000)

	var got errResp
	code := env.do(t, http.MethodPost, "/v1/markets", user,
		map[string]any{"market_id": 1, "seed": 10_000}, &got)
	if code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", code)
	}
	if got.Error.Code != "u706" {
		t.Errorf("error code = %q, want u706", got.Error.Code)
	}
}

func TestGetMarketUnknownIs404(t *testing.T) {
	env := newAPIEnv(t)
	var got errResp
	code := env.do(t, http.MethodGet, "/v1/markets/42", uuid.New(), nil, &got)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if got.Error.Code != "u721" {
		t.Errorf("error code = %q, want u721", got.Error.Code)
	}
}

func TestMarketSnapshotCarriesUnit(t *testing.T) {
	env := newAPIEnv(t)
	env.createMarket(t, 1, 100_000)

	var got struct {
		Pool int64 `json:"pool"`
		Unit int64 `json:"unit"`
	}
	code := env.do(t, http.MethodGet, "/v1/markets/1", uuid.New(), nil, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got.Unit != 100 {
		t.Errorf("unit = %d, want 100", got.Unit)
	}
	if got.Pool != 100_000 {
		t.Errorf("pool = %d, want 100000", got.Pool)
	}
}

func TestReadModelRoutesNeedQueryService(t *testing.T) {
	env := newAPIEnv(t)
	user := uuid.New()

	for _, path := range []string{
		"/v1/history/markets",
		"/v1/history/markets/1",
		"/v1/history/balance",
		"/v1/history/trades?market=1",
		"/v1/history/journal",
	} {
		var got errResp
		code := env.do(t, http.MethodGet, path, user, nil, &got)
		if code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, code)
		}
		if got.Error.Code != "unavailable" {
			t.Errorf("%s: error code = %q, want unavailable", path, got.Error.Code)
		}
	}
}

func TestQuoteThenBuyMatchesQuote(t *testing.T) {
	env := newAPIEnv(t)
	env.createMarket(t, 1, 100_000)
	user := uuid.New()
	env.deposit(t, user, 1_000_000)

	var quote market.FeeBreakdown
	code := env.do(t, http.MethodPost, "/v1/markets/1/quote", user,
		map[string]any{"side": "yes", "amount": 100}, &quote)
	if code != http.StatusOK {
		t.Fatalf("quote status = %d, want 200", code)
	}
	if quote.Total <= 0 {
		t.Fatalf("quote total = %d, want > 0", quote.Total)
	}

	var bought struct {
		market.FeeBreakdown
		Sequence int64 `json:"sequence"`
	}
	code = env.do(t, http.MethodPost, "/v1/markets/1/buy-auto", user,
		map[string]any{"side": "yes", "amount": 100, "spend_cap": 1_000_000, "max_cost": 0}, &bought)
	if code != http.StatusOK {
		t.Fatalf("buy status = %d, want 200", code)
	}
	if bought.FeeBreakdown != quote {
		t.Errorf("committed breakdown %+v diverged from quote %+v", bought.FeeBreakdown, quote)
	}

	var pos struct {
		Yes int64 `json:"yes"`
		No  int64 `json:"no"`
	}
	code = env.do(t, http.MethodGet, "/v1/markets/1/position", user, nil, &pos)
	if code != http.StatusOK {
		t.Fatalf("position status = %d, want 200", code)
	}
	if pos.Yes != 100 {
		t.Errorf("yes position = %d, want 100", pos.Yes)
	}
}

func TestBuyWithoutCapIsRejected(t *testing.T) {
	env := newAPIEnv(t)
	env.createMarket(t, 1, 100_000)
	user := uuid.New()
	env.deposit(t, user, 1_000_000)

	var got errResp
	code := env.do(t, http.MethodPost, "/v1/markets/1/buy", user,
		map[string]any{"side": "yes", "amount": 100}, &got)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", code)
	}
	if got.Error.Code != "u730" {
		t.Errorf("error code = %q, want u730", got.Error.Code)
	}
}

func TestResolveRedeemFlow(t *testing.T) {
	env := newAPIEnv(t)
	env.createMarket(t, 7, 100_000)
	user := uuid.New()
	env.deposit(t, user, 1_000_000)

	code := env.do(t, http.MethodPost, "/v1/markets/7/buy-auto", user,
		map[string]any{"side": "yes", "amount": 200, "spend_cap": 1_000_000, "max_cost": 0}, nil)
	if code != http.StatusOK {
		t.Fatalf("buy status = %d, want 200", code)
	}

	code = env.do(t, http.MethodPost, "/v1/markets/7/resolve", env.admin,
		map[string]string{"outcome": "YES"}, nil)
	if code != http.StatusOK {
		t.Fatalf("resolve status = %d, want 200", code)
	}

	var redeemed struct {
		Payout int64 `json:"payout"`
	}
	code = env.do(t, http.MethodPost, "/v1/markets/7/redeem", user, nil, &redeemed)
	if code != http.StatusOK {
		t.Fatalf("redeem status = %d, want 200", code)
	}
	if redeemed.Payout <= 0 {
		t.Errorf("payout = %d, want > 0", redeemed.Payout)
	}

	// Second resolve conflicts.
	var got errResp
	code = env.do(t, http.MethodPost, "/v1/markets/7/resolve", env.admin,
		map[string]string{"outcome": "NO"}, &got)
	if code != http.StatusConflict {
		t.Fatalf("second resolve status = %d, want 409", code)
	}
	if got.Error.Code != "u102" {
		t.Errorf("error code = %q, want u102", got.Error.Code)
	}
}

func TestDuplicateRequestIDConflicts(t *testing.T) {
	env := newAPIEnv(t)
	user := uuid.New()
	requestID := uuid.NewString()

	post := func() (int, errResp) {
		t.Helper()
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(map[string]int64{"amount": 1000})
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/v1/deposits", &buf)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("X-Account-ID", user.String())
		req.Header.Set("X-Request-ID", requestID)
		resp, err := env.srv.Client().Do(req)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		defer resp.Body.Close()
		var body errResp
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body
	}

	if code, _ := post(); code != http.StatusOK {
		t.Fatalf("first deposit status = %d, want 200", code)
	}
	code, body := post()
	if code != http.StatusConflict {
		t.Fatalf("replayed deposit status = %d, want 409", code)
	}
	if body.Error.Code != "duplicate_request" {
		t.Errorf("error code = %q, want duplicate_request", body.Error.Code)
	}
}

func TestFeeGovernanceEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	code := env.do(t, http.MethodPut, "/v1/fees", env.admin,
		map[string]int64{"protocol_bps": 200, "lp_bps": 100}, nil)
	if code != http.StatusOK {
		t.Fatalf("set fees status = %d, want 200", code)
	}
	code = env.do(t, http.MethodPut, "/v1/fees/split", env.admin,
		map[string]int64{"drip_pct": 50, "brc_pct": 30, "team_pct": 20}, nil)
	if code != http.StatusOK {
		t.Fatalf("set split status = %d, want 200", code)
	}

	var fees struct {
		ProtocolBps int64 `json:"protocol_bps"`
		DripPct     int64 `json:"drip_pct"`
		Locked      bool  `json:"locked"`
	}
	code = env.do(t, http.MethodGet, "/v1/fees", env.admin, nil, &fees)
	if code != http.StatusOK {
		t.Fatalf("get fees status = %d, want 200", code)
	}
	if fees.ProtocolBps != 200 || fees.DripPct != 50 {
		t.Errorf("fees = %+v, want protocol 200 drip 50", fees)
	}

	code = env.do(t, http.MethodPost, "/v1/fees/lock", env.admin, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("lock status = %d, want 200", code)
	}

	var got errResp
	code = env.do(t, http.MethodPut, "/v1/fees", env.admin,
		map[string]int64{"protocol_bps": 300, "lp_bps": 0}, &got)
	if code != http.StatusConflict {
		t.Fatalf("post-lock set fees status = %d, want 409", code)
	}
	if got.Error.Code != "u743" {
		t.Errorf("error code = %q, want u743", got.Error.Code)
	}
}

func TestMissingIdentityHeadersIs400(t *testing.T) {
	env := newAPIEnv(t)
	resp, err := env.srv.Client().Post(env.srv.URL+"/v1/deposits", "application/json",
		bytes.NewBufferString(`{"amount":100}`))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusReportsHashChain(t *testing.T) {
	env := newAPIEnv(t)
	env.deposit(t, uuid.New(), 1000)

	var got struct {
		Sequence  int64  `json:"sequence"`
		StateHash string `json:"state_hash"`
	}
	code := env.do(t, http.MethodGet, "/v1/status", uuid.New(), nil, &got)
	if code != http.StatusOK {
		t.Fatalf("status endpoint = %d, want 200", code)
	}
	if got.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", got.Sequence)
	}
	if len(got.StateHash) != 64 {
		t.Errorf("state hash length = %d, want 64 hex chars", len(got.StateHash))
	}
}

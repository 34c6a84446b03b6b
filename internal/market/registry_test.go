package market_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
)

const seed = 100_000

func newOpenMarket(t *testing.T) (*market.Registry, *market.Market) {
	t.Helper()
	r := market.NewRegistry(market.PolicyProRata)
	m, err := r.Create(1, seed)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r, m
}

// ============================================================================
// Test: Create
// ============================================================================

func TestCreate_SeedCalibratesLiquidity(t *testing.T) {
	_, m := newOpenMarket(t)

	if m.Pool != seed {
		t.Errorf("pool: got %d, want %d", m.Pool, seed)
	}
	if m.B <= 0 {
		t.Errorf("b should be positive, got %d", m.B)
	}
	if m.YesSupply != 0 || m.NoSupply != 0 {
		t.Errorf("supplies should start at zero, got yes=%d no=%d", m.YesSupply, m.NoSupply)
	}
	if m.Status != market.StatusOpen {
		t.Errorf("status: got %v, want open", m.Status)
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	r, _ := newOpenMarket(t)

	if _, err := r.Create(1, seed); !errors.Is(err, market.ErrMarketExists) {
		t.Errorf("got %v, want ErrMarketExists", err)
	}
}

func TestCreate_ZeroSeed(t *testing.T) {
	r := market.NewRegistry(market.PolicyProRata)

	if _, err := r.Create(7, 0); !errors.Is(err, market.ErrZeroLiquidity) {
		t.Errorf("seed 0: got %v, want ErrZeroLiquidity", err)
	}
	if _, err := r.Create(7, -5); !errors.Is(err, market.ErrZeroLiquidity) {
		t.Errorf("negative seed: got %v, want ErrZeroLiquidity", err)
	}
}

// ============================================================================
// Test: Quote and Buy
// ============================================================================

func TestQuoteBuy_MatchesCommittedBuy(t *testing.T) {
	r, _ := newOpenMarket(t)
	acct := uuid.New()

	quote, err := r.QuoteBuy(1, market.SideYes, 500)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	got, err := r.BuyAuto(1, market.SideYes, 500, acct, 1_000_000, 0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got != quote {
		t.Errorf("committed buy %+v differs from quote %+v", got, quote)
	}
}

func TestQuoteBuy_UnknownMarket(t *testing.T) {
	r := market.NewRegistry(market.PolicyProRata)

	if _, err := r.QuoteBuy(99, market.SideYes, 10); !errors.Is(err, market.ErrNotInitialized) {
		t.Errorf("got %v, want ErrNotInitialized", err)
	}
}

func TestBuy_PoolGrowsByBaseCostOnly(t *testing.T) {
	r, m := newOpenMarket(t)
	fees := r.Fees()
	if err := fees.SetFees(200, 100); err != nil {
		t.Fatal(err)
	}
	acct := uuid.New()

	q, err := r.BuyAuto(1, market.SideYes, 1000, acct, 1_000_000, 0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if q.FeeProtocol == 0 || q.FeeLP == 0 {
		t.Fatalf("expected nonzero fees, got %+v", q)
	}
	if m.Pool != seed+q.Cost {
		t.Errorf("pool: got %d, want seed+cost=%d (fees must not enter the pool)", m.Pool, seed+q.Cost)
	}
	if m.Balance(acct, market.SideYes) != 1000 {
		t.Errorf("shares: got %d, want 1000", m.Balance(acct, market.SideYes))
	}
	if m.Spent(acct) != q.Total {
		t.Errorf("spent: got %d, want total %d (fees included)", m.Spent(acct), q.Total)
	}
}

func TestBuy_FreshMarketCostBounds(t *testing.T) {
	r, _ := newOpenMarket(t)
	acct := uuid.New()

	q, err := r.BuyAuto(1, market.SideYes, 1000, acct, 1_000_000, 0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	// On a balanced book a share prices between half face value and face
	// value: 50_000 < cost < 100_000 for 1000 shares at unit 100.
	if q.Cost <= 1000*100/2 || q.Cost >= 1000*100 {
		t.Errorf("fresh-market cost out of range: got %d", q.Cost)
	}
}

func TestBuy_SecondBuySameSideCostsMore(t *testing.T) {
	r, _ := newOpenMarket(t)
	acct := uuid.New()

	first, err := r.BuyAuto(1, market.SideYes, 500, acct, 10_000_000, 0)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	second, err := r.BuyAuto(1, market.SideYes, 500, acct, 10_000_000, 0)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if second.Cost <= first.Cost {
		t.Errorf("price should rise with inventory: first=%d second=%d", first.Cost, second.Cost)
	}
}

func TestBuy_ZeroAmount(t *testing.T) {
	r, _ := newOpenMarket(t)
	acct := uuid.New()

	if _, err := r.BuyAuto(1, market.SideYes, 0, acct, 1_000_000, 0); !errors.Is(err, market.ErrZeroAmount) {
		t.Errorf("amount 0: got %v, want ErrZeroAmount", err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, -3, acct, 1_000_000, 0); !errors.Is(err, market.ErrZeroAmount) {
		t.Errorf("negative amount: got %v, want ErrZeroAmount", err)
	}
}

func TestBuy_UnknownMarket(t *testing.T) {
	r := market.NewRegistry(market.PolicyProRata)

	if _, err := r.Buy(42, market.SideYes, 10, uuid.New()); !errors.Is(err, market.ErrNotInitialized) {
		t.Errorf("got %v, want ErrNotInitialized", err)
	}
}

// ============================================================================
// Test: spend caps and slippage
// ============================================================================

func TestBuy_DirectWithoutCap(t *testing.T) {
	r, _ := newOpenMarket(t)

	if _, err := r.Buy(1, market.SideYes, 10, uuid.New()); !errors.Is(err, market.ErrCapNotSet) {
		t.Errorf("got %v, want ErrCapNotSet", err)
	}
}

func TestBuyAuto_RaisesCapThenDirectWorks(t *testing.T) {
	r, m := newOpenMarket(t)
	acct := uuid.New()

	if _, err := r.BuyAuto(1, market.SideYes, 100, acct, 1_000_000, 0); err != nil {
		t.Fatalf("auto buy: %v", err)
	}
	if m.Cap(acct) != 1_000_000 {
		t.Errorf("cap: got %d, want 1_000_000", m.Cap(acct))
	}

	// Cap persists: a plain buy under the raised cap succeeds.
	if _, err := r.Buy(1, market.SideYes, 100, acct); err != nil {
		t.Errorf("direct buy under raised cap: %v", err)
	}
}

func TestBuyAuto_NeverLowersCap(t *testing.T) {
	r, m := newOpenMarket(t)
	acct := uuid.New()

	if _, err := r.BuyAuto(1, market.SideYes, 100, acct, 1_000_000, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, 100, acct, 50_000, 0); err != nil {
		t.Fatal(err)
	}
	if m.Cap(acct) != 1_000_000 {
		t.Errorf("cap lowered: got %d, want 1_000_000", m.Cap(acct))
	}
}

func TestBuy_CapExceeded(t *testing.T) {
	r, m := newOpenMarket(t)
	acct := uuid.New()

	q, err := r.BuyAuto(1, market.SideYes, 100, acct, 20_000, 0)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}

	// Burn most of the headroom, then ask for a trade that cannot fit.
	remaining := 20_000 - q.Total
	big, err := r.QuoteBuy(1, market.SideYes, 5_000)
	if err != nil {
		t.Fatal(err)
	}
	if big.Total <= remaining {
		t.Fatalf("test setup: trade total %d should exceed headroom %d", big.Total, remaining)
	}

	supplyBefore := m.YesSupply
	if _, err := r.Buy(1, market.SideYes, 5_000, acct); !errors.Is(err, market.ErrCapExceeded) {
		t.Errorf("got %v, want ErrCapExceeded", err)
	}
	if m.YesSupply != supplyBefore {
		t.Errorf("failed buy mutated supply: %d -> %d", supplyBefore, m.YesSupply)
	}
}

func TestBuyAuto_SlippageExceeded(t *testing.T) {
	r, m := newOpenMarket(t)
	acct := uuid.New()

	q, err := r.QuoteBuy(1, market.SideYes, 1000)
	if err != nil {
		t.Fatal(err)
	}

	poolBefore := m.Pool
	_, err = r.BuyAuto(1, market.SideYes, 1000, acct, 1_000_000, q.Total-1)
	if !errors.Is(err, market.ErrSlippageExceeded) {
		t.Errorf("got %v, want ErrSlippageExceeded", err)
	}
	if m.Pool != poolBefore {
		t.Errorf("failed buy mutated pool: %d -> %d", poolBefore, m.Pool)
	}
	if m.Cap(acct) != 0 {
		t.Errorf("failed auto buy must not raise the cap, got %d", m.Cap(acct))
	}

	// Exactly at the bound passes.
	if _, err := r.BuyAuto(1, market.SideYes, 1000, acct, 1_000_000, q.Total); err != nil {
		t.Errorf("total == maxCost should pass: %v", err)
	}
}

func TestBuyAuto_ZeroMaxCostMeansUnbounded(t *testing.T) {
	r, _ := newOpenMarket(t)

	if _, err := r.BuyAuto(1, market.SideNo, 1000, uuid.New(), 1_000_000, 0); err != nil {
		t.Errorf("maxCost 0 should not bound the trade: %v", err)
	}
}

// ============================================================================
// Test: pause, max trade, liquidity
// ============================================================================

func TestPause_BlocksTrading(t *testing.T) {
	r, _ := newOpenMarket(t)
	acct := uuid.New()

	if err := r.Pause(1); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, 10, acct, 1_000_000, 0); !errors.Is(err, market.ErrPaused) {
		t.Errorf("got %v, want ErrPaused", err)
	}

	if err := r.Unpause(1); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, 10, acct, 1_000_000, 0); err != nil {
		t.Errorf("buy after unpause: %v", err)
	}
}

func TestPause_AfterResolve(t *testing.T) {
	r, _ := newOpenMarket(t)
	if err := r.Resolve(1, market.OutcomeYes); err != nil {
		t.Fatal(err)
	}

	if err := r.Pause(1); !errors.Is(err, market.ErrAlreadyResolved) {
		t.Errorf("pause: got %v, want ErrAlreadyResolved", err)
	}
	if err := r.Unpause(1); !errors.Is(err, market.ErrAlreadyResolved) {
		t.Errorf("unpause: got %v, want ErrAlreadyResolved", err)
	}
}

func TestSetMaxTrade_Enforced(t *testing.T) {
	r, _ := newOpenMarket(t)
	acct := uuid.New()

	if err := r.SetMaxTrade(1, 500); err != nil {
		t.Fatal(err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, 501, acct, 1_000_000, 0); !errors.Is(err, market.ErrTradeTooLarge) {
		t.Errorf("got %v, want ErrTradeTooLarge", err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, 500, acct, 1_000_000, 0); err != nil {
		t.Errorf("at the limit should pass: %v", err)
	}

	// 0 removes the limit.
	if err := r.SetMaxTrade(1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.BuyAuto(1, market.SideYes, 5_000, acct, 10_000_000, 0); err != nil {
		t.Errorf("buy after limit removed: %v", err)
	}
}

func TestAddLiquidity_DeepensBookAndCheapensTrades(t *testing.T) {
	r, m := newOpenMarket(t)

	before, err := r.QuoteBuy(1, market.SideYes, 1000)
	if err != nil {
		t.Fatal(err)
	}

	bBefore := m.B
	if err := r.AddLiquidity(1, 50_000); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if m.Pool != seed+50_000 {
		t.Errorf("pool: got %d, want %d", m.Pool, seed+50_000)
	}
	if m.B <= bBefore {
		t.Errorf("b should grow: %d -> %d", bBefore, m.B)
	}

	after, err := r.QuoteBuy(1, market.SideYes, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if after.Cost > before.Cost+1 {
		t.Errorf("deeper book should not raise cost: before=%d after=%d", before.Cost, after.Cost)
	}
}

func TestAddLiquidity_Guards(t *testing.T) {
	r, _ := newOpenMarket(t)

	if err := r.AddLiquidity(99, 10); !errors.Is(err, market.ErrNotInitialized) {
		t.Errorf("unknown market: got %v, want ErrNotInitialized", err)
	}
	if err := r.AddLiquidity(1, 0); !errors.Is(err, market.ErrZeroLiquidity) {
		t.Errorf("zero amount: got %v, want ErrZeroLiquidity", err)
	}

	// Allowed while paused.
	if err := r.Pause(1); err != nil {
		t.Fatal(err)
	}
	if err := r.AddLiquidity(1, 10); err != nil {
		t.Errorf("paused market should accept liquidity: %v", err)
	}
	if err := r.Unpause(1); err != nil {
		t.Fatal(err)
	}

	if err := r.Resolve(1, market.OutcomeYes); err != nil {
		t.Fatal(err)
	}
	if err := r.AddLiquidity(1, 10); !errors.Is(err, market.ErrTradingClosed) {
		t.Errorf("resolved market: got %v, want ErrTradingClosed", err)
	}
}

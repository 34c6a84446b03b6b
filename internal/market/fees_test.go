package market_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
)

// ============================================================================
// Test: FeeConfig defaults and setters
// ============================================================================

func TestFeeConfig_DefaultIsZeroFee(t *testing.T) {
	c := market.NewFeeConfig()

	if c.ProtocolBps != 0 || c.LPBps != 0 {
		t.Errorf("default rates should be zero, got protocol=%d lp=%d", c.ProtocolBps, c.LPBps)
	}
	if c.TeamPct != 100 || c.DripPct != 0 || c.BrcPct != 0 {
		t.Errorf("default split should be 0/0/100, got %d/%d/%d", c.DripPct, c.BrcPct, c.TeamPct)
	}

	q := c.Quote(12345)
	if q.FeeProtocol != 0 || q.FeeLP != 0 || q.Total != 12345 {
		t.Errorf("zero-fee quote should pass cost through, got %+v", q)
	}
}

func TestFeeConfig_SetFees_RangeChecks(t *testing.T) {
	c := market.NewFeeConfig()

	if err := c.SetFees(10_001, 0); !errors.Is(err, market.ErrProtocolBpsRange) {
		t.Errorf("protocol bps over 10000: got %v, want ErrProtocolBpsRange", err)
	}
	if err := c.SetFees(-1, 0); !errors.Is(err, market.ErrProtocolBpsRange) {
		t.Errorf("negative protocol bps: got %v, want ErrProtocolBpsRange", err)
	}
	if err := c.SetFees(0, 10_001); !errors.Is(err, market.ErrLPBpsRange) {
		t.Errorf("lp bps over 10000: got %v, want ErrLPBpsRange", err)
	}
	if err := c.SetFees(200, 100); err != nil {
		t.Fatalf("valid rates rejected: %v", err)
	}
	if c.ProtocolBps != 200 || c.LPBps != 100 {
		t.Errorf("rates not stored, got protocol=%d lp=%d", c.ProtocolBps, c.LPBps)
	}
}

func TestFeeConfig_SetSplit_MustSumToHundred(t *testing.T) {
	c := market.NewFeeConfig()

	if err := c.SetSplit(50, 30, 19); !errors.Is(err, market.ErrSplitNotHundred) {
		t.Errorf("sum 99: got %v, want ErrSplitNotHundred", err)
	}
	if err := c.SetSplit(50, 30, 21); !errors.Is(err, market.ErrSplitNotHundred) {
		t.Errorf("sum 101: got %v, want ErrSplitNotHundred", err)
	}
	if err := c.SetSplit(120, -40, 20); !errors.Is(err, market.ErrSplitNotHundred) {
		t.Errorf("negative part: got %v, want ErrSplitNotHundred", err)
	}
	if err := c.SetSplit(50, 30, 20); err != nil {
		t.Fatalf("valid split rejected: %v", err)
	}
}

func TestFeeConfig_Lock_LatchesAllSetters(t *testing.T) {
	c := market.NewFeeConfig()
	c.Lock()
	c.Lock() // idempotent

	if err := c.SetFees(100, 100); !errors.Is(err, market.ErrFeeConfigLocked) {
		t.Errorf("SetFees after lock: got %v, want ErrFeeConfigLocked", err)
	}
	if err := c.SetSplit(50, 30, 20); !errors.Is(err, market.ErrFeeConfigLocked) {
		t.Errorf("SetSplit after lock: got %v, want ErrFeeConfigLocked", err)
	}
	if err := c.SetRecipients(market.FeeRecipients{Team: uuid.New()}); !errors.Is(err, market.ErrFeeConfigLocked) {
		t.Errorf("SetRecipients after lock: got %v, want ErrFeeConfigLocked", err)
	}
}

// ============================================================================
// Test: Quote arithmetic
// ============================================================================

func TestQuote_RoundingAndExactSums(t *testing.T) {
	c := market.NewFeeConfig()
	if err := c.SetFees(200, 100); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSplit(50, 30, 20); err != nil {
		t.Fatal(err)
	}

	q := c.Quote(1001)

	// ceil(1001*200/10000)=21, ceil(1001*100/10000)=11
	if q.FeeProtocol != 21 {
		t.Errorf("FeeProtocol: got %d, want 21", q.FeeProtocol)
	}
	if q.FeeLP != 11 {
		t.Errorf("FeeLP: got %d, want 11", q.FeeLP)
	}
	// floor(21*50/100)=10, floor(21*30/100)=6, team takes 21-10-6=5
	if q.Drip != 10 || q.Brc != 6 || q.Team != 5 {
		t.Errorf("split: got %d/%d/%d, want 10/6/5", q.Drip, q.Brc, q.Team)
	}
	if q.Total != 1033 {
		t.Errorf("Total: got %d, want 1033", q.Total)
	}
}

func TestQuote_IdentitiesHoldAcrossCosts(t *testing.T) {
	c := market.NewFeeConfig()
	if err := c.SetFees(137, 59); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSplit(33, 33, 34); err != nil {
		t.Fatal(err)
	}

	for _, cost := range []int64{1, 2, 3, 99, 100, 101, 9_999, 10_000, 123_457, 1_000_000_007} {
		q := c.Quote(cost)
		if q.Total != q.Cost+q.FeeProtocol+q.FeeLP {
			t.Errorf("cost=%d: total %d != cost+fees %d", cost, q.Total, q.Cost+q.FeeProtocol+q.FeeLP)
		}
		if q.Drip+q.Brc+q.Team != q.FeeProtocol {
			t.Errorf("cost=%d: split parts %d != protocol fee %d", cost, q.Drip+q.Brc+q.Team, q.FeeProtocol)
		}
		if q.Drip < 0 || q.Brc < 0 || q.Team < 0 {
			t.Errorf("cost=%d: negative split part in %+v", cost, q)
		}
	}
}

func TestQuote_Deterministic(t *testing.T) {
	c := market.NewFeeConfig()
	if err := c.SetFees(250, 75); err != nil {
		t.Fatal(err)
	}

	a := c.Quote(54_321)
	b := c.Quote(54_321)
	if a != b {
		t.Errorf("repeated quote differs: %+v vs %+v", a, b)
	}
}

package fpmath_test

import (
	"testing"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/fpmath"
)

const unit = 100

func TestLiquidityFromSeed_Calibration(t *testing.T) {
	// b = seed/(unit·ln2) at Scale: 10_000/(100·0.693147...) = 144.269504...
	got := fpmath.LiquidityFromSeed(10_000, unit)
	if got != 144_269_504 {
		t.Errorf("got %d, want 144269504", got)
	}
}

func TestLiquidityFromSeed_PositiveAndMonotone(t *testing.T) {
	prev := int64(0)
	for _, seed := range []int64{1, 100, 10_000, 1_000_000, 100_000_000} {
		b := fpmath.LiquidityFromSeed(seed, unit)
		if b <= 0 {
			t.Fatalf("seed %d: b = %d, want > 0", seed, b)
		}
		if b <= prev {
			t.Fatalf("seed %d: b = %d not greater than %d", seed, b, prev)
		}
		prev = b
	}
}

func TestCostDelta_FreshMarketBounds(t *testing.T) {
	// On an empty market both sides price at 1/2, and buying pushes the
	// price up, so unit·delta/2 <= cost <= unit·delta.
	b := fpmath.LiquidityFromSeed(100_000, unit)
	delta := int64(1_000)

	got := fpmath.CostDelta(0, 0, b, delta, 0, unit)
	if got < unit*delta/2 {
		t.Errorf("cost %d below half-rate floor %d", got, unit*delta/2)
	}
	if got > unit*delta {
		t.Errorf("cost %d above full-rate ceiling %d", got, unit*delta)
	}
}

func TestCostDelta_SideSymmetry(t *testing.T) {
	b := fpmath.LiquidityFromSeed(50_000, unit)
	yes := fpmath.CostDelta(0, 0, b, 300, 0, unit)
	no := fpmath.CostDelta(0, 0, b, 0, 300, unit)
	if yes != no {
		t.Errorf("yes cost %d != no cost %d on symmetric market", yes, no)
	}
}

func TestCostDelta_TranslationInvariant(t *testing.T) {
	// C(qYes+c, qNo+c) = C(qYes, qNo) + c, so equal shifts of both
	// supplies leave the delta cost unchanged, exactly.
	b := fpmath.LiquidityFromSeed(25_000, unit)
	base := fpmath.CostDelta(40, 10, b, 55, 0, unit)
	shifted := fpmath.CostDelta(40+1000, 10+1000, b, 55, 0, unit)
	if base != shifted {
		t.Errorf("shifted cost %d != base cost %d", shifted, base)
	}
}

func TestCostDelta_MonotoneInDelta(t *testing.T) {
	b := fpmath.LiquidityFromSeed(10_000, unit)
	prev := int64(0)
	for _, delta := range []int64{10, 25, 50, 100, 250, 500} {
		c := fpmath.CostDelta(20, 35, b, delta, 0, unit)
		if c <= prev {
			t.Fatalf("delta %d: cost %d not greater than %d", delta, c, prev)
		}
		prev = c
	}
}

func TestCostDelta_MoreLiquidityNeverCostsMore(t *testing.T) {
	// Raising b cheapens the same trade; round-up may add back at most
	// one settlement unit.
	small := fpmath.LiquidityFromSeed(10_000, unit)
	large := fpmath.LiquidityFromSeed(50_000, unit)

	for _, delta := range []int64{1, 10, 100, 1_000} {
		cSmall := fpmath.CostDelta(100, 40, small, delta, 0, unit)
		cLarge := fpmath.CostDelta(100, 40, large, delta, 0, unit)
		if cLarge > cSmall+1 {
			t.Errorf("delta %d: cost %d with deep book exceeds %d with shallow book",
				delta, cLarge, cSmall)
		}
	}
}

func TestCostDelta_Deterministic(t *testing.T) {
	b := fpmath.LiquidityFromSeed(77_777, unit)
	first := fpmath.CostDelta(123, 456, b, 789, 0, unit)
	for i := 0; i < 10; i++ {
		if c := fpmath.CostDelta(123, 456, b, 789, 0, unit); c != first {
			t.Fatalf("run %d: cost %d != first run %d", i, c, first)
		}
	}
}

func TestCostDelta_NeverFree(t *testing.T) {
	// Buying the cheap side of an extremely lopsided market underflows
	// the curve but still costs one settlement unit.
	b := fpmath.LiquidityFromSeed(1_000, unit)
	got := fpmath.CostDelta(1_000_000, 0, b, 0, 1, unit)
	if got < 1 {
		t.Errorf("got %d, want >= 1", got)
	}
}

func TestCostDelta_ZeroDeltaIsZero(t *testing.T) {
	b := fpmath.LiquidityFromSeed(10_000, unit)
	if got := fpmath.CostDelta(50, 60, b, 0, 0, unit); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

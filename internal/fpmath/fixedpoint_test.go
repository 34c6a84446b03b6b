package fpmath_test

import (
	"math/big"
	"testing"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/fpmath"
)

func TestMulDiv_RoundDown(t *testing.T) {
	// 10*3/4 = 7.5
	got := fpmath.MulDiv(10, 3, 4, fpmath.RoundDown)
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestMulDiv_RoundUp(t *testing.T) {
	got := fpmath.MulDiv(10, 3, 4, fpmath.RoundUp)
	if got != 8 {
		t.Errorf("got %d, want 8", got)
	}
}

func TestMulDiv_ExactNoBump(t *testing.T) {
	// Exact division must not round up.
	got := fpmath.MulDiv(100, 50, 100, fpmath.RoundUp)
	if got != 50 {
		t.Errorf("got %d, want 50", got)
	}
}

func TestMulDiv_FeeBps(t *testing.T) {
	// ceil(10000 * 50 / 10000) = 50, ceil(10001 * 50 / 10000) = 51
	if got := fpmath.MulDiv(10000, 50, 10000, fpmath.RoundUp); got != 50 {
		t.Errorf("got %d, want 50", got)
	}
	if got := fpmath.MulDiv(10001, 50, 10000, fpmath.RoundUp); got != 51 {
		t.Errorf("got %d, want 51", got)
	}
}

func TestMulDiv_LargeOperandsNoOverflow(t *testing.T) {
	// 2^62 * 3 overflows int64; the big.Int path must not.
	a := int64(1) << 62
	got := fpmath.MulDiv(a, 3, 3, fpmath.RoundDown)
	if got != a {
		t.Errorf("got %d, want %d", got, a)
	}
}

func TestCeilDiv(t *testing.T) {
	if got := fpmath.CeilDiv(big.NewInt(10), big.NewInt(3)); got != 4 {
		t.Errorf("got %d, want 4", got)
	}
	if got := fpmath.CeilDiv(big.NewInt(9), big.NewInt(3)); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := fpmath.CeilDiv(big.NewInt(0), big.NewInt(3)); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

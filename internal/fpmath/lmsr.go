package fpmath

import "math/big"

// LMSR cost curve in deterministic fixed-point arithmetic.
//
// The canonical form C(qYes, qNo) = b·ln(e^{qYes/b} + e^{qNo/b}) is
// evaluated as
//
//	C = max(qYes, qNo) + b·ln(1 + e^{-|qYes-qNo|/b})
//
// so every transcendental argument is bounded: the exponent is in
// (-inf, 0] and the log1p argument in (0, 1]. Both series below run a
// fixed number of terms, so identical inputs produce identical integer
// results on every run and every platform. No binary floating point
// anywhere.
//
// Internal curve values use curveScale (1e18); the liquidity parameter
// b is carried at Scale (1e6) share units.

var (
	curveScale = big.NewInt(1_000_000_000_000_000_000)
	// ln(2) at curveScale.
	ln2Curve = big.NewInt(693_147_180_559_945_309)
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
)

const (
	expTerms   = 30 // Taylor terms for e^{-r}, r in [0, ln 2)
	log1pTerms = 19 // odd atanh terms for ln(1+z), z in [0, 1]
)

// expNeg returns e^{-x} at curveScale for x >= 0 at curveScale.
// Range reduction: x = k·ln2 + r, e^{-x} = 2^{-k}·e^{-r}.
func expNeg(x *big.Int) *big.Int {
	if x.Sign() < 0 {
		panic("fpmath: expNeg of negative argument")
	}

	k := new(big.Int)
	r := new(big.Int)
	k.DivMod(x, ln2Curve, r)

	// Beyond 2^-63 the result underflows curveScale to zero anyway.
	if !k.IsInt64() || k.Int64() >= 63 {
		return new(big.Int)
	}
	shift := uint(k.Int64())

	// Taylor: e^{-r} = Σ (-r)^n / n!
	sum := new(big.Int).Set(curveScale)
	term := new(big.Int).Set(curveScale)
	for n := int64(1); n <= expTerms; n++ {
		term.Mul(term, r)
		term.Quo(term, curveScale)
		term.Quo(term, big.NewInt(n))
		term.Neg(term)
		sum.Add(sum, term)
	}
	if sum.Sign() < 0 {
		sum.SetInt64(0)
	}

	return sum.Rsh(sum, shift)
}

// log1p returns ln(1+z) at curveScale for z in [0, curveScale].
// Uses ln(1+z) = 2·artanh(z/(2+z)); with z <= 1 the series argument
// is <= 1/3 and converges geometrically.
func log1p(z *big.Int) *big.Int {
	if z.Sign() < 0 || z.Cmp(curveScale) > 0 {
		panic("fpmath: log1p argument out of [0, 1]")
	}
	if z.Sign() == 0 {
		return new(big.Int)
	}

	// w = z / (2 + z) at curveScale
	den := new(big.Int).Mul(bigTwo, curveScale)
	den.Add(den, z)
	w := new(big.Int).Mul(z, curveScale)
	w.Quo(w, den)

	wsq := new(big.Int).Mul(w, w)
	wsq.Quo(wsq, curveScale)

	sum := new(big.Int).Set(w)
	pow := new(big.Int).Set(w)
	tmp := new(big.Int)
	for i := 1; i < log1pTerms; i++ {
		pow.Mul(pow, wsq)
		pow.Quo(pow, curveScale)
		n := int64(2*i + 1)
		tmp.Quo(pow, big.NewInt(n))
		sum.Add(sum, tmp)
	}

	return sum.Mul(sum, bigTwo)
}

// cost evaluates C(qYes, qNo) at curveScale, in share units.
// Supplies are whole shares, b is at Scale.
func cost(qYes, qNo, b int64) *big.Int {
	if b <= 0 {
		panic("fpmath: cost with non-positive b")
	}

	hi, lo := qYes, qNo
	if lo > hi {
		hi, lo = lo, hi
	}
	d := hi - lo

	// x = d/b at curveScale: d is whole shares, b is at Scale.
	x := new(big.Int).Mul(big.NewInt(d), big.NewInt(Scale))
	x.Mul(x, curveScale)
	x.Quo(x, big.NewInt(b))

	t := log1p(expNeg(x))

	// C = hi + b·t  (b at Scale, t at curveScale)
	c := new(big.Int).Mul(big.NewInt(hi), curveScale)
	t.Mul(t, big.NewInt(b))
	t.Quo(t, big.NewInt(Scale))
	return c.Add(c, t)
}

// CostDelta prices a purchase of deltaYes/deltaNo shares on top of the
// current supplies: unit·(C(after) − C(before)) settlement units,
// rounded up so truncation never underprices the pool. Exactly one of
// deltaYes/deltaNo is expected to be non-zero for a single-sided buy.
func CostDelta(qYes, qNo, b int64, deltaYes, deltaNo int64, unit int64) int64 {
	before := cost(qYes, qNo, b)
	after := cost(qYes+deltaYes, qNo+deltaNo, b)

	diff := after.Sub(after, before)
	if diff.Sign() < 0 {
		// C is non-decreasing in both supplies; a negative diff means
		// a corrupted aggregate, not a pricing edge case.
		panic("fpmath: negative cost delta")
	}

	diff.Mul(diff, big.NewInt(unit))
	c := CeilDiv(diff, curveScale)
	if c == 0 && deltaYes+deltaNo > 0 {
		// A heavily lopsided market can underflow the curve below one
		// settlement unit; shares are never minted for free.
		c = 1
	}
	return c
}

// LiquidityFromSeed calibrates b from seed liquidity: b = seed/(unit·ln 2)
// at Scale. With this calibration the market maker's worst-case loss,
// unit·b·ln 2, equals the seed, so a market funded only by its seed can
// always cover the winning side at unit per share.
func LiquidityFromSeed(seed, unit int64) int64 {
	num := new(big.Int).Mul(big.NewInt(seed), big.NewInt(Scale))
	num.Mul(num, curveScale)
	den := new(big.Int).Mul(big.NewInt(unit), ln2Curve)
	num.Quo(num, den)
	return num.Int64()
}

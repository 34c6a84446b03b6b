package fpmath

import (
	"math/big"
	"sync"
)

// Scale is the fixed-point scale for externally visible quantities
// such as the liquidity parameter b (6 decimal places).
const Scale int64 = 1_000_000

// RoundingMode selects how MulDiv resolves a non-zero remainder.
type RoundingMode int

const (
	RoundDown RoundingMode = iota // truncate toward zero
	RoundUp                       // away from zero
)

// bigPool recycles big.Int scratch values for intermediate products.
var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// MulDiv computes a*b/den without intermediate overflow, applying the
// given rounding mode. All arguments must be non-negative and den > 0;
// the engine only prices non-negative quantities.
func MulDiv(a, b, den int64, mode RoundingMode) int64 {
	if den <= 0 {
		panic("fpmath: MulDiv with non-positive denominator")
	}

	product := getBig()
	product.Mul(big.NewInt(a), big.NewInt(b))

	quotient := getBig()
	remainder := getBig()
	quotient.DivMod(product, big.NewInt(den), remainder)

	result := quotient.Int64()
	if mode == RoundUp && remainder.Sign() != 0 {
		result++
	}

	putBig(product)
	putBig(quotient)
	putBig(remainder)

	return result
}

// CeilDiv returns ceil(num/den) for a non-negative big.Int numerator.
func CeilDiv(num *big.Int, den *big.Int) int64 {
	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.DivMod(num, den, remainder)

	result := quotient.Int64()
	if remainder.Sign() != 0 {
		result++
	}
	return result
}

package pricing

import (
	"math/big"
)

// q192 = 2^192, the denominator of sqrtPriceX96 squared.
var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// V3MidPrice derives the pool's marginal price in the tokenOut/tokenIn
// direction from slot0's sqrtPriceX96. The raw ratio is token1-per-token0
// (sqrtPriceX96^2 / 2^192); when tokenIn is token1 the reciprocal applies.
// Decimal adjustment makes the result a human-unit price.
func V3MidPrice(sqrtPriceX96 *big.Int, tokenInIsToken0 bool, decimalsIn, decimalsOut uint8) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return 0
	}
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	price1Over0 := new(big.Float).Quo(new(big.Float).SetInt(squared), new(big.Float).SetInt(q192))

	var raw *big.Float
	if tokenInIsToken0 {
		raw = price1Over0
	} else {
		if price1Over0.Sign() == 0 {
			return 0
		}
		raw = new(big.Float).Quo(big.NewFloat(1), price1Over0)
	}

	// Raw ratio is in base units; shift by the decimals difference to get
	// tokenOut-per-tokenIn in human units.
	adjust := decimalScale(int(decimalsIn) - int(decimalsOut))
	out := new(big.Float).Mul(raw, adjust)
	f, _ := out.Float64()
	return f
}

// V3Impact compares the quoter's execution price to the pool mid price and
// returns the relative move as a percentage. A positive result means the
// quote was better than mid; the evaluator takes the magnitude it needs.
func V3Impact(midPrice float64, amountIn, amountOut *big.Int, decimalsIn, decimalsOut uint8) float64 {
	if midPrice == 0 || amountIn == nil || amountIn.Sign() == 0 || amountOut == nil {
		return 0
	}
	aIn := toDecimal(amountIn, decimalsIn)
	aOut := toDecimal(amountOut, decimalsOut)
	quoted := new(big.Float).Quo(aOut, aIn)
	quotedF, _ := quoted.Float64()
	return (quotedF - midPrice) / midPrice * 100
}

func decimalScale(exp int) *big.Float {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil)
	f := new(big.Float).SetInt(scale)
	if exp < 0 {
		return new(big.Float).Quo(big.NewFloat(1), f)
	}
	return f
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

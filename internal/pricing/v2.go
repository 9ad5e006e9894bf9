// Package pricing holds the pure math of the two price-impact engines:
// the V2 constant-product formula and the V3 quoter/midprice comparison.
// Everything here is deterministic and I/O-free.
package pricing

import (
	"math/big"
)

var (
	feeNumerator   = big.NewInt(997) // 0.3% swap fee
	feeDenominator = big.NewInt(1000)
)

// V2AmountOut applies the canonical constant-product formula with the 0.3%
// fee: out = (in*997*reserveOut) / (reserveIn*1000 + in*997).
// Zero input or empty reserves yield zero.
func V2AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator)
}

// V2Impact computes the trade's marginal-price move in the pool, returned
// as a percentage (1.0 = 1%), together with the projected amountOut.
// Prices are decimal-adjusted before comparison so mixed-decimals pairs
// (e.g. WETH/USDC) are handled correctly. amountIn = 0 yields (0, 0).
func V2Impact(amountIn, reserveIn, reserveOut *big.Int, decimalsIn, decimalsOut uint8) (*big.Int, float64) {
	amountOut := V2AmountOut(amountIn, reserveIn, reserveOut)
	if amountOut.Sign() == 0 {
		return amountOut, 0
	}

	rIn := toDecimal(reserveIn, decimalsIn)
	rOut := toDecimal(reserveOut, decimalsOut)
	aIn := toDecimal(amountIn, decimalsIn)
	aOut := toDecimal(amountOut, decimalsOut)

	priceBefore := new(big.Float).Quo(rOut, rIn)
	priceAfter := new(big.Float).Quo(
		new(big.Float).Sub(rOut, aOut),
		new(big.Float).Add(rIn, aIn),
	)

	diff := new(big.Float).Sub(priceBefore, priceAfter)
	diff.Abs(diff)
	impact := new(big.Float).Quo(diff, priceBefore)
	impact.Mul(impact, big.NewFloat(100))

	pct, _ := impact.Float64()
	return amountOut, pct
}

// toDecimal converts a raw integer amount into token units.
func toDecimal(raw *big.Int, decimals uint8) *big.Float {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetInt(scale))
}

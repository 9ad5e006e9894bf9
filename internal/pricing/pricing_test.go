package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func big10(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

func TestV2AmountOutFormula(t *testing.T) {
	// 1 in against 1000/1000 reserves: (1*997*1000)/(1000*1000+1*997) = 0.996...
	out := V2AmountOut(big.NewInt(1), big.NewInt(1000), big.NewInt(1000))
	assert.Equal(t, int64(0), out.Int64())

	// Scale up: 1e18 in against 1000e18/1000e18.
	amountIn := big10(18)
	reserve := new(big.Int).Mul(big.NewInt(1000), big10(18))
	out = V2AmountOut(amountIn, reserve, reserve)

	// Expected: 997e18*1000e18 / (1000e18*1000 + 997e18) ≈ 0.996006e18
	expected, _ := new(big.Int).SetString("996006981039903216", 10)
	assert.Equal(t, expected, out)
}

func TestV2AmountOutZeroCases(t *testing.T) {
	assert.Zero(t, V2AmountOut(nil, big.NewInt(1), big.NewInt(1)).Sign())
	assert.Zero(t, V2AmountOut(big.NewInt(0), big.NewInt(1), big.NewInt(1)).Sign())
	assert.Zero(t, V2AmountOut(big.NewInt(5), big.NewInt(0), big.NewInt(1)).Sign())
	assert.Zero(t, V2AmountOut(big.NewInt(5), big.NewInt(1), big.NewInt(0)).Sign())
}

func TestV2ImpactSmallTrade(t *testing.T) {
	// 0.1% of the reserve should move the price well under 1%.
	reserve := new(big.Int).Mul(big.NewInt(1000), big10(18))
	amountIn := big10(18)

	out, pct := V2Impact(amountIn, reserve, reserve, 18, 18)
	assert.Positive(t, out.Sign())
	assert.Greater(t, pct, 0.0)
	assert.Less(t, pct, 1.0)
}

func TestV2ImpactLargeTradeMovesMore(t *testing.T) {
	reserve := new(big.Int).Mul(big.NewInt(1000), big10(18))
	small := big10(18)
	large := new(big.Int).Mul(big.NewInt(100), big10(18))

	_, smallPct := V2Impact(small, reserve, reserve, 18, 18)
	_, largePct := V2Impact(large, reserve, reserve, 18, 18)
	assert.Greater(t, largePct, smallPct)
}

func TestV2ImpactMixedDecimals(t *testing.T) {
	// 18-decimals token against a 6-decimals token at price 2000: the
	// decimal adjustment keeps impact in the same small range as the
	// same-decimals equivalent.
	reserveIn := new(big.Int).Mul(big.NewInt(100), big10(18))
	reserveOut := new(big.Int).Mul(big.NewInt(200_000), big10(6))
	amountIn := big10(18)

	_, pct := V2Impact(amountIn, reserveIn, reserveOut, 18, 6)
	assert.Greater(t, pct, 0.0)
	assert.Less(t, pct, 3.0)
}

func TestV2ImpactZeroAmount(t *testing.T) {
	out, pct := V2Impact(big.NewInt(0), big.NewInt(100), big.NewInt(100), 18, 18)
	assert.Zero(t, out.Sign())
	assert.Zero(t, pct)
}

func TestV3MidPriceUnity(t *testing.T) {
	// sqrtPriceX96 = 2^96 encodes price 1.0 for equal decimals.
	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)
	assert.InDelta(t, 1.0, V3MidPrice(sqrt, true, 18, 18), 1e-12)
	assert.InDelta(t, 1.0, V3MidPrice(sqrt, false, 18, 18), 1e-12)
}

func TestV3MidPriceDirection(t *testing.T) {
	// 2*2^96 encodes token1/token0 = 4.
	sqrt := new(big.Int).Lsh(big.NewInt(2), 96)
	assert.InDelta(t, 4.0, V3MidPrice(sqrt, true, 18, 18), 1e-9)
	assert.InDelta(t, 0.25, V3MidPrice(sqrt, false, 18, 18), 1e-9)
}

func TestV3MidPriceDecimalsAdjustment(t *testing.T) {
	// Price 1 in base units, 18-in vs 6-out: human price scales by 1e12.
	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)
	assert.InDelta(t, 1e12, V3MidPrice(sqrt, true, 18, 6), 1e3)
}

func TestV3MidPriceZero(t *testing.T) {
	assert.Zero(t, V3MidPrice(nil, true, 18, 18))
	assert.Zero(t, V3MidPrice(big.NewInt(0), true, 18, 18))
}

func TestV3Impact(t *testing.T) {
	// Quote exactly at mid: zero impact.
	amountIn := big10(18)
	amountOut := big10(18)
	assert.InDelta(t, 0.0, V3Impact(1.0, amountIn, amountOut, 18, 18), 1e-12)

	// Quote 1% below mid.
	worse, _ := new(big.Int).SetString("990000000000000000", 10)
	impact := V3Impact(1.0, amountIn, worse, 18, 18)
	assert.InDelta(t, -1.0, impact, 1e-9)
}

func TestV3ImpactGuards(t *testing.T) {
	assert.Zero(t, V3Impact(0, big.NewInt(1), big.NewInt(1), 18, 18))
	assert.Zero(t, V3Impact(1.0, nil, big.NewInt(1), 18, 18))
	assert.Zero(t, V3Impact(1.0, big.NewInt(0), big.NewInt(1), 18, 18))
	assert.Zero(t, V3Impact(1.0, big.NewInt(1), nil, 18, 18))
}

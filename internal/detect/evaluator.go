// Package detect implements the opportunity evaluator: per decoded swap it
// resolves token and pool state, applies the liquidity admissibility rules,
// computes price impact and expected profit, checks the deadline, and
// produces the verdict the consumer persists.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/swapscan/backend/internal/cache"
	"github.com/swapscan/backend/internal/chain"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/decode"
	"github.com/swapscan/backend/internal/pricing"
	"github.com/swapscan/backend/internal/store"
)

// MinPriceImpact is the detection threshold as a decimal fraction: swaps
// moving the pool price by less than 0.5% are not worth chasing.
const MinPriceImpact = 0.005

// Reason strings surfaced in verdicts. The gate-failure strings are part of
// the persisted metadata contract; do not reword casually.
const (
	ReasonTokenInfoUnavailable = "Token information not available"
	ReasonPoolNotFound         = "Pool not found"
	ReasonTradeTooLarge        = "Insufficient liquidity: trade > 50% of reserve"
	ReasonLowReserve           = "Low liquidity: reserve < 10x trade"
	ReasonZeroV3Liquidity      = "Zero liquidity in V3 pool"
	ReasonLowV3Liquidity       = "Very low V3 liquidity"
	ReasonLowImpact            = "Price impact below threshold"
	ReasonNoProfit             = "No expected profit"
	ReasonExpired              = "Swap deadline expired"
	ReasonDetected             = "Opportunity detected"
)

// minV3Liquidity rejects pools whose in-range liquidity is effectively dust.
var minV3Liquidity = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

// Verdict is the evaluator's full answer for one decoded swap.
type Verdict struct {
	IsOpportunity           bool    `json:"isOpportunity"`
	Reason                  string  `json:"reason"`
	PriceImpact             float64 `json:"priceImpact"` // decimal fraction, 0.0023 = 0.23%
	ExpectedProfit          string  `json:"expectedProfit"`          // raw tokenOut units, "" when undefined
	ExpectedProfitFormatted string  `json:"expectedProfitFormatted"` // human tokenOut units
	AmountOut               string  `json:"amountOut"`               // projected raw output
	PoolAddress             string  `json:"poolAddress"`
	DecimalsIn              uint8   `json:"decimalsIn"`
	DecimalsOut             uint8   `json:"decimalsOut"`
	TimeToSubmitSeconds     int64   `json:"timeToSubmitSeconds"`
	DeadlineTimestamp       int64   `json:"deadlineTimestamp"`
	IsExpired               bool    `json:"isExpired"`
}

// Evaluator orchestrates the cache layer, the chain readers, and the
// pricing engines. Safe for concurrent use.
type Evaluator struct {
	cfg    *config.Config
	caches *cache.Caches
	reader *chain.Reader

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewEvaluator wires an evaluator.
func NewEvaluator(cfg *config.Config, caches *cache.Caches, reader *chain.Reader) *Evaluator {
	return &Evaluator{cfg: cfg, caches: caches, reader: reader, now: time.Now}
}

// Detect evaluates one decoded swap. It never returns an error for
// business-rule rejections; those are verdicts. Errors are reserved for
// conditions where no verdict could be formed at all (and callers log and
// drop the message).
func (e *Evaluator) Detect(ctx context.Context, txHash string, swap *decode.DecodedSwap, router string) (*Verdict, error) {
	v := &Verdict{Reason: ReasonDetected}

	// 1. Token metadata, both legs in parallel.
	tokenIn, tokenOut, err := e.resolveTokens(ctx, swap)
	if err != nil {
		slog.Warn("token resolution failed", "txHash", txHash, "error", err)
		v.Reason = ReasonTokenInfoUnavailable
		return v, nil
	}
	v.DecimalsIn = tokenIn.Decimals
	v.DecimalsOut = tokenOut.Decimals

	// 2. The universal router has no factory(); substitute the canonical
	// family router before any pool lookup.
	poolRouter := router
	if e.cfg.IsUniversalRouter(router) {
		if swap.RouterFamily == decode.FamilyV3 {
			poolRouter = e.cfg.CanonicalV3Router
		} else {
			poolRouter = e.cfg.CanonicalV2Router
		}
	}

	// 3. Pool lookup.
	var feeTier *big.Int
	if swap.RouterFamily == decode.FamilyV3 {
		if f, ok := new(big.Int).SetString(swap.Fee, 10); ok && f.Sign() > 0 {
			feeTier = f
		}
	}
	pool, err := e.caches.GetPools(ctx, swap.TokenIn, swap.TokenOut, poolRouter, swap.RouterFamily, feeTier)
	if err != nil {
		slog.Warn("pool lookup failed", "txHash", txHash, "error", err)
		v.Reason = ReasonPoolNotFound
		return v, nil
	}
	if pool == nil {
		v.Reason = ReasonPoolNotFound
		return v, nil
	}
	v.PoolAddress = pool.Address

	// 4. Effective input: exact-out methods carry zero amountIn, fall back
	// to the user's amountInMax.
	amountIn := swap.AmountInBig()
	if amountIn.Sign() == 0 {
		if m := swap.AmountInMaxBig(); m.Sign() > 0 {
			amountIn = m
		}
	}

	// 5–6. Liquidity admissibility and price impact per family.
	var amountOut *big.Int
	if swap.RouterFamily == decode.FamilyV3 {
		amountOut = e.evaluateV3(ctx, txHash, swap, pool, tokenIn, tokenOut, amountIn, v)
	} else {
		amountOut = e.evaluateV2(ctx, txHash, swap, pool, tokenIn, tokenOut, amountIn, v)
	}
	if v.Reason != ReasonDetected {
		return v, nil
	}

	// 7. Profit against the user-declared minimum output.
	profit := computeProfit(amountOut, swap.AmountOutMinBig())
	if amountOut != nil {
		v.AmountOut = amountOut.String()
	}

	// 8. Deadline.
	e.applyDeadline(swap.Deadline, v)

	// 9. Verdict.
	profitable := profit != nil && profit.Sign() > 0
	if profitable {
		v.ExpectedProfit = profit.String()
		v.ExpectedProfitFormatted = formatUnits(profit, tokenOut.Decimals)
	}
	switch {
	case !profitable:
		v.Reason = ReasonNoProfit
	case v.PriceImpact < MinPriceImpact:
		v.Reason = ReasonLowImpact
	case v.IsExpired:
		// Still an opportunity by the thresholds; the consumer persists it
		// with expired status.
		v.IsOpportunity = true
		v.Reason = ReasonExpired
	default:
		v.IsOpportunity = true
		v.Reason = ReasonDetected
	}
	return v, nil
}

// resolveTokens fetches both token metadata records in parallel.
func (e *Evaluator) resolveTokens(ctx context.Context, swap *decode.DecodedSwap) (*store.Token, *store.Token, error) {
	var (
		wg            sync.WaitGroup
		tokenIn       *store.Token
		tokenOut      *store.Token
		errIn, errOut error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tokenIn, errIn = e.caches.GetToken(ctx, swap.TokenIn)
	}()
	go func() {
		defer wg.Done()
		tokenOut, errOut = e.caches.GetToken(ctx, swap.TokenOut)
	}()
	wg.Wait()
	if errIn != nil {
		return nil, nil, errIn
	}
	if errOut != nil {
		return nil, nil, errOut
	}
	if tokenIn == nil || tokenOut == nil {
		return nil, nil, fmt.Errorf("token metadata unresolvable")
	}
	return tokenIn, tokenOut, nil
}

// evaluateV2 runs the V2 liquidity gate and constant-product impact engine.
// Transient reserve-read failures are logged and the verdict proceeds with
// whatever could be computed.
func (e *Evaluator) evaluateV2(ctx context.Context, txHash string, swap *decode.DecodedSwap, pool *store.Pool, tokenIn, tokenOut *store.Token, amountIn *big.Int, v *Verdict) *big.Int {
	reserves, err := e.reader.ReadV2Reserves(ctx, pool.Address)
	if err != nil {
		slog.Warn("V2 reserve read failed, proceeding without liquidity gate",
			"txHash", txHash, "pool", pool.Address, "error", err)
		return nil
	}

	// Orientation follows the pair's own token0 ordering. For the ETH-in
	// synthetic path this is only correct when the wrapped native really is
	// token0; that asymmetry is part of the established behavior.
	reserveIn, reserveOut := reserves.Reserve0, reserves.Reserve1
	if !config.SameAddress(swap.TokenIn, reserves.Token0) {
		reserveIn, reserveOut = reserves.Reserve1, reserves.Reserve0
	}

	if amountIn.Sign() > 0 {
		// Reject trades that would consume more than half the pool: pass
		// condition is strictly amountIn <= 0.5*reserveIn.
		twice := new(big.Int).Lsh(amountIn, 1)
		if twice.Cmp(reserveIn) > 0 {
			v.Reason = ReasonTradeTooLarge
			return nil
		}
		tenfold := new(big.Int).Mul(amountIn, big.NewInt(10))
		if reserveIn.Cmp(tenfold) < 0 {
			v.Reason = ReasonLowReserve
			return nil
		}
	}

	amountOut, impactPct := pricing.V2Impact(amountIn, reserveIn, reserveOut, tokenIn.Decimals, tokenOut.Decimals)
	v.PriceImpact = impactPct / 100
	return amountOut
}

// evaluateV3 runs the V3 liquidity gate and the quoter impact engine.
func (e *Evaluator) evaluateV3(ctx context.Context, txHash string, swap *decode.DecodedSwap, pool *store.Pool, tokenIn, tokenOut *store.Token, amountIn *big.Int, v *Verdict) *big.Int {
	state, err := e.reader.ReadV3State(ctx, pool.Address)
	if err != nil {
		slog.Warn("V3 state read failed, proceeding without liquidity gate",
			"txHash", txHash, "pool", pool.Address, "error", err)
		return nil
	}

	if amountIn.Sign() > 0 {
		if state.Liquidity.Sign() == 0 {
			v.Reason = ReasonZeroV3Liquidity
			return nil
		}
		if state.Liquidity.Cmp(minV3Liquidity) < 0 {
			v.Reason = ReasonLowV3Liquidity
			return nil
		}
	}

	mid := pricing.V3MidPrice(state.SqrtPriceX96,
		config.SameAddress(swap.TokenIn, state.Token0),
		tokenIn.Decimals, tokenOut.Decimals)

	fee := state.Fee
	if fee == nil || fee.Sign() == 0 {
		if f, ok := new(big.Int).SetString(swap.Fee, 10); ok {
			fee = f
		}
	}
	amountOut, err := e.reader.QuoteExactInputSingle(ctx, e.cfg.QuoterAddress,
		swap.TokenIn, swap.TokenOut, fee, amountIn)
	if err != nil {
		// QuoterRevert: no profit or impact computable; the verdict falls
		// through to the profit gate.
		slog.Warn("quoter revert", "txHash", txHash, "pool", pool.Address, "error", err)
		return nil
	}

	impactPct := pricing.V3Impact(mid, amountIn, amountOut, tokenIn.Decimals, tokenOut.Decimals)
	if impactPct < 0 {
		impactPct = -impactPct
	}
	v.PriceImpact = impactPct / 100
	return amountOut
}

// computeProfit returns amountOut - amountOutMin when both are known and
// the difference is non-negative; nil means "undefined".
func computeProfit(amountOut, amountOutMin *big.Int) *big.Int {
	if amountOut == nil || amountOutMin == nil {
		return nil
	}
	diff := new(big.Int).Sub(amountOut, amountOutMin)
	if diff.Sign() < 0 {
		return nil
	}
	return diff
}

// applyDeadline parses unix-seconds and fills the submit-window fields.
func (e *Evaluator) applyDeadline(deadline string, v *Verdict) {
	d, ok := new(big.Int).SetString(deadline, 10)
	if !ok || !d.IsInt64() {
		return
	}
	v.DeadlineTimestamp = d.Int64()
	if v.DeadlineTimestamp == 0 {
		return
	}
	now := e.now().Unix()
	if v.DeadlineTimestamp > now {
		v.TimeToSubmitSeconds = v.DeadlineTimestamp - now
	} else {
		v.IsExpired = true
		v.TimeToSubmitSeconds = 0
	}
}

// formatUnits renders a raw amount in human token units, trimming trailing
// zeros the way a UI would expect.
func formatUnits(raw *big.Int, decimals uint8) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).SetPrec(256).Quo(new(big.Float).SetInt(raw), new(big.Float).SetInt(scale))
	return f.Text('g', 12)
}

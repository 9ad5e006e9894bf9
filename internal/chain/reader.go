// Package chain implements typed eth_call readers for the contracts the
// evaluator touches: ERC-20 metadata, router factory discovery, V2 pair
// state, V3 pool state, and the V3 quoter.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/rpcpool"
)

// Reader performs eth_call reads through the RPC provider pool.
type Reader struct {
	pool *rpcpool.Pool
}

// NewReader wraps the provider pool.
func NewReader(pool *rpcpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// call packs, executes, and unpacks a single view method.
func (r *Reader) call(ctx context.Context, contractABI abi.ABI, contract string, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := common.HexToAddress(contract)
	out, err := r.pool.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract, err)
	}
	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// TokenName reads name(). Non-standard tokens that revert surface the error
// to the cache, which substitutes a default.
func (r *Reader) TokenName(ctx context.Context, token string) (string, error) {
	vals, err := r.call(ctx, erc20ABI, token, "name")
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}

// TokenSymbol reads symbol().
func (r *Reader) TokenSymbol(ctx context.Context, token string) (string, error) {
	vals, err := r.call(ctx, erc20ABI, token, "symbol")
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}

// TokenDecimals reads decimals().
func (r *Reader) TokenDecimals(ctx context.Context, token string) (uint8, error) {
	vals, err := r.call(ctx, erc20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	return vals[0].(uint8), nil
}

// FactoryOf reads the router's factory() address.
func (r *Reader) FactoryOf(ctx context.Context, router string) (string, error) {
	vals, err := r.call(ctx, routerABI, router, "factory")
	if err != nil {
		return "", err
	}
	return config.NormalizeAddress(vals[0].(common.Address).Hex()), nil
}

// WrappedNative reads the router's wrapped-native address: WETH() on V2
// routers, WETH9() on V3 routers.
func (r *Reader) WrappedNative(ctx context.Context, router string, v3 bool) (string, error) {
	method := "WETH"
	if v3 {
		method = "WETH9"
	}
	vals, err := r.call(ctx, routerABI, router, method)
	if err != nil {
		return "", err
	}
	return config.NormalizeAddress(vals[0].(common.Address).Hex()), nil
}

// GetPair resolves a V2 pair from its factory. The zero address means the
// pair does not exist; callers memoize that as absence.
func (r *Reader) GetPair(ctx context.Context, factory, tokenA, tokenB string) (string, error) {
	vals, err := r.call(ctx, factoryABI, factory, "getPair",
		common.HexToAddress(tokenA), common.HexToAddress(tokenB))
	if err != nil {
		return "", err
	}
	return config.NormalizeAddress(vals[0].(common.Address).Hex()), nil
}

// GetPool resolves a V3 pool from its factory for a given fee tier.
func (r *Reader) GetPool(ctx context.Context, factory, tokenA, tokenB string, fee *big.Int) (string, error) {
	vals, err := r.call(ctx, factoryABI, factory, "getPool",
		common.HexToAddress(tokenA), common.HexToAddress(tokenB), fee)
	if err != nil {
		return "", err
	}
	return config.NormalizeAddress(vals[0].(common.Address).Hex()), nil
}

// V2Reserves is the raw V2 pair state used by the liquidity gate and the
// constant-product impact engine.
type V2Reserves struct {
	Reserve0    *big.Int
	Reserve1    *big.Int
	K           *big.Int // reserve0 * reserve1
	Token0      string
	Token1      string
	TotalSupply *big.Int
}

// ReadV2Reserves reads getReserves(), token0(), token1() and totalSupply().
func (r *Reader) ReadV2Reserves(ctx context.Context, pair string) (*V2Reserves, error) {
	res, err := r.call(ctx, pairABI, pair, "getReserves")
	if err != nil {
		return nil, err
	}
	t0, err := r.call(ctx, pairABI, pair, "token0")
	if err != nil {
		return nil, err
	}
	t1, err := r.call(ctx, pairABI, pair, "token1")
	if err != nil {
		return nil, err
	}
	ts, err := r.call(ctx, pairABI, pair, "totalSupply")
	if err != nil {
		return nil, err
	}

	out := &V2Reserves{
		Reserve0:    res[0].(*big.Int),
		Reserve1:    res[1].(*big.Int),
		Token0:      config.NormalizeAddress(t0[0].(common.Address).Hex()),
		Token1:      config.NormalizeAddress(t1[0].(common.Address).Hex()),
		TotalSupply: ts[0].(*big.Int),
	}
	out.K = new(big.Int).Mul(out.Reserve0, out.Reserve1)
	return out, nil
}

// V3State is the slot0/liquidity snapshot used by the V3 gates and the
// quoter impact engine.
type V3State struct {
	SqrtPriceX96 *big.Int
	Tick         *big.Int
	Liquidity    *big.Int
	Fee          *big.Int
	Token0       string
	Token1       string
}

// ReadV3State reads slot0(), liquidity(), fee(), token0() and token1().
func (r *Reader) ReadV3State(ctx context.Context, pool string) (*V3State, error) {
	slot0, err := r.call(ctx, v3PoolABI, pool, "slot0")
	if err != nil {
		return nil, err
	}
	liq, err := r.call(ctx, v3PoolABI, pool, "liquidity")
	if err != nil {
		return nil, err
	}
	fee, err := r.call(ctx, v3PoolABI, pool, "fee")
	if err != nil {
		return nil, err
	}
	t0, err := r.call(ctx, v3PoolABI, pool, "token0")
	if err != nil {
		return nil, err
	}
	t1, err := r.call(ctx, v3PoolABI, pool, "token1")
	if err != nil {
		return nil, err
	}

	return &V3State{
		SqrtPriceX96: slot0[0].(*big.Int),
		Tick:         slot0[1].(*big.Int),
		Liquidity:    liq[0].(*big.Int),
		Fee:          fee[0].(*big.Int),
		Token0:       config.NormalizeAddress(t0[0].(common.Address).Hex()),
		Token1:       config.NormalizeAddress(t1[0].(common.Address).Hex()),
	}, nil
}

// QuoteExactInputSingle simulates a V3 swap via the quoter contract.
// eth_call never executes a trade; a revert here is a QuoterRevert and is
// surfaced to the evaluator as an error value.
func (r *Reader) QuoteExactInputSingle(ctx context.Context, quoter, tokenIn, tokenOut string, fee, amountIn *big.Int) (*big.Int, error) {
	vals, err := r.call(ctx, quoterABI, quoter, "quoteExactInputSingle",
		common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), fee, amountIn, new(big.Int))
	if err != nil {
		return nil, fmt.Errorf("quoter revert: %w", err)
	}
	return vals[0].(*big.Int), nil
}

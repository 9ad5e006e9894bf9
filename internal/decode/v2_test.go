package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	routerAddr = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	tokenA     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	tokenB     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokenC     = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	trader     = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func v2Tx(t *testing.T, value *big.Int, method string, args ...interface{}) *types.Transaction {
	t.Helper()
	data, err := v2RouterABI.Pack(method, args...)
	require.NoError(t, err)
	return types.NewTx(&types.LegacyTx{
		To:       &routerAddr,
		Value:    value,
		Gas:      300000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
}

func TestDecodeV2ExactIn(t *testing.T) {
	tx := v2Tx(t, nil, "swapExactTokensForTokens",
		big.NewInt(1_000_000), big.NewInt(900_000),
		[]common.Address{tokenA, tokenB}, trader, big.NewInt(1700000000))

	swap, err := DecodeV2(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)

	assert.Equal(t, "swapExactTokensForTokens", swap.Method)
	assert.Equal(t, FamilyV2, swap.RouterFamily)
	assert.Equal(t, "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", swap.Router)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", swap.TokenIn)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", swap.TokenOut)
	assert.Equal(t, "1000000", swap.AmountIn)
	assert.Equal(t, "900000", swap.AmountOutMin)
	assert.Equal(t, "1700000000", swap.Deadline)
}

func TestDecodeV2MultiHopUsesEndpoints(t *testing.T) {
	tx := v2Tx(t, nil, "swapExactTokensForTokens",
		big.NewInt(5), big.NewInt(1),
		[]common.Address{tokenA, tokenB, tokenC}, trader, big.NewInt(0))

	swap, err := DecodeV2(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", swap.TokenIn)
	assert.Equal(t, "0x6b175474e89094c44da98b954eedeac495271d0f", swap.TokenOut)
}

func TestDecodeV2ETHInUsesTxValue(t *testing.T) {
	tx := v2Tx(t, big.NewInt(7_000_000_000), "swapExactETHForTokens",
		big.NewInt(42), []common.Address{tokenB, tokenA}, trader, big.NewInt(99))

	swap, err := DecodeV2(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "7000000000", swap.AmountIn)
	assert.Equal(t, "42", swap.AmountOutMin)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", swap.TokenIn)
}

func TestDecodeV2ExactOutCarriesMaxAsIn(t *testing.T) {
	tx := v2Tx(t, nil, "swapTokensForExactETH",
		big.NewInt(1000), big.NewInt(1200),
		[]common.Address{tokenA, tokenB}, trader, big.NewInt(0))

	swap, err := DecodeV2(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "1000", swap.AmountOut)
	assert.Equal(t, "1200", swap.AmountInMax)
	assert.Equal(t, "1200", swap.AmountIn)
}

func TestDecodeV2ExactOutTokensLeavesAmountInZero(t *testing.T) {
	tx := v2Tx(t, nil, "swapTokensForExactTokens",
		big.NewInt(1000), big.NewInt(1200),
		[]common.Address{tokenA, tokenB}, trader, big.NewInt(0))

	swap, err := DecodeV2(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "0", swap.AmountIn)
	assert.Equal(t, "1200", swap.AmountInMax)
}

func TestDecodeV2UnknownSelector(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{
		To:       &routerAddr,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     []byte{0xde, 0xad, 0xbe, 0xef, 0x00},
	})
	swap, err := DecodeV2(tx)
	assert.NoError(t, err)
	assert.Nil(t, swap)
}

func TestDecodeV2EmptyCalldata(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{
		To:       &routerAddr,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	swap, err := DecodeV2(tx)
	assert.NoError(t, err)
	assert.Nil(t, swap)
}

func TestDecodeV2TruncatedArgs(t *testing.T) {
	good := v2Tx(t, nil, "swapExactTokensForTokens",
		big.NewInt(1), big.NewInt(1),
		[]common.Address{tokenA, tokenB}, trader, big.NewInt(0))
	data := good.Data()[:36] // selector + one word

	tx := types.NewTx(&types.LegacyTx{
		To:       &routerAddr,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
	swap, err := DecodeV2(tx)
	assert.Error(t, err)
	assert.Nil(t, swap)
}

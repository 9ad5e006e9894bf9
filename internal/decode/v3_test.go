package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v3Tx(t *testing.T, method string, args ...interface{}) *types.Transaction {
	t.Helper()
	data, err := v3RouterABI.Pack(method, args...)
	require.NoError(t, err)
	to := common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	return types.NewTx(&types.LegacyTx{
		To:       &to,
		Gas:      300000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
}

// packedPath builds token || fee || token || fee || ... || token.
func packedPath(elems ...interface{}) []byte {
	var out []byte
	for _, e := range elems {
		switch v := e.(type) {
		case common.Address:
			out = append(out, v.Bytes()...)
		case int:
			out = append(out, byte(v>>16), byte(v>>8), byte(v))
		}
	}
	return out
}

func TestDecodeV3ExactInputSingle(t *testing.T) {
	tx := v3Tx(t, "exactInputSingle", exactSingleParams{
		TokenIn:           tokenA,
		TokenOut:          tokenB,
		Fee:               big.NewInt(3000),
		Recipient:         trader,
		Deadline:          big.NewInt(1700000123),
		AmountIn:          big.NewInt(500),
		AmountOutMinimum:  big.NewInt(490),
		SqrtPriceLimitX96: big.NewInt(0),
	})

	swap, err := DecodeV3(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "exactInputSingle", swap.Method)
	assert.Equal(t, FamilyV3, swap.RouterFamily)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", swap.TokenIn)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", swap.TokenOut)
	assert.Equal(t, "3000", swap.Fee)
	assert.Equal(t, "500", swap.AmountIn)
	assert.Equal(t, "490", swap.AmountOutMin)
	assert.Equal(t, "1700000123", swap.Deadline)
}

func TestDecodeV3ExactOutputSingle(t *testing.T) {
	tx := v3Tx(t, "exactOutputSingle", exactOutputSingleParams{
		TokenIn:           tokenA,
		TokenOut:          tokenB,
		Fee:               big.NewInt(500),
		Recipient:         trader,
		Deadline:          big.NewInt(0),
		AmountOut:         big.NewInt(1000),
		AmountInMaximum:   big.NewInt(1100),
		SqrtPriceLimitX96: big.NewInt(0),
	})

	swap, err := DecodeV3(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "1000", swap.AmountOut)
	assert.Equal(t, "1100", swap.AmountInMax)
	assert.Equal(t, "0", swap.AmountIn)
	assert.Equal(t, "500", swap.Fee)
}

func TestDecodeV3ExactInputMultiHop(t *testing.T) {
	tx := v3Tx(t, "exactInput", exactInputParams{
		Path:             packedPath(tokenA, 3000, tokenB, 10000, tokenC),
		Recipient:        trader,
		Deadline:         big.NewInt(5),
		AmountIn:         big.NewInt(777),
		AmountOutMinimum: big.NewInt(700),
	})

	swap, err := DecodeV3(tx)
	require.NoError(t, err)
	require.NotNil(t, swap)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", swap.TokenIn)
	assert.Equal(t, "0x6b175474e89094c44da98b954eedeac495271d0f", swap.TokenOut)
	// Last fee tier in the path wins.
	assert.Equal(t, "10000", swap.Fee)
	assert.Equal(t, "777", swap.AmountIn)
}

func TestDecodeV3ExactInputBadPath(t *testing.T) {
	tx := v3Tx(t, "exactInput", exactInputParams{
		Path:             []byte{0x01, 0x02, 0x03},
		Recipient:        trader,
		Deadline:         big.NewInt(0),
		AmountIn:         big.NewInt(1),
		AmountOutMinimum: big.NewInt(0),
	})

	swap, err := DecodeV3(tx)
	assert.Error(t, err)
	assert.Nil(t, swap)
}

func TestDecodeV3UnknownSelector(t *testing.T) {
	to := common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	tx := types.NewTx(&types.LegacyTx{
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     []byte{0xab, 0xcd, 0xef, 0x01},
	})
	swap, err := DecodeV3(tx)
	assert.NoError(t, err)
	assert.Nil(t, swap)
}

func TestWalkPackedPath(t *testing.T) {
	first, last, fee, err := walkPackedPath(packedPath(tokenA, 500, tokenB))
	require.NoError(t, err)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", first)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", last)
	assert.Equal(t, "500", fee)
}

func TestWalkPackedPathRejectsPartialStride(t *testing.T) {
	path := packedPath(tokenA, 500, tokenB)
	_, _, _, err := walkPackedPath(path[:len(path)-1])
	assert.Error(t, err)
}

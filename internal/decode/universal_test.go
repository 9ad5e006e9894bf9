package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var universalAddr = common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD")

func executeTx(t *testing.T, commands []byte, inputs [][]byte, deadline *big.Int) *types.Transaction {
	t.Helper()
	var (
		data []byte
		err  error
	)
	if deadline != nil {
		data, err = universalRouterABI.Pack("execute", commands, inputs, deadline)
	} else {
		data, err = universalRouterABI.Pack("execute0", commands, inputs)
	}
	require.NoError(t, err)
	return types.NewTx(&types.LegacyTx{
		To:       &universalAddr,
		Gas:      500000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
}

func v3Input(t *testing.T, amountA, amountB int64, path []byte) []byte {
	t.Helper()
	blob, err := v3SwapInputArgs.Pack(trader, big.NewInt(amountA), big.NewInt(amountB), path, true)
	require.NoError(t, err)
	return blob
}

func v2Input(t *testing.T, amountA, amountB int64, path []common.Address) []byte {
	t.Helper()
	blob, err := v2SwapInputArgs.Pack(trader, big.NewInt(amountA), big.NewInt(amountB), path, false)
	require.NoError(t, err)
	return blob
}

func TestDecodeUniversalV3ExactIn(t *testing.T) {
	tx := executeTx(t,
		[]byte{cmdV3ExactIn},
		[][]byte{v3Input(t, 1000, 950, packedPath(tokenA, 3000, tokenB))},
		big.NewInt(1700000500))

	swaps, err := DecodeUniversal(tx)
	require.NoError(t, err)
	require.Len(t, swaps, 1)

	s := swaps[0]
	assert.Equal(t, "V3_EXACT_IN", s.Method)
	assert.Equal(t, FamilyV3, s.RouterFamily)
	assert.Equal(t, "1000", s.AmountIn)
	assert.Equal(t, "950", s.AmountOutMin)
	assert.Equal(t, "3000", s.Fee)
	assert.Equal(t, "1700000500", s.Deadline)
	assert.True(t, s.PayerIsUser)
	assert.Equal(t, "0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad", s.Router)
}

func TestDecodeUniversalV2ExactOut(t *testing.T) {
	tx := executeTx(t,
		[]byte{cmdV2ExactOut},
		[][]byte{v2Input(t, 2000, 2200, []common.Address{tokenA, tokenB})},
		big.NewInt(9))

	swaps, err := DecodeUniversal(tx)
	require.NoError(t, err)
	require.Len(t, swaps, 1)

	s := swaps[0]
	assert.Equal(t, "V2_EXACT_OUT", s.Method)
	assert.Equal(t, FamilyV2, s.RouterFamily)
	assert.Equal(t, "2000", s.AmountOut)
	assert.Equal(t, "2200", s.AmountInMax)
	assert.Equal(t, "0", s.AmountIn)
	assert.False(t, s.PayerIsUser)
}

func TestDecodeUniversalSkipsUnknownCommands(t *testing.T) {
	// PERMIT2_PERMIT (0x0a) followed by a V2 swap: only the swap decodes,
	// and it keeps its positional input.
	tx := executeTx(t,
		[]byte{0x0a, cmdV2ExactIn},
		[][]byte{
			{0x01, 0x02}, // permit blob, never parsed
			v2Input(t, 10, 9, []common.Address{tokenB, tokenC}),
		},
		big.NewInt(0))

	swaps, err := DecodeUniversal(tx)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, "V2_EXACT_IN", swaps[0].Method)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", swaps[0].TokenIn)
}

func TestDecodeUniversalAllUnknownCommands(t *testing.T) {
	tx := executeTx(t, []byte{0x0a, 0x0b}, [][]byte{{0x00}, {0x00}}, big.NewInt(0))

	swaps, err := DecodeUniversal(tx)
	require.NoError(t, err)
	assert.Empty(t, swaps)
}

func TestDecodeUniversalTwoOverload(t *testing.T) {
	tx := executeTx(t,
		[]byte{cmdV3ExactOut},
		[][]byte{v3Input(t, 500, 550, packedPath(tokenA, 500, tokenB))},
		nil) // deadline-less overload

	swaps, err := DecodeUniversal(tx)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, "V3_EXACT_OUT", swaps[0].Method)
	assert.Equal(t, "500", swaps[0].AmountOut)
	assert.Equal(t, "550", swaps[0].AmountInMax)
	assert.Equal(t, "0", swaps[0].Deadline)
}

func TestDecodeUniversalOrderPreserved(t *testing.T) {
	tx := executeTx(t,
		[]byte{cmdV2ExactIn, cmdV3ExactIn},
		[][]byte{
			v2Input(t, 1, 0, []common.Address{tokenA, tokenB}),
			v3Input(t, 2, 0, packedPath(tokenB, 3000, tokenC)),
		},
		big.NewInt(0))

	swaps, err := DecodeUniversal(tx)
	require.NoError(t, err)
	require.Len(t, swaps, 2)
	assert.Equal(t, "V2_EXACT_IN", swaps[0].Method)
	assert.Equal(t, "V3_EXACT_IN", swaps[1].Method)
}

func TestDecodeUniversalNotExecute(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{
		To:       &universalAddr,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     []byte{0x12, 0x34, 0x56, 0x78},
	})
	swaps, err := DecodeUniversal(tx)
	assert.NoError(t, err)
	assert.Nil(t, swaps)
}

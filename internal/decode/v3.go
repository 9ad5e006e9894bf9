package decode

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const v3RouterABIJSON = `[
 {"name":"exactInputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
 {"name":"exactOutputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountOut","type":"uint256"},{"name":"amountInMaximum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountIn","type":"uint256"}]},
 {"name":"exactInput","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"path","type":"bytes"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
 {"name":"exactOutput","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"path","type":"bytes"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountOut","type":"uint256"},{"name":"amountInMaximum","type":"uint256"}]}],"outputs":[{"name":"amountIn","type":"uint256"}]}
]`

var v3RouterABI = mustParseABI(v3RouterABIJSON)

type exactSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

type exactOutputParams struct {
	Path            []byte
	Recipient       common.Address
	Deadline        *big.Int
	AmountOut       *big.Int
	AmountInMaximum *big.Int
}

// DecodeV3 decodes a transaction addressed to a V3 concentrated-liquidity
// router. Returns (nil, nil) for methods we do not trade on.
func DecodeV3(tx *types.Transaction) (*DecodedSwap, error) {
	data := tx.Data()
	if tx.To() == nil || len(data) < 4 {
		return nil, nil
	}
	method, err := v3RouterABI.MethodById(data[:4])
	if err != nil {
		return nil, nil
	}
	vals, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method.Name, err)
	}

	swap := &DecodedSwap{
		Router:       addr(tx.To()),
		Method:       method.Name,
		RouterFamily: FamilyV3,
		AmountIn:     "0",
		AmountOut:    "0",
		AmountOutMin: "0",
		AmountInMax:  "0",
		Fee:          "0",
	}

	switch method.Name {
	case "exactInputSingle":
		p := *abi.ConvertType(vals[0], new(exactSingleParams)).(*exactSingleParams)
		swap.TokenIn = addr(p.TokenIn)
		swap.TokenOut = addr(p.TokenOut)
		swap.Fee = amt(p.Fee)
		swap.Recipient = addr(p.Recipient)
		swap.Deadline = amt(p.Deadline)
		swap.AmountIn = amt(p.AmountIn)
		swap.AmountOutMin = amt(p.AmountOutMinimum)

	case "exactOutputSingle":
		p := *abi.ConvertType(vals[0], new(exactOutputSingleParams)).(*exactOutputSingleParams)
		swap.TokenIn = addr(p.TokenIn)
		swap.TokenOut = addr(p.TokenOut)
		swap.Fee = amt(p.Fee)
		swap.Recipient = addr(p.Recipient)
		swap.Deadline = amt(p.Deadline)
		swap.AmountOut = amt(p.AmountOut)
		swap.AmountInMax = amt(p.AmountInMaximum)

	case "exactInput":
		p := *abi.ConvertType(vals[0], new(exactInputParams)).(*exactInputParams)
		first, last, fee, err := walkPackedPath(p.Path)
		if err != nil {
			return nil, fmt.Errorf("decode exactInput path: %w", err)
		}
		swap.TokenIn = first
		swap.TokenOut = last
		swap.Fee = fee
		swap.Recipient = addr(p.Recipient)
		swap.Deadline = amt(p.Deadline)
		swap.AmountIn = amt(p.AmountIn)
		swap.AmountOutMin = amt(p.AmountOutMinimum)

	case "exactOutput":
		p := *abi.ConvertType(vals[0], new(exactOutputParams)).(*exactOutputParams)
		first, last, fee, err := walkPackedPath(p.Path)
		if err != nil {
			return nil, fmt.Errorf("decode exactOutput path: %w", err)
		}
		swap.TokenIn = first
		swap.TokenOut = last
		swap.Fee = fee
		swap.Recipient = addr(p.Recipient)
		swap.Deadline = amt(p.Deadline)
		swap.AmountOut = amt(p.AmountOut)
		swap.AmountInMax = amt(p.AmountInMaximum)

	default:
		return nil, nil
	}

	return swap, nil
}

// walkPackedPath parses the V3 packed path layout
// (token[20] || fee[3] || token[20] || fee[3] || ... || token[20])
// in 23-byte strides, returning the first token, the last token, and the
// last fee tier observed, all as lowercase strings.
func walkPackedPath(path []byte) (first, last, lastFee string, err error) {
	const (
		addrLen   = 20
		strideLen = 23 // fee(3) + token(20)
	)
	if len(path) < addrLen+strideLen || (len(path)-addrLen)%strideLen != 0 {
		return "", "", "", fmt.Errorf("packed path has invalid length %d", len(path))
	}
	first = "0x" + hex.EncodeToString(path[:addrLen])
	var feeTier uint32
	for off := addrLen; off+strideLen <= len(path); off += strideLen {
		feeTier = uint32(path[off])<<16 | uint32(path[off+1])<<8 | uint32(path[off+2])
		last = "0x" + hex.EncodeToString(path[off+3 : off+strideLen])
	}
	return first, last, fmt.Sprintf("%d", feeTier), nil
}

package decode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Swap surface of the V2 router. Liquidity and permit methods are omitted
// on purpose: calldata that resolves to anything else is a decode miss.
const v2RouterABIJSON = `[
 {"name":"swapExactTokensForTokens","type":"function","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapTokensForExactTokens","type":"function","inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapExactETHForTokens","type":"function","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapTokensForExactETH","type":"function","inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapExactTokensForETH","type":"function","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapETHForExactTokens","type":"function","stateMutability":"payable","inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapExactTokensForTokensSupportingFeeOnTransferTokens","type":"function","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[]},
 {"name":"swapExactETHForTokensSupportingFeeOnTransferTokens","type":"function","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[]},
 {"name":"swapExactTokensForETHSupportingFeeOnTransferTokens","type":"function","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[]}
]`

var v2RouterABI = mustParseABI(v2RouterABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// DecodeV2 decodes a transaction addressed to a V2 AMM router.
// Returns (nil, nil) for methods we do not trade on.
func DecodeV2(tx *types.Transaction) (*DecodedSwap, error) {
	data := tx.Data()
	if tx.To() == nil || len(data) < 4 {
		return nil, nil
	}
	method, err := v2RouterABI.MethodById(data[:4])
	if err != nil {
		return nil, nil // unknown selector, not a swap we care about
	}
	vals, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method.Name, err)
	}

	swap := &DecodedSwap{
		Router:       addr(tx.To()),
		Method:       method.Name,
		RouterFamily: FamilyV2,
		AmountIn:     "0",
		AmountOut:    "0",
		AmountOutMin: "0",
		AmountInMax:  "0",
		Fee:          "0",
	}

	path, err := v2Path(vals, method.Name)
	if err != nil {
		return nil, err
	}
	swap.TokenIn = addr(path[0])
	swap.TokenOut = addr(path[len(path)-1])

	switch method.Name {
	case "swapExactTokensForTokens", "swapExactTokensForTokensSupportingFeeOnTransferTokens",
		"swapExactTokensForETH", "swapExactTokensForETHSupportingFeeOnTransferTokens":
		swap.AmountIn = amt(vals[0].(*big.Int))
		swap.AmountOutMin = amt(vals[1].(*big.Int))
		swap.Recipient = addr(vals[3].(common.Address))
		swap.Deadline = amt(vals[4].(*big.Int))

	case "swapTokensForExactTokens":
		// Exact-out: amountIn is unknown until execution, impact is
		// computed from amountInMax downstream.
		swap.AmountOut = amt(vals[0].(*big.Int))
		swap.AmountInMax = amt(vals[1].(*big.Int))
		swap.Recipient = addr(vals[3].(common.Address))
		swap.Deadline = amt(vals[4].(*big.Int))

	case "swapTokensForExactETH":
		swap.AmountOut = amt(vals[0].(*big.Int))
		swap.AmountInMax = amt(vals[1].(*big.Int))
		swap.AmountIn = swap.AmountInMax
		swap.Recipient = addr(vals[3].(common.Address))
		swap.Deadline = amt(vals[4].(*big.Int))

	case "swapExactETHForTokens", "swapExactETHForTokensSupportingFeeOnTransferTokens":
		swap.AmountIn = amt(tx.Value())
		swap.AmountOutMin = amt(vals[0].(*big.Int))
		swap.Recipient = addr(vals[2].(common.Address))
		swap.Deadline = amt(vals[3].(*big.Int))

	case "swapETHForExactTokens":
		swap.AmountIn = amt(tx.Value())
		swap.AmountOut = amt(vals[0].(*big.Int))
		swap.Recipient = addr(vals[2].(common.Address))
		swap.Deadline = amt(vals[3].(*big.Int))

	default:
		return nil, nil
	}

	return swap, nil
}

// v2Path extracts the address[] path argument, whose position depends on
// whether the method's first argument is an amount or the path itself.
func v2Path(vals []interface{}, methodName string) ([]common.Address, error) {
	idx := 2
	switch methodName {
	case "swapExactETHForTokens", "swapExactETHForTokensSupportingFeeOnTransferTokens", "swapETHForExactTokens":
		idx = 1
	}
	if len(vals) <= idx {
		return nil, fmt.Errorf("decode %s: argument count %d", methodName, len(vals))
	}
	path, ok := vals[idx].([]common.Address)
	if !ok || len(path) < 2 {
		return nil, fmt.Errorf("decode %s: malformed path", methodName)
	}
	return path, nil
}

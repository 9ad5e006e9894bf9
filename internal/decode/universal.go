package decode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// The universal router is a mini-interpreter over a byte-opcode stream:
// execute(commands, inputs, deadline) carries one opcode byte per
// sub-action and an ABI-encoded input blob for each. We recognize the four
// swap opcodes; everything else (PERMIT2, WRAP_ETH, SWEEP, ...) is skipped.
const universalRouterABIJSON = `[
 {"name":"execute","type":"function","stateMutability":"payable","inputs":[{"name":"commands","type":"bytes"},{"name":"inputs","type":"bytes[]"},{"name":"deadline","type":"uint256"}],"outputs":[]},
 {"name":"execute","type":"function","stateMutability":"payable","inputs":[{"name":"commands","type":"bytes"},{"name":"inputs","type":"bytes[]"}],"outputs":[]}
]`

var universalRouterABI = mustParseABI(universalRouterABIJSON)

// Universal-router swap opcodes.
const (
	cmdV3ExactIn  = 0x00
	cmdV3ExactOut = 0x01
	cmdV2ExactIn  = 0x08
	cmdV2ExactOut = 0x09
)

// commandSpec describes how to decode one opcode's input blob. Adding a new
// opcode is one more row in commandTable.
type commandSpec struct {
	method string
	family Family
	// exactIn: arg1 is amountIn, arg2 is amountOutMin.
	// exact-out: arg1 is amountOut, arg2 is amountInMax.
	exactIn bool
	// packedPath: V3 path bytes vs V2 address[].
	packedPath bool
}

var commandTable = map[byte]commandSpec{
	cmdV3ExactIn:  {method: "V3_EXACT_IN", family: FamilyV3, exactIn: true, packedPath: true},
	cmdV3ExactOut: {method: "V3_EXACT_OUT", family: FamilyV3, exactIn: false, packedPath: true},
	cmdV2ExactIn:  {method: "V2_EXACT_IN", family: FamilyV2, exactIn: true, packedPath: false},
	cmdV2ExactOut: {method: "V2_EXACT_OUT", family: FamilyV2, exactIn: false, packedPath: false},
}

// Input tuple shapes: (recipient, amount, amount, path, payerIsUser).
var (
	v3SwapInputArgs = mustArgs(
		arg("recipient", "address"),
		arg("amountA", "uint256"),
		arg("amountB", "uint256"),
		arg("path", "bytes"),
		arg("payerIsUser", "bool"),
	)
	v2SwapInputArgs = mustArgs(
		arg("recipient", "address"),
		arg("amountA", "uint256"),
		arg("amountB", "uint256"),
		arg("path", "address[]"),
		arg("payerIsUser", "bool"),
	)
)

func arg(name, typ string) abi.Argument {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Argument{Name: name, Type: t}
}

func mustArgs(args ...abi.Argument) abi.Arguments { return abi.Arguments(args) }

// DecodeUniversal decodes an execute() call into zero or more DecodedSwaps,
// in command order, each carrying the enclosing transaction's deadline.
// A commands string with only unrecognized opcodes yields an empty slice.
// Returns (nil, nil) when the calldata is not an execute() call at all.
func DecodeUniversal(tx *types.Transaction) ([]*DecodedSwap, error) {
	data := tx.Data()
	if tx.To() == nil || len(data) < 4 {
		return nil, nil
	}
	// Two execute() overloads share the ABI; abi.JSON suffixes the second
	// name, so match on RawName.
	method, err := universalRouterABI.MethodById(data[:4])
	if err != nil || method.RawName != "execute" {
		return nil, nil
	}
	vals, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("decode execute: %w", err)
	}

	commands, ok := vals[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("decode execute: commands is not bytes")
	}
	inputs, ok := vals[1].([][]byte)
	if !ok {
		return nil, fmt.Errorf("decode execute: inputs is not bytes[]")
	}
	deadline := "0"
	if len(vals) > 2 {
		if d, ok := vals[2].(*big.Int); ok {
			deadline = d.String()
		}
	}

	swaps := make([]*DecodedSwap, 0, len(commands))
	for i, cmd := range commands {
		spec, known := commandTable[cmd]
		if !known || i >= len(inputs) {
			continue // non-swap command
		}
		swap, err := decodeCommandInput(spec, inputs[i])
		if err != nil {
			return nil, fmt.Errorf("decode command %#02x: %w", cmd, err)
		}
		swap.Router = addr(tx.To())
		swap.Deadline = deadline
		swaps = append(swaps, swap)
	}
	return swaps, nil
}

func decodeCommandInput(spec commandSpec, input []byte) (*DecodedSwap, error) {
	args := v2SwapInputArgs
	if spec.packedPath {
		args = v3SwapInputArgs
	}
	vals, err := args.Unpack(input)
	if err != nil {
		return nil, err
	}

	swap := &DecodedSwap{
		Method:       spec.method,
		RouterFamily: spec.family,
		AmountIn:     "0",
		AmountOut:    "0",
		AmountOutMin: "0",
		AmountInMax:  "0",
		Fee:          "0",
		Recipient:    addr(vals[0].(common.Address)),
		PayerIsUser:  vals[4].(bool),
	}

	amountA := vals[1].(*big.Int)
	amountB := vals[2].(*big.Int)
	if spec.exactIn {
		swap.AmountIn = amt(amountA)
		swap.AmountOutMin = amt(amountB)
	} else {
		swap.AmountOut = amt(amountA)
		swap.AmountInMax = amt(amountB)
	}

	if spec.packedPath {
		first, last, fee, err := walkPackedPath(vals[3].([]byte))
		if err != nil {
			return nil, err
		}
		swap.TokenIn, swap.TokenOut, swap.Fee = first, last, fee
	} else {
		path, ok := vals[3].([]common.Address)
		if !ok || len(path) < 2 {
			return nil, fmt.Errorf("malformed V2 path")
		}
		swap.TokenIn = addr(path[0])
		swap.TokenOut = addr(path[len(path)-1])
	}
	return swap, nil
}

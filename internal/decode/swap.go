// Package decode turns raw router calldata into DecodedSwap records.
//
// All decoders are pure: no I/O, no clock. A calldata blob that targets a
// method we do not trade on decodes to nil with a nil error; malformed
// calldata yields a non-nil error the caller may log and drop. Neither case
// ever panics or aborts a sibling transaction.
package decode

import (
	"math/big"

	"github.com/swapscan/backend/internal/config"
)

// Family selects the pool and price-impact engine that applies to a swap.
type Family string

const (
	FamilyV2 Family = "v2"
	FamilyV3 Family = "v3"
)

// DecodedSwap is the unified record emitted by every decoder. All 256-bit
// amounts are base-10 strings for wire stability; JSON numbers are never
// used for amount fields.
type DecodedSwap struct {
	Router       string `json:"router"`
	Method       string `json:"method"`
	RouterFamily Family `json:"routerFamily"`
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	AmountIn     string `json:"amountIn"`
	AmountOut    string `json:"amountOut"`
	AmountOutMin string `json:"amountOutMin"`
	AmountInMax  string `json:"amountInMax"`
	Fee          string `json:"fee"`
	Recipient    string `json:"recipient"`
	Deadline     string `json:"deadline"`
	PayerIsUser  bool   `json:"payerIsUser"`
}

// AmountInBig rehydrates AmountIn. Unparseable or empty strings come back
// as zero, which the evaluator treats as "unknown, try amountInMax".
func (s *DecodedSwap) AmountInBig() *big.Int {
	return parseAmount(s.AmountIn)
}

// AmountInMaxBig rehydrates AmountInMax, zero on absence.
func (s *DecodedSwap) AmountInMaxBig() *big.Int {
	return parseAmount(s.AmountInMax)
}

// AmountOutMinBig rehydrates AmountOutMin, nil when not parseable.
func (s *DecodedSwap) AmountOutMinBig() *big.Int {
	if s.AmountOutMin == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(s.AmountOutMin, 10)
	if !ok {
		return nil
	}
	return n
}

func parseAmount(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

func amt(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func addr(a interface{ Hex() string }) string {
	return config.NormalizeAddress(a.Hex())
}

package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress lowercases a hex address. All addresses at rest and all
// comparisons in this codebase use the lowercased form; checksummed casing
// only ever appears on the wire toward geth.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsAddress reports whether s is a plausible 20-byte hex address.
func IsAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// ZeroAddress is the canonical absent-pool sentinel returned by factories.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// IsZeroAddress reports whether addr is the zero address (any casing).
func IsZeroAddress(addr string) bool {
	return NormalizeAddress(addr) == ZeroAddress
}

package engine

import (
	"math/big"

	"lukechampine.com/uint128"
)

// parseAmount decodes a decimal-string amount into a u128, rejecting
// negative values and anything out of u128 range. math/big is used only as
// the decimal parser; the pack's uint128 library has no string parser of
// its own, and no third-party decimal-to-u128 parser exists in the
// examples, so this one call site is the stdlib-justified exception.
func parseAmount(s string) (uint128.Uint128, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 128 {
		return uint128.Zero, ErrMalformedAmount
	}
	return uint128.FromBig(n), nil
}

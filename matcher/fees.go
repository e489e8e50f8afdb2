package matcher

import "lukechampine.com/uint128"

// pipsDenominator is the parts-per-million base fee_pips is expressed in.
const pipsDenominator = 1_000_000

// ClosureDelta computes the total amount debited from a user who declares
// giving (a negative TokenDiff leg of) magnitude under feePips, per §4.5: the
// fee is collected as a surcharge on top of what the counterparty is owed,
// so a declared positive leg is always credited its exact signed amount and
// never reduced to pay for the fee. The surcharge is ClosureSupplyDelta,
// rounded up so the protocol never under collects it.
func ClosureDelta(magnitude uint128.Uint128, feePips uint32) uint128.Uint128 {
	return magnitude.Add(ClosureSupplyDelta(magnitude, feePips))
}

// ClosureSupplyDelta computes the fee collector's share of an unmatched
// TokenDiff delta under feePips, rounded up so the protocol never under
// collects the fee it is owed.
func ClosureSupplyDelta(unmatchedDelta uint128.Uint128, feePips uint32) uint128.Uint128 {
	if feePips == 0 {
		return uint128.Zero
	}
	numerator := unmatchedDelta.Mul64(uint64(feePips))
	share := numerator.Div64(pipsDenominator)
	if numerator.Mod64(pipsDenominator) != 0 {
		share = share.Add64(1)
	}
	return share
}

// Package resolver implements the cross-contract resolver (C7, §4.7): the
// promise/callback pattern withdrawals and deposits use to cross the
// contract boundary, including the refund arithmetic and the log-size
// pre-check that keeps a successful debit from becoming unrefundable.
package resolver

import "lukechampine.com/uint128"

// PromiseOutcome is what the resolver's callback observes about a deferred
// token-contract call.
type PromiseOutcome struct {
	Success bool
	// IsCall is true when the call was a transfer-with-callback style
	// call (e.g. ft_transfer_call), false for a plain transfer.
	IsCall bool
	// Returned is the numeric value the promise returned on success for
	// a transfer-with-callback call. Ignored when IsCall is false or
	// Success is false.
	Returned uint128.Uint128
}

// ResolveWithdraw computes how much of a withdrawal's amount was used by
// the token contract and how much must be refunded to the sender's
// internal balance, per §4.7 step 3:
//
//   - success, numeric return (transfer-with-callback): used = min(amount,
//     returned); refund = amount - used.
//   - success, empty return (plain transfer): used = amount; refund = 0.
//   - failure, transfer-with-callback: refund = 0 (the underlying
//     standard's known race forbids safely refunding there).
//   - failure, plain transfer: refund = amount.
func ResolveWithdraw(amount uint128.Uint128, outcome PromiseOutcome) (used, refund uint128.Uint128) {
	if outcome.Success {
		if outcome.IsCall {
			used = amount
			if outcome.Returned.Cmp(amount) < 0 {
				used = outcome.Returned
			}
			return used, amount.Sub(used)
		}
		return amount, uint128.Zero
	}

	if outcome.IsCall {
		// Failure of a transfer-with-callback: refusing to refund here
		// avoids double-crediting the sender if the token contract's
		// own callback later decides the transfer actually went
		// through.
		return uint128.Zero, uint128.Zero
	}
	return uint128.Zero, amount
}

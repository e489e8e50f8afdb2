// Package matcher implements the delta/transfer matcher (C5, §4.5): it
// collects every balance credit and debit the engine stages during a
// batch and, at finalize, reduces them to the minimal concrete transfer
// set or reports the residual that proves the batch did not conserve
// value. The representation is two flat (account, amount) slices per
// token paired by a two-pointer sweep, per the engine's guidance to avoid
// a bipartite graph for what is fundamentally a sorted-merge problem.
package matcher

import (
	"math/big"
	"sort"

	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

// Transfer is one concrete movement of value the matcher produced: the
// withdrawer (whose balance the batch decreased) funds the depositor
// (whose balance the batch increased).
type Transfer struct {
	Token  tokenid.TokenId
	From   string
	To     string
	Amount uint128.Uint128
}

// u128Max is used to detect when a net signed accumulator has grown past
// what a balance column can hold.
var u128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// TransferMatcher accumulates per-account, per-token net deltas for the
// lifetime of one batch. It is not safe for concurrent use; the engine
// owns exactly one instance per batch and drops it on return, matching
// spec's description of the matcher as transient, per-batch state.
type TransferMatcher struct {
	// net[token][account] is signed: positive means the account's balance
	// grew overall during the batch, negative means it shrank. big.Int is
	// used here purely as the signed accumulator; all amounts it ever
	// holds are bounded by the u128 range balances are stored in.
	net map[tokenid.TokenId]map[string]*big.Int
}

// New returns an empty matcher, ready for one batch.
func New() *TransferMatcher {
	return &TransferMatcher{net: make(map[tokenid.TokenId]map[string]*big.Int)}
}

func (m *TransferMatcher) entry(token tokenid.TokenId, account string) *big.Int {
	accounts, ok := m.net[token]
	if !ok {
		accounts = make(map[string]*big.Int)
		m.net[token] = accounts
	}
	v, ok := accounts[account]
	if !ok {
		v = new(big.Int)
		accounts[account] = v
	}
	return v
}

// Deposit records that account's balance of token grew by amount, mirroring
// a staged add_balance.
func (m *TransferMatcher) Deposit(token tokenid.TokenId, account string, amount uint128.Uint128) {
	m.entry(token, account).Add(m.entry(token, account), amount.Big())
}

// Withdraw records that account's balance of token shrank by amount,
// mirroring a staged sub_balance.
func (m *TransferMatcher) Withdraw(token tokenid.TokenId, account string, amount uint128.Uint128) {
	m.entry(token, account).Sub(m.entry(token, account), amount.Big())
}

type bucket struct {
	account   string
	remaining *big.Int
}

// Finalize reduces every token's net deltas to a minimal transfer set. It
// returns *UnmatchedDeltasError if any token's depositors and withdrawers
// don't fully cancel, and ErrOverflow if any net delta exceeded the u128
// range balances are stored in. The matcher is left in an undefined state
// afterward; callers are expected to discard it.
func (m *TransferMatcher) Finalize() ([]Transfer, error) {
	var transfers []Transfer
	residuals := map[string]Residual{}

	// Deterministic token iteration keeps finalize's output (and hence
	// emitted events) reproducible for identical input batches.
	tokens := make([]tokenid.TokenId, 0, len(m.net))
	for token := range m.net {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Less(tokens[j]) })

	for _, token := range tokens {
		var depositors, withdrawers []bucket
		for account, net := range m.net[token] {
			if net.CmpAbs(u128Max) > 0 {
				return nil, ErrOverflow
			}
			switch net.Sign() {
			case 1:
				depositors = append(depositors, bucket{account, new(big.Int).Set(net)})
			case -1:
				withdrawers = append(withdrawers, bucket{account, new(big.Int).Neg(net)})
			}
		}

		sortDescending(depositors)
		sortDescending(withdrawers)

		i, j := 0, 0
		for i < len(depositors) && j < len(withdrawers) {
			dep, wd := &depositors[i], &withdrawers[j]
			amt := new(big.Int).Set(dep.remaining)
			if wd.remaining.Cmp(amt) < 0 {
				amt.Set(wd.remaining)
			}
			if amt.Sign() > 0 {
				transfers = append(transfers, Transfer{
					Token:  token,
					From:   wd.account,
					To:     dep.account,
					Amount: uint128.FromBig(amt),
				})
			}
			dep.remaining.Sub(dep.remaining, amt)
			wd.remaining.Sub(wd.remaining, amt)
			if dep.remaining.Sign() == 0 {
				i++
			}
			if wd.remaining.Sign() == 0 {
				j++
			}
		}

		residual := new(big.Int)
		for ; i < len(depositors); i++ {
			residual.Add(residual, depositors[i].remaining)
		}
		for ; j < len(withdrawers); j++ {
			residual.Sub(residual, withdrawers[j].remaining)
		}
		if residual.Sign() != 0 {
			residuals[token.String()] = Residual{
				Negative:  residual.Sign() < 0,
				Magnitude: new(big.Int).Abs(residual).String(),
			}
		}
	}

	if len(residuals) > 0 {
		return nil, &UnmatchedDeltasError{Residuals: residuals}
	}
	return transfers, nil
}

func sortDescending(buckets []bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		c := buckets[i].remaining.Cmp(buckets[j].remaining)
		if c != 0 {
			return c > 0
		}
		return buckets[i].account < buckets[j].account
	})
}

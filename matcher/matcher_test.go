package matcher

import (
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

func TestFinalizeProducesMinimalTransferSet(t *testing.T) {
	m := New()
	x := tokenid.Ft("x.near")

	// Alice gives 1000 X; Bob and Carol split it as depositors.
	m.Withdraw(x, "alice.near", uint128.From64(1000))
	m.Deposit(x, "bob.near", uint128.From64(600))
	m.Deposit(x, "carol.near", uint128.From64(400))

	transfers, err := m.Finalize()
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	total := uint128.Zero
	for _, tr := range transfers {
		require.Equal(t, "alice.near", tr.From)
		total = total.Add(tr.Amount)
	}
	require.Equal(t, uint128.From64(1000), total)
}

func TestFinalizeCancelsSameAccountNet(t *testing.T) {
	m := New()
	x := tokenid.Ft("x.near")

	// Alice's TokenDiff: -1000 X then +1000 X nets to zero; nothing to
	// transfer and no residual.
	m.Withdraw(x, "alice.near", uint128.From64(1000))
	m.Deposit(x, "alice.near", uint128.From64(1000))

	transfers, err := m.Finalize()
	require.NoError(t, err)
	require.Empty(t, transfers)
}

func TestFinalizeDetectsUnmatchedResidual(t *testing.T) {
	m := New()
	y := tokenid.Ft("y.near")

	m.Deposit(y, "bob.near", uint128.From64(2000))
	m.Withdraw(y, "bob.near", uint128.From64(1999))

	_, err := m.Finalize()
	require.Error(t, err)

	var unmatched *UnmatchedDeltasError
	require.ErrorAs(t, err, &unmatched)
	residual, ok := unmatched.Residuals[y.String()]
	require.True(t, ok)
	require.False(t, residual.Negative)
	require.Equal(t, "1", residual.Magnitude)
}

func TestClosureDeltaGrossesUpForGiver(t *testing.T) {
	// 10 pips fee on a declared 1,000,000-unit give: the giver is debited
	// 1,000,010 (the extra 10 is the surcharge), so the receiving side
	// still nets its full declared amount.
	got := ClosureDelta(uint128.From64(1_000_000), 10)
	require.Equal(t, uint128.From64(1_000_010), got)
}

func TestClosureSupplyDeltaRoundsUpForProtocol(t *testing.T) {
	// 3 pips of 100 units is 0.0003, which must round up to 1 so the
	// protocol never under-collects its fee.
	got := ClosureSupplyDelta(uint128.From64(100), 3)
	require.Equal(t, uint128.From64(1), got)
}

func TestClosureSupplyDeltaZeroFee(t *testing.T) {
	got := ClosureSupplyDelta(uint128.From64(100), 0)
	require.True(t, got.IsZero())
}

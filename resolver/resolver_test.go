package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func TestResolveWithdrawPlainTransferSuccess(t *testing.T) {
	used, refund := ResolveWithdraw(uint128.From64(100), PromiseOutcome{Success: true})
	require.Equal(t, uint128.From64(100), used)
	require.True(t, refund.IsZero())
}

func TestResolveWithdrawPlainTransferFailureRefundsAll(t *testing.T) {
	used, refund := ResolveWithdraw(uint128.From64(100), PromiseOutcome{Success: false})
	require.True(t, used.IsZero())
	require.Equal(t, uint128.From64(100), refund)
}

func TestResolveWithdrawCallPartialUse(t *testing.T) {
	used, refund := ResolveWithdraw(uint128.From64(100), PromiseOutcome{
		Success: true, IsCall: true, Returned: uint128.From64(60),
	})
	require.Equal(t, uint128.From64(60), used)
	require.Equal(t, uint128.From64(40), refund)
}

func TestResolveWithdrawCallFailureNoRefund(t *testing.T) {
	used, refund := ResolveWithdraw(uint128.From64(100), PromiseOutcome{Success: false, IsCall: true})
	require.True(t, used.IsZero())
	require.True(t, refund.IsZero())
}

func TestPreCheckLogSizesRejectsOversized(t *testing.T) {
	require.NoError(t, PreCheckLogSizes(10, 10))
	require.ErrorIs(t, PreCheckLogSizes(maxLogBytes+1, 10), ErrLogTooLarge)
	require.ErrorIs(t, PreCheckLogSizes(10, maxLogBytes+1), ErrLogTooLarge)
}

func TestParseDepositMessageNotify(t *testing.T) {
	raw := []byte(`{"receiver_id":"alice.near","action":{"type":"notify","on_transfer_msg":"hi"}}`)
	msg, err := ParseDepositMessage(raw)
	require.NoError(t, err)
	require.Equal(t, "alice.near", msg.ReceiverID)
	require.Equal(t, ActionNotify, msg.Action.Kind)
	require.Equal(t, "hi", msg.Action.OnTransferMsg)
}

func TestParseDepositMessageExecute(t *testing.T) {
	raw := []byte(`{"receiver_id":"alice.near","action":{"type":"execute","intents":[],"refund_if_fails":true}}`)
	msg, err := ParseDepositMessage(raw)
	require.NoError(t, err)
	require.Equal(t, ActionExecute, msg.Action.Kind)
	require.True(t, msg.Action.RefundIfFails)
}

func TestParseDepositMessageLegacyV1(t *testing.T) {
	raw := []byte(`{"receiver_id":"alice.near","execute_intents":[],"refund_if_fails":false}`)
	msg, err := ParseDepositMessage(raw)
	require.NoError(t, err)
	require.Equal(t, ActionExecute, msg.Action.Kind)
	require.False(t, msg.Action.RefundIfFails)
}

func TestParseDepositMessageNoAction(t *testing.T) {
	raw := []byte(`{"receiver_id":"alice.near"}`)
	msg, err := ParseDepositMessage(raw)
	require.NoError(t, err)
	require.Nil(t, msg.Action)
}

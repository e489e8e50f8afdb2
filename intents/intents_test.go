package intents

import (
	"testing"

	"github.com/defuse-protocol/intents-settle/tokenid"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageSimpleTransfer(t *testing.T) {
	raw := []byte(`{
		"signer_id": "alice.near",
		"verifying_contract": "defuse.near",
		"deadline": "Never",
		"nonce": "0000000000000000000000000000000000000000000000000000000000000001",
		"intents": [
			{"intent": "transfer", "receiver_id": "bob.near", "tokens": {"nep141:x.near": "1000"}}
		]
	}`)

	payload, err := DecodeMessage(raw)
	require.NoError(t, err)
	require.Equal(t, "alice.near", payload.SignerID)
	require.Equal(t, "defuse.near", payload.VerifyingContract)
	require.True(t, payload.Deadline.Sentinel == "Never")
	require.Len(t, payload.Intents, 1)

	xfer, ok := payload.Intents[0].(Transfer)
	require.True(t, ok)
	require.Equal(t, "bob.near", xfer.Receiver)
	require.Equal(t, KindTransfer, xfer.Kind())
}

func TestDecodeMessageTokenDiff(t *testing.T) {
	raw := []byte(`{
		"signer_id": "alice.near",
		"verifying_contract": "defuse.near",
		"deadline": "Max",
		"nonce": "0000000000000000000000000000000000000000000000000000000000000002",
		"intents": [
			{"intent": "token_diff", "diff": {"nep141:x.near": "-100", "nep141:y.near": "200"}}
		]
	}`)

	payload, err := DecodeMessage(raw)
	require.NoError(t, err)

	diff, ok := payload.Intents[0].(TokenDiff)
	require.True(t, ok)
	xToken, err := tokenid.Parse("nep141:x.near")
	require.NoError(t, err)
	require.Equal(t, "-100", diff.Diff[xToken])
}

func TestUnknownIntentKindRejected(t *testing.T) {
	raw := []byte(`{
		"signer_id": "a",
		"verifying_contract": "c",
		"deadline": "Never",
		"nonce": "0000000000000000000000000000000000000000000000000000000000000003",
		"intents": [{"intent": "teleport"}]
	}`)
	_, err := DecodeMessage(raw)
	require.Error(t, err)
}

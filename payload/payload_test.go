package payload

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/defuse-protocol/intents-settle/crypto"
)

func sampleMessage(t *testing.T, signerID string) []byte {
	t.Helper()
	doc := map[string]interface{}{
		"signer_id":          signerID,
		"verifying_contract": "intents.near",
		"deadline":           "Never",
		"nonce":              hex.EncodeToString(make([]byte, 32)),
		"intents":             []interface{}{},
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return b
}

func TestExtractNep413RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signerID := "ed25519:" + hex.EncodeToString(pub)
	message := sampleMessage(t, signerID)

	tag := crypto.Sha256([]byte(nep413DomainTag))
	recipient := "intents.near"
	preimage := append(append([]byte{}, tag[:]...), recipient...)
	preimage = append(preimage, message...)
	digest := crypto.Sha256(preimage)
	sig := ed25519.Sign(priv, digest[:])

	env := RawEnvelope{
		Standard:  StandardNep413,
		Message:   string(message),
		Signature: hex.EncodeToString(sig),
		PublicKey: hex.EncodeToString(pub),
		Recipient: recipient,
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	payload, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, signerID, payload.SignerID)
	require.Equal(t, "intents.near", payload.VerifyingContract)
}

func TestExtractNep413RejectsBadSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signerID := "ed25519:" + hex.EncodeToString(pub)
	message := sampleMessage(t, signerID)

	sig := ed25519.Sign(priv, message) // wrong digest: signed raw message, not the domain-tagged one

	env := RawEnvelope{
		Standard:  StandardNep413,
		Message:   string(message),
		Signature: hex.EncodeToString(sig),
		PublicKey: hex.EncodeToString(pub),
		Recipient: "intents.near",
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = Extract(raw)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestExtractUnsupportedStandard(t *testing.T) {
	env := RawEnvelope{Standard: "carrier-pigeon"}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = Extract(raw)
	require.ErrorIs(t, err, ErrUnsupportedStandard)
}

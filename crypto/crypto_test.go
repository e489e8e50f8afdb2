package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"
)

func TestDsha256IsDoubleSha256(t *testing.T) {
	msg := []byte("defuse")
	got := Dsha256(msg)
	want := Sha256(Sha256(msg)[:])
	require.Equal(t, want, got)
}

func TestHash160IsRipemdOverSha256(t *testing.T) {
	msg := []byte("defuse")
	got := Hash160(msg)
	shaDigest := Sha256(msg)
	want := Ripemd160(shaDigest[:])
	require.Equal(t, want, got)
}

func TestEd25519VerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	msg := []byte("intent payload")
	sig := ed25519.Sign(priv, msg)

	require.True(t, Ed25519Verify(pub, msg, sig))

	mutated := append([]byte(nil), sig...)
	mutated[0] ^= 0xFF
	require.False(t, Ed25519Verify(pub, msg, mutated))
}

func TestSecp256k1RecoverRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	var msg [32]byte
	digest := Sha256([]byte("recover me"))
	msg = digest

	sig := ecdsa.SignCompact(priv, msg[:], true)
	// sig[0] is the header byte; split recid/compressed out of it the
	// same way the wire formats in §4.2/§4.3 do.
	header := sig[0]
	recid := (header - 27) & 0x3
	compressed := (header-27)&4 != 0

	var sig64 [64]byte
	copy(sig64[:], sig[1:])

	pubBytes, ok := Secp256k1Recover(msg, sig64, recid, compressed)
	require.True(t, ok)
	require.Equal(t, priv.PubKey().SerializeCompressed(), pubBytes)

	// Flipping a single bit of s must make recovery fail to match the
	// original key (it may still "succeed" onto the wrong point, so we
	// assert on the unmatched public key rather than a hard error).
	sig64[63] ^= 0x01
	pubBytes2, ok2 := Secp256k1Recover(msg, sig64, recid, compressed)
	if ok2 {
		require.NotEqual(t, priv.PubKey().SerializeCompressed(), pubBytes2)
	}
}

func TestSecp256k1RecoverRejectsOutOfRangeRecid(t *testing.T) {
	var msg [32]byte
	var sig [64]byte
	_, ok := Secp256k1Recover(msg, sig, 4, true)
	require.False(t, ok)
}

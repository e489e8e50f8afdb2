package btcmsg

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/defuse-protocol/intents-settle/crypto"
)

func signCompact64(priv *secp256k1.PrivateKey, digest [32]byte) (recid uint8, compressed bool, sig64 [64]byte) {
	sig := ecdsa.SignCompact(priv, digest[:], true)
	header := sig[0]
	recid = (header - 27) & 0x03
	compressed = (header-27)&4 != 0
	copy(sig64[:], sig[1:])
	return
}

func TestVerifyCompactRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	pubCompressed := priv.PubKey().SerializeCompressed()
	var hash [20]byte
	copy(hash[:], crypto.Hash160(pubCompressed)[:])
	addr := Address{Kind: AddressP2PKH, Hash160: hash}

	message := []byte("hello")
	digest := compactMessageDigest(message)
	recid, compressed, sig64 := signCompact64(priv, digest)

	sig65 := make([]byte, 65)
	sig65[0] = 27 + recid
	if compressed {
		sig65[0] += 4
	}
	copy(sig65[1:], sig64[:])

	pub, ok := VerifyCompact(addr, message, sig65)
	require.True(t, ok)
	require.Equal(t, pubCompressed, pub)
}

func TestVerifyCompactRejectsBitFlip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pubCompressed := priv.PubKey().SerializeCompressed()
	var hash [20]byte
	copy(hash[:], crypto.Hash160(pubCompressed)[:])
	addr := Address{Kind: AddressP2PKH, Hash160: hash}

	message := []byte("hello")
	digest := compactMessageDigest(message)
	recid, compressed, sig64 := signCompact64(priv, digest)

	sig65 := make([]byte, 65)
	sig65[0] = 27 + recid
	if compressed {
		sig65[0] += 4
	}
	copy(sig65[1:], sig64[:])

	sig65[40] ^= 0x01
	_, ok := VerifyCompact(addr, message, sig65)
	require.False(t, ok)
}

func TestVerifyCompactRejectsOutOfRangeRecidHeader(t *testing.T) {
	sig := make([]byte, 65)
	sig[0] = 26
	_, ok := VerifyCompact(Address{Kind: AddressP2PKH}, []byte("m"), sig)
	require.False(t, ok)

	sig[0] = 35
	_, ok = VerifyCompact(Address{Kind: AddressP2PKH}, []byte("m"), sig)
	require.False(t, ok)
}

func TestTaggedDigestDeterministicAndSensitive(t *testing.T) {
	m1 := []byte("order-123")
	m2 := []byte("order-124")

	d1a := taggedDigest(bip322Tag, m1)
	d1b := taggedDigest(bip322Tag, m1)
	d2 := taggedDigest(bip322Tag, m2)

	require.Equal(t, d1a, d1b)
	require.NotEqual(t, d1a, d2)
}

func TestVerifyFullBIP322P2WPKH(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pubCompressed := priv.PubKey().SerializeCompressed()

	var hash [20]byte
	h160 := crypto.Hash160(pubCompressed)
	copy(hash[:], h160[:])
	addr := Address{Kind: AddressSegwit, WitnessVersion: 0, WitnessProgram: hash[:], Hash160: hash}

	message := []byte("hello from p2wpkh")
	h := taggedDigest(bip322Tag, message)

	toSpend, err := buildToSpend(addr, h)
	require.NoError(t, err)
	toSign := buildToSign(toSpend.TxHash(), nil)

	sighash := segwitV0SigHash(toSign, p2wpkhScriptCode(hash))
	recid, compressed, sig64 := signCompact64(priv, sighash)

	sig := make([]byte, 65)
	sig[0] = 27 + recid
	if compressed {
		sig[0] += 4
	}
	copy(sig[1:], sig64[:])

	witness := [][]byte{sig, pubCompressed}
	pub, ok := Verify(addr, message, witness)
	require.True(t, ok)
	require.Equal(t, pubCompressed, pub)
}

func TestVerifyFullBIP322RejectsWrongAddress(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pubCompressed := priv.PubKey().SerializeCompressed()

	var hash [20]byte
	h160 := crypto.Hash160(pubCompressed)
	copy(hash[:], h160[:])
	addr := Address{Kind: AddressSegwit, WitnessVersion: 0, WitnessProgram: hash[:], Hash160: hash}

	// A different address of the same type.
	var otherHash [20]byte
	otherHash[0] = 0xFF
	otherAddr := Address{Kind: AddressSegwit, WitnessVersion: 0, WitnessProgram: otherHash[:], Hash160: otherHash}

	message := []byte("hello from p2wpkh")
	h := taggedDigest(bip322Tag, message)

	toSpend, err := buildToSpend(addr, h)
	require.NoError(t, err)
	toSign := buildToSign(toSpend.TxHash(), nil)
	sighash := segwitV0SigHash(toSign, p2wpkhScriptCode(hash))
	recid, compressed, sig64 := signCompact64(priv, sighash)

	sig := make([]byte, 65)
	sig[0] = 27 + recid
	if compressed {
		sig[0] += 4
	}
	copy(sig[1:], sig64[:])

	witness := [][]byte{sig, pubCompressed}
	_, ok := Verify(otherAddr, message, witness)
	require.False(t, ok)
}

// Package crypto is the uniform adapter over the host runtime's native hash
// and signature primitives: SHA-256, RIPEMD-160, double-SHA-256, HASH160,
// Ed25519 verification, and Secp256k1 public-key recovery. Nothing outside this
// package knows which concrete library backs any of these six operations.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// Sha256 returns the SHA-256 digest of b.
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Ripemd160 returns the RIPEMD-160 digest of b.
func Ripemd160(b []byte) [20]byte {
	h := ripemd160.New()
	h.Write(b)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Dsha256 returns sha256(sha256(b)), the digest Bitcoin uses throughout its
// signing and txid derivation.
func Dsha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Hash160 returns ripemd160(sha256(b)), the digest Bitcoin uses to derive
// pubkey hashes and script hashes.
func Hash160(b []byte) [20]byte {
	first := sha256.Sum256(b)
	return Ripemd160(first[:])
}

// Keccak256 returns the Keccak-256 digest of b, used by the raw
// personal-message signing standard (§4.2b).
func Keccak256(b []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Ed25519Verify reports whether sig is a valid Ed25519 signature of msg under
// pk. pk and sig must be the standard 32- and 64-byte encodings; any other
// length is treated as an invalid signature rather than a panic.
func Ed25519Verify(pk, msg, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), msg, sig)
}

// Secp256k1Recover recovers the public key from a 64-byte (r||s) signature
// over msg32, given the recovery id in [0,3], returned as the 65-byte
// uncompressed SEC1 encoding (leading 0x04 tag included). When compressed is
// true the returned key is the 33-byte compressed SEC1 encoding instead.
//
// Returns ok=false if recid is out of range or the signature does not
// recover to a valid curve point.
func Secp256k1Recover(msg32 [32]byte, sig64 [64]byte, recid uint8, compressed bool) (pubkey []byte, ok bool) {
	if recid > 3 {
		return nil, false
	}

	// ecdsa.RecoverCompact expects a 65-byte signature with a leading
	// header byte encoding (recid, compressed) followed by r||s.
	header := byte(27 + recid)
	if compressed {
		header += 4
	}

	compactSig := make([]byte, 65)
	compactSig[0] = header
	copy(compactSig[1:], sig64[:])

	pub, wasCompressed, err := ecdsa.RecoverCompact(compactSig, msg32[:])
	if err != nil {
		return nil, false
	}

	if wasCompressed {
		return pub.SerializeCompressed(), true
	}
	return pub.SerializeUncompressed(), true
}

// ParsePubkey parses a compressed or uncompressed SEC1-encoded secp256k1
// public key, as produced by Secp256k1Recover or carried in a witness stack.
func ParsePubkey(b []byte) (*secp256k1.PublicKey, error) {
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse pubkey: %w", err)
	}
	return pk, nil
}

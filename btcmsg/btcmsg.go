// Package btcmsg implements the Bitcoin-message verifier (C3 / §4.3):
// address parsing, BIP-322 sighash construction (legacy and segwit-v0),
// witness/DER parsing, compact-signature recovery, and the address-match
// check that binds a recovered key back to the address that signed.
package btcmsg

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"

	"github.com/defuse-protocol/intents-settle/crypto"
)

// VerifyCompact implements §4.2c: a 65-byte compact Bitcoin signature
// (recid||r||s, recid in [27,34]) over
// dsha256("Bitcoin Signed Message:\n" || varint(len(msg)) || msg). Returns
// the recovered pubkey iff it hashes to addr's pubkey-hash.
func VerifyCompact(addr Address, message, sig65 []byte) ([]byte, bool) {
	if len(sig65) != 65 {
		return nil, false
	}
	header := sig65[0]
	if header < 27 || header > 34 {
		return nil, false
	}
	recid := (header - 27) & 0x03
	compressed := (header-27)&4 != 0

	digest := compactMessageDigest(message)

	var sig64 [64]byte
	copy(sig64[:], sig65[1:])

	pub, ok := crypto.Secp256k1Recover(digest, sig64, recid, compressed)
	if !ok {
		return nil, false
	}
	if !addressMatches(addr, pub) {
		return nil, false
	}
	return pub, true
}

// compactMessageDigest computes §4.2c's preimage digest.
func compactMessageDigest(message []byte) [32]byte {
	const prefix = "Bitcoin Signed Message:\n"
	var buf bytes.Buffer
	buf.WriteString(prefix)
	buf.Write(WriteVarInt(uint64(len(message))))
	buf.Write(message)
	return crypto.Dsha256(buf.Bytes())
}

// Verify implements the full §4.3 BIP-322 verification algorithm. witness
// is the witness stack as would appear on to_sign's single input:
// [signature, pubkey] for P2WPKH/P2PKH, or [signature, pubkey,
// witness_script] for P2WSH. Returns the recovered pubkey on success, nil
// otherwise; never panics on malformed input.
func Verify(addr Address, message []byte, witness [][]byte) ([]byte, bool) {
	if len(witness) < 1 {
		return nil, false
	}

	h := taggedDigest(bip322Tag, message)

	toSpend, err := buildToSpend(addr, h)
	if err != nil {
		return nil, false
	}
	toSpendTxID := toSpend.TxHash()

	toSign := buildToSign(toSpendTxID, wire.TxWitness(witness))

	switch addr.Kind {
	case AddressP2PKH:
		return verifyLegacy(addr, toSign, witness)

	case AddressP2SH:
		// Only P2SH-wrapped single-key redemption is supported; script
		// hash matching against an arbitrary redeem script is out of
		// scope per §9's Open Question on non-standard scripts.
		return verifyLegacy(addr, toSign, witness)

	case AddressSegwit:
		if addr.WitnessVersion != 0 {
			return nil, false
		}
		if addr.IsP2WPKH() {
			return verifySegwitV0(addr, toSign, witness, p2wpkhScriptCode(addr.Hash160))
		}
		if addr.IsP2WSH() {
			return verifyP2WSH(addr, toSign, witness)
		}
		return nil, false

	default:
		return nil, false
	}
}

func verifyLegacy(addr Address, toSign *wire.MsgTx, witness [][]byte) ([]byte, bool) {
	addrScript, err := addr.ScriptPubKey()
	if err != nil {
		return nil, false
	}

	sighash, err := legacySigHash(toSign, addrScript)
	if err != nil {
		return nil, false
	}

	pub, ok := recoverFromWitness(sighash, witness, func(pub []byte) bool { return addressMatches(addr, pub) })
	if !ok {
		return nil, false
	}
	if !addressMatches(addr, pub) {
		return nil, false
	}
	return pub, true
}

func verifySegwitV0(addr Address, toSign *wire.MsgTx, witness [][]byte, scriptCode []byte) ([]byte, bool) {
	sighash := segwitV0SigHash(toSign, scriptCode)

	pub, ok := recoverFromWitness(sighash, witness, func(pub []byte) bool { return addressMatches(addr, pub) })
	if !ok {
		return nil, false
	}
	if !addressMatches(addr, pub) {
		return nil, false
	}
	return pub, true
}

func verifyP2WSH(addr Address, toSign *wire.MsgTx, witness [][]byte) ([]byte, bool) {
	if len(witness) != 3 {
		return nil, false
	}
	witnessScript := witness[2]

	scriptHash := crypto.Sha256(witnessScript)
	if len(addr.WitnessProgram) != 32 || !bytes.Equal(scriptHash[:], addr.WitnessProgram) {
		return nil, false
	}

	sighash := segwitV0SigHash(toSign, witnessScript)

	pub, ok := recoverFromWitness(sighash, witness[:2], nil)
	if !ok {
		return nil, false
	}
	return pub, true
}

// recoverFromWitness implements §4.3 step 5: a 65-byte compact signature
// recovers directly; any other length is parsed as DER and all 4 recids are
// tried since DER carries no recovery id, returning the first recovered key
// that accept approves (the first recovered key at all when accept is nil).
func recoverFromWitness(sighash [32]byte, witness [][]byte, accept func([]byte) bool) ([]byte, bool) {
	if len(witness) < 1 {
		return nil, false
	}
	sig := witness[0]

	if len(sig) == 65 {
		header := sig[0]
		recid := (header - 27) & 0x03
		compressed := (header-27)&4 != 0

		var sig64 [64]byte
		copy(sig64[:], sig[1:])
		return crypto.Secp256k1Recover(sighash, sig64, recid, compressed)
	}

	der, err := ParseDERStrict(sig)
	if err != nil {
		der, err = ParseDERRelaxed(sig)
		if err != nil {
			return nil, false
		}
	}

	sig64, ok := derToFixed64(der)
	if !ok {
		return nil, false
	}

	for recid := uint8(0); recid < 4; recid++ {
		for _, compressed := range [2]bool{true, false} {
			if pub, ok := crypto.Secp256k1Recover(sighash, sig64, recid, compressed); ok && (accept == nil || accept(pub)) {
				return pub, true
			}
		}
	}
	return nil, false
}

// derToFixed64 left-pads r and s to 32 bytes each, stripping any leading
// 0x00 sign-disambiguation byte DER integers carry.
func derToFixed64(der DERSignature) ([64]byte, bool) {
	var out [64]byte
	r := stripLeadingZero(der.R)
	s := stripLeadingZero(der.S)
	if len(r) > 32 || len(s) > 32 {
		return out, false
	}
	copy(out[32-len(r):32], r)
	copy(out[64-len(s):64], s)
	return out, true
}

func stripLeadingZero(b []byte) []byte {
	for len(b) > 1 && b[0] == 0x00 {
		b = b[1:]
	}
	return b
}

// addressMatches implements §4.3 step 6: the recovered pubkey must hash to
// the address's pubkey-hash for P2PKH/P2WPKH addresses.
func addressMatches(addr Address, pubkey []byte) bool {
	switch addr.Kind {
	case AddressP2PKH, AddressP2SH:
		return crypto.Hash160(pubkey) == addr.Hash160
	case AddressSegwit:
		if addr.IsP2WPKH() {
			return crypto.Hash160(pubkey) == addr.Hash160
		}
		// P2WSH address-matching is delegated to the witness-script
		// hash check in verifyP2WSH; a bare pubkey never matches a
		// P2WSH address directly.
		return false
	default:
		return false
	}
}

package btcmsg

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/txscript"

	"github.com/defuse-protocol/intents-settle/crypto"
)

// AddressKind discriminates the address types §4.2's address-parsing rules
// describe.
type AddressKind uint8

const (
	AddressP2PKH AddressKind = iota
	AddressP2SH
	AddressSegwit
)

const (
	mainnetP2PKHVersion = 0x00
	mainnetP2SHVersion  = 0x05
	segwitHRP           = "bc"
)

// Address is a parsed Bitcoin address of any supported type, reduced to the
// pieces the verifier needs: how to build its scriptPubKey and, for
// hash-based types, the 20-byte pubkey hash to match a recovered key
// against.
type Address struct {
	Kind AddressKind

	// Hash160 is the 20-byte pubkey/script hash for P2PKH, P2SH, and
	// P2WPKH. Unset for other witness program lengths.
	Hash160 [20]byte

	// WitnessVersion and WitnessProgram apply only when Kind ==
	// AddressSegwit.
	WitnessVersion byte
	WitnessProgram []byte
}

// ParseAddress parses a legacy (base58check) or segwit (bech32/bech32m)
// mainnet Bitcoin address, per §4.2's address-parsing rules. Testnet
// version bytes and non-"bc" HRPs are rejected.
func ParseAddress(addr string) (Address, error) {
	if looksBech32(addr) {
		return parseSegwitAddress(addr)
	}
	return parseLegacyAddress(addr)
}

func looksBech32(addr string) bool {
	// bech32/bech32m addresses are lowercase (or uppercase) and contain
	// no base58-illegal characters overlap issue; the simplest reliable
	// discriminator is the "bc1" human-readable prefix used by every
	// segwit address on mainnet.
	return len(addr) >= 3 && (addr[:3] == "bc1" || addr[:3] == "BC1")
}

func parseLegacyAddress(addr string) (Address, error) {
	decoded, version, err := base58CheckDecode(addr)
	if err != nil {
		return Address{}, fmt.Errorf("btcmsg: legacy address: %w", err)
	}
	if len(decoded) != 20 {
		return Address{}, fmt.Errorf("btcmsg: legacy address: expected 20-byte hash, got %d", len(decoded))
	}

	var kind AddressKind
	switch version {
	case mainnetP2PKHVersion:
		kind = AddressP2PKH
	case mainnetP2SHVersion:
		kind = AddressP2SH
	default:
		return Address{}, fmt.Errorf("btcmsg: legacy address: unsupported/testnet version byte 0x%02x", version)
	}

	var hash [20]byte
	copy(hash[:], decoded)
	return Address{Kind: kind, Hash160: hash}, nil
}

// base58CheckDecode decodes a base58check string into (payload, version),
// verifying the 4-byte double-SHA256 checksum per §4.2: 25 bytes total =
// version || hash20 || checksum4.
func base58CheckDecode(s string) (payload []byte, version byte, err error) {
	raw := base58.Decode(s)
	if len(raw) != 25 {
		return nil, 0, fmt.Errorf("expected 25-byte decoding, got %d", len(raw))
	}

	body := raw[:21]
	checksum := raw[21:]
	want := crypto.Dsha256(body)
	if !bytes.Equal(want[:4], checksum) {
		return nil, 0, fmt.Errorf("checksum mismatch")
	}

	return raw[1:21], raw[0], nil
}

func parseSegwitAddress(addr string) (Address, error) {
	hrp, data, version, err := decodeSegwit(addr)
	if err != nil {
		return Address{}, fmt.Errorf("btcmsg: segwit address: %w", err)
	}
	if hrp != segwitHRP {
		return Address{}, fmt.Errorf("btcmsg: segwit address: unsupported HRP %q (only %q accepted)", hrp, segwitHRP)
	}

	switch {
	case version == 0:
		if len(data) != 20 && len(data) != 32 {
			return Address{}, fmt.Errorf("btcmsg: segwit v0: program must be 20 or 32 bytes, got %d", len(data))
		}
	case version >= 1 && version <= 16:
		if len(data) < 2 || len(data) > 40 {
			return Address{}, fmt.Errorf("btcmsg: segwit v%d: program must be 2-40 bytes, got %d", version, len(data))
		}
	default:
		return Address{}, fmt.Errorf("btcmsg: segwit: witness version %d not accepted", version)
	}

	out := Address{Kind: AddressSegwit, WitnessVersion: version, WitnessProgram: data}
	if version == 0 && len(data) == 20 {
		copy(out.Hash160[:], data)
	}
	return out, nil
}

// decodeSegwit decodes a bech32 (witness v0) or bech32m (witness v1+)
// address into (hrp, program, witnessVersion).
func decodeSegwit(addr string) (hrp string, program []byte, version byte, err error) {
	rawHRP, data, encoding, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return "", nil, 0, err
	}
	if len(data) < 1 {
		return "", nil, 0, fmt.Errorf("empty bech32 payload")
	}

	witVersion := data[0]
	switch {
	case witVersion == 0 && encoding != bech32.Bech32:
		return "", nil, 0, fmt.Errorf("witness v0 must use bech32, not bech32m")
	case witVersion != 0 && encoding != bech32.Bech32m:
		return "", nil, 0, fmt.Errorf("witness v%d must use bech32m, not bech32", witVersion)
	}

	converted, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return "", nil, 0, fmt.Errorf("convert bits: %w", err)
	}

	return rawHRP, converted, witVersion, nil
}

// ScriptPubKey builds the scriptPubKey the BIP-322 to_spend output commits
// to, per §4.3 step 2.
func (a Address) ScriptPubKey() ([]byte, error) {
	switch a.Kind {
	case AddressP2PKH:
		b := txscript.NewScriptBuilder()
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_HASH160)
		b.AddData(a.Hash160[:])
		b.AddOp(txscript.OP_EQUALVERIFY)
		b.AddOp(txscript.OP_CHECKSIG)
		return b.Script()

	case AddressP2SH:
		b := txscript.NewScriptBuilder()
		b.AddOp(txscript.OP_HASH160)
		b.AddData(a.Hash160[:])
		b.AddOp(txscript.OP_EQUAL)
		return b.Script()

	case AddressSegwit:
		b := txscript.NewScriptBuilder()
		b.AddOp(witnessVersionOpcode(a.WitnessVersion))
		b.AddData(a.WitnessProgram)
		return b.Script()

	default:
		return nil, fmt.Errorf("btcmsg: unknown address kind %d", a.Kind)
	}
}

func witnessVersionOpcode(version byte) byte {
	if version == 0 {
		return txscript.OP_0
	}
	// OP_1..OP_16 are contiguous starting at txscript.OP_1.
	return txscript.OP_1 + (version - 1)
}

// IsP2WPKH reports whether a is a version-0, 20-byte-program segwit address.
func (a Address) IsP2WPKH() bool {
	return a.Kind == AddressSegwit && a.WitnessVersion == 0 && len(a.WitnessProgram) == 20
}

// IsP2WSH reports whether a is a version-0, 32-byte-program segwit address.
func (a Address) IsP2WSH() bool {
	return a.Kind == AddressSegwit && a.WitnessVersion == 0 && len(a.WitnessProgram) == 32
}

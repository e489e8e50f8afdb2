package btcmsg

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/defuse-protocol/intents-settle/crypto"
)

const bip322Tag = "BIP0322-signed-message"

// sighashAll is SIGHASH_ALL, appended little-endian to the legacy sighash
// preimage per §4.3 step 4.
const sighashAll uint32 = 0x01

// taggedDigest computes §4.3 step 1's BIP-322-tagged digest:
//
//	h = dsha256(tag_hash(tag) || tag_hash(tag) || message)
//
// with tag_hash(t) = sha256(t), following spec.md's literal formula rather
// than the single-SHA256 BIP-340 tagged-hash convention some wallets use.
func taggedDigest(tag string, message []byte) [32]byte {
	tagHash := crypto.Sha256([]byte(tag))

	preimage := make([]byte, 0, 32+32+len(message))
	preimage = append(preimage, tagHash[:]...)
	preimage = append(preimage, tagHash[:]...)
	preimage = append(preimage, message...)

	return crypto.Dsha256(preimage)
}

// buildToSpend constructs the synthetic to_spend transaction of §4.3 step 2:
// a single input spending a virtual all-zero outpoint with script_sig
// OP_0 PUSH32 <h>, and a single zero-value output paying addr.
func buildToSpend(addr Address, h [32]byte) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(0)

	scriptSig, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
	if err != nil {
		return nil, err
	}

	prevOut := wire.NewOutPoint(&chainhash.Hash{}, 0xFFFFFFFF)
	txIn := wire.NewTxIn(prevOut, scriptSig, nil)
	txIn.Sequence = 0
	tx.AddTxIn(txIn)

	pkScript, err := addr.ScriptPubKey()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, pkScript))

	return tx, nil
}

// buildToSign constructs the synthetic to_sign transaction of §4.3 step 3:
// a single input spending to_spend's only output, carrying the candidate
// witness, and a single zero-value OP_RETURN output.
func buildToSign(toSpendTxID chainhash.Hash, witness wire.TxWitness) *wire.MsgTx {
	tx := wire.NewMsgTx(0)

	prevOut := wire.NewOutPoint(&toSpendTxID, 0)
	txIn := wire.NewTxIn(prevOut, nil, nil)
	txIn.Sequence = 0
	txIn.Witness = witness
	tx.AddTxIn(txIn)

	opReturnScript, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).Script()
	tx.AddTxOut(wire.NewTxOut(0, opReturnScript))

	return tx
}

// legacySigHash computes the legacy (pre-segwit) sighash of §4.3 step 4's
// first bullet: serialize to_sign with its single input's script_sig
// replaced by addrScript, append SIGHASH_ALL little-endian, dsha256.
func legacySigHash(toSign *wire.MsgTx, addrScript []byte) ([32]byte, error) {
	clone := toSign.Copy()
	clone.TxIn[0].SignatureScript = addrScript
	clone.TxIn[0].Witness = nil

	var buf bytes.Buffer
	if err := clone.Serialize(&buf); err != nil {
		return [32]byte{}, err
	}
	buf.Write(leUint32(sighashAll))

	return crypto.Dsha256(buf.Bytes()), nil
}

// segwitV0SigHash computes the BIP-143 sighash of §4.3 step 4's second
// bullet for P2WPKH/P2WSH inputs:
//
//	version || hashPrevouts || hashSequence || outpoint || scriptCode ||
//	amount(0) || sequence || hashOutputs || locktime || sighash_type
//
// hand-built against the literal preimage formula rather than a single
// txscript helper, because the exact witness-sighash entry point's
// signature (PrevOutputFetcher vs plain amount) has shifted across btcd
// releases and the BIP-322 to_spend/to_sign pair always has exactly one
// input/output, making the manual construction both simpler and
// version-stable.
func segwitV0SigHash(toSign *wire.MsgTx, scriptCode []byte) [32]byte {
	txIn := toSign.TxIn[0]
	txOut := toSign.TxOut[0]

	hashPrevouts := crypto.Dsha256(serializeOutPoint(txIn.PreviousOutPoint))
	hashSequence := crypto.Dsha256(leUint32(txIn.Sequence))
	hashOutputs := crypto.Dsha256(serializeTxOut(txOut))

	var preimage []byte
	preimage = append(preimage, leUint32(uint32(toSign.Version))...)
	preimage = append(preimage, hashPrevouts[:]...)
	preimage = append(preimage, hashSequence[:]...)
	preimage = append(preimage, serializeOutPoint(txIn.PreviousOutPoint)...)
	preimage = append(preimage, WriteVarInt(uint64(len(scriptCode)))...)
	preimage = append(preimage, scriptCode...)
	preimage = append(preimage, leUint64(0)...) // amount is always 0, §4.3 step 2/3
	preimage = append(preimage, leUint32(txIn.Sequence)...)
	preimage = append(preimage, hashOutputs[:]...)
	preimage = append(preimage, leUint32(toSign.LockTime)...)
	preimage = append(preimage, leUint32(sighashAll)...)

	return crypto.Dsha256(preimage)
}

// p2wpkhScriptCode builds the implied P2PKH scriptCode BIP-143 substitutes
// for a P2WPKH input's witness program.
func p2wpkhScriptCode(pubKeyHash [20]byte) []byte {
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_DUP)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(pubKeyHash[:])
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_CHECKSIG)
	script, _ := b.Script()
	return script
}

func serializeOutPoint(op wire.OutPoint) []byte {
	out := make([]byte, 36)
	copy(out[:32], op.Hash[:])
	binary.LittleEndian.PutUint32(out[32:], op.Index)
	return out
}

func serializeTxOut(out *wire.TxOut) []byte {
	buf := make([]byte, 0, 8+9+len(out.PkScript))
	buf = append(buf, leUint64(uint64(out.Value))...)
	buf = append(buf, WriteVarInt(uint64(len(out.PkScript)))...)
	buf = append(buf, out.PkScript...)
	return buf
}

func leUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func leUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

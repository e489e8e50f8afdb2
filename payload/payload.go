// Package payload implements payload extraction (C2, §4.2): the four
// accepted signing standards, each verified by its own cryptography, all
// reduced to the same intents.DefusePayload before the engine ever sees
// them. The wire "message" field is, in every standard, the canonical JSON
// encoding of the DefusePayload itself; what differs per standard is only
// how the bytes of that message are hashed, signed, and whose key signs
// them.
package payload

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tv42/zbase32"

	"github.com/defuse-protocol/intents-settle/btcmsg"
	"github.com/defuse-protocol/intents-settle/crypto"
	"github.com/defuse-protocol/intents-settle/intents"
)

// Standard identifies one of the four accepted signing standards.
type Standard string

const (
	// StandardNep413 is the structured, domain-separated Ed25519 standard
	// (§4.2a).
	StandardNep413 Standard = "nep413"
	// StandardPersonalSign is the raw personal-message Secp256k1 standard
	// (§4.2b).
	StandardPersonalSign Standard = "erc191"
	// StandardBitcoinCompact is compact Bitcoin message signing (§4.2c).
	StandardBitcoinCompact Standard = "bitcoin_compact"
	// StandardBitcoinBip322 is the full BIP-322 witness standard (§4.2d).
	StandardBitcoinBip322 Standard = "bitcoin_bip322"
)

// nep413DomainTag is hashed to the 32-byte domain-separation prefix of
// §4.2a. Changing it would invalidate every previously signed nep413
// envelope, so it is pinned here rather than made configurable.
const nep413DomainTag = "defuse-envelope-nep413-v1"

// personalMessagePrefix is the ERC-191-style personal-sign prefix of
// §4.2b, parameterized by host name.
const personalMessagePrefix = "\x19%sSigned Message:\n%d"

// RawEnvelope is the wire shape common to all four standards (§6 "Envelope
// wire format").
type RawEnvelope struct {
	Standard  Standard `json:"standard"`
	Message   string   `json:"message"`
	Signature string   `json:"signature"`
	PublicKey string   `json:"public_key,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Address   string   `json:"address,omitempty"`
	Witness   []string `json:"witness,omitempty"`
	Host      string   `json:"host,omitempty"`
}

// Extract verifies raw's signature per its standard and decodes its message
// into a DefusePayload, returning ErrInvalidSignature,
// ErrUnsupportedStandard, ErrMalformedEnvelope, or ErrAddressMismatch on
// failure, per §4.2's extraction contract.
func Extract(rawEnvelope []byte) (intents.DefusePayload, error) {
	var env RawEnvelope
	if err := json.Unmarshal(rawEnvelope, &env); err != nil {
		return intents.DefusePayload{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	signature, err := hex.DecodeString(env.Signature)
	if err != nil {
		return intents.DefusePayload{}, fmt.Errorf("%w: signature: %v", ErrMalformedEnvelope, err)
	}

	message := []byte(env.Message)

	var signerID string
	switch env.Standard {
	case StandardNep413:
		signerID, err = verifyNep413(env, message, signature)
	case StandardPersonalSign:
		signerID, err = verifyPersonalSign(env, message, signature)
	case StandardBitcoinCompact:
		signerID, err = verifyBitcoinCompact(env, message, signature)
	case StandardBitcoinBip322:
		signerID, err = verifyBitcoinBip322(env, message)
	default:
		return intents.DefusePayload{}, fmt.Errorf("%w: %q", ErrUnsupportedStandard, env.Standard)
	}
	if err != nil {
		return intents.DefusePayload{}, err
	}

	payload, err := intents.DecodeMessage(message)
	if err != nil {
		return intents.DefusePayload{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if payload.SignerID == "" {
		payload.SignerID = signerID
	} else if payload.SignerID != signerID {
		return intents.DefusePayload{}, ErrAddressMismatch
	}

	return payload, nil
}

// debugSignerTag renders a recovered public key as zbase32, a
// human-typeable alphabet that avoids visually ambiguous characters. Used
// only in debug log lines (§0.1's Debug level for envelope extraction),
// never on the wire or in any signer_id the engine actually stores.
func debugSignerTag(pubKey []byte) string {
	return zbase32.EncodeToString(pubKey)
}

func verifyNep413(env RawEnvelope, message, signature []byte) (string, error) {
	pubKey, err := hex.DecodeString(env.PublicKey)
	if err != nil || len(pubKey) != 32 {
		return "", fmt.Errorf("%w: public_key", ErrMalformedEnvelope)
	}
	if len(signature) != 64 {
		return "", fmt.Errorf("%w: nep413 signature must be 64 bytes", ErrMalformedEnvelope)
	}

	tag := crypto.Sha256([]byte(nep413DomainTag))
	preimage := make([]byte, 0, 32+len(env.Recipient)+len(message))
	preimage = append(preimage, tag[:]...)
	preimage = append(preimage, env.Recipient...)
	preimage = append(preimage, message...)
	digest := crypto.Sha256(preimage)

	if !crypto.Ed25519Verify(pubKey, digest[:], signature) {
		return "", ErrInvalidSignature
	}
	log.Debugf("nep413 envelope verified for signer %s", debugSignerTag(pubKey))
	return "ed25519:" + hex.EncodeToString(pubKey), nil
}

func verifyPersonalSign(env RawEnvelope, message, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("%w: personal-sign signature must be 65 bytes", ErrMalformedEnvelope)
	}

	host := env.Host
	if host == "" {
		host = "Ethereum "
	}
	prefixed := []byte(fmt.Sprintf(personalMessagePrefix, host, len(message)))
	prefixed = append(prefixed, message...)
	digest := crypto.Keccak256(prefixed)

	recid := signature[64]
	if recid >= 27 {
		recid -= 27
	}
	var sig64 [64]byte
	copy(sig64[:], signature[:64])

	pubKey, ok := crypto.Secp256k1Recover(digest, sig64, recid&0x03, false)
	if !ok {
		return "", ErrInvalidSignature
	}

	// Ethereum-style address: last 20 bytes of keccak256 of the
	// uncompressed public key's X||Y (dropping the leading 0x04 prefix).
	addrHash := crypto.Keccak256(pubKey[1:])
	return "0x" + hex.EncodeToString(addrHash[12:]), nil
}

func verifyBitcoinCompact(env RawEnvelope, message, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("%w: compact signature must be 65 bytes", ErrMalformedEnvelope)
	}
	addr, err := btcmsg.ParseAddress(env.Address)
	if err != nil {
		return "", fmt.Errorf("%w: address: %v", ErrMalformedEnvelope, err)
	}

	_, ok := btcmsg.VerifyCompact(addr, message, signature)
	if !ok {
		return "", ErrInvalidSignature
	}
	return env.Address, nil
}

func verifyBitcoinBip322(env RawEnvelope, message []byte) (string, error) {
	addr, err := btcmsg.ParseAddress(env.Address)
	if err != nil {
		return "", fmt.Errorf("%w: address: %v", ErrMalformedEnvelope, err)
	}

	witness := make([][]byte, 0, len(env.Witness))
	for _, item := range env.Witness {
		b, err := hex.DecodeString(item)
		if err != nil {
			return "", fmt.Errorf("%w: witness item: %v", ErrMalformedEnvelope, err)
		}
		witness = append(witness, b)
	}

	_, ok := btcmsg.Verify(addr, message, witness)
	if !ok {
		return "", ErrInvalidSignature
	}
	return env.Address, nil
}

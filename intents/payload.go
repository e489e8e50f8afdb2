package intents

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Deadline is either an absolute Unix-nanosecond timestamp or one of the
// sentinel values Never/Max from §6's wire format.
type Deadline struct {
	// Sentinel, when non-empty, is "Never" or "Max" and Unix is ignored.
	Sentinel string
	Unix     int64
}

// NeverDeadline never expires.
func NeverDeadline() Deadline { return Deadline{Sentinel: "Never"} }

// MaxDeadline is the maximum representable absolute deadline.
func MaxDeadline() Deadline { return Deadline{Sentinel: "Max"} }

// AtUnix constructs an absolute deadline.
func AtUnix(unixNanos int64) Deadline { return Deadline{Unix: unixNanos} }

// Expired reports whether the deadline has passed as of now (Unix nanos).
// Never/Max deadlines never expire.
func (d Deadline) Expired(nowUnixNanos int64) bool {
	if d.Sentinel == "Never" || d.Sentinel == "Max" {
		return false
	}
	return nowUnixNanos > d.Unix
}

// MarshalJSON renders the sentinel form when set, else the numeric
// timestamp, matching §6's "absolute timestamp or sentinel Never/Max".
func (d Deadline) MarshalJSON() ([]byte, error) {
	if d.Sentinel != "" {
		return json.Marshal(d.Sentinel)
	}
	return json.Marshal(d.Unix)
}

// UnmarshalJSON accepts either a JSON string sentinel or a JSON number.
func (d *Deadline) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		if asString != "Never" && asString != "Max" {
			return fmt.Errorf("deadline: unknown sentinel %q", asString)
		}
		d.Sentinel = asString
		d.Unix = 0
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(b, &asNumber); err != nil {
		return fmt.Errorf("deadline: not a sentinel or number: %w", err)
	}
	d.Sentinel = ""
	d.Unix = asNumber
	return nil
}

// DefusePayload is the uniform output of payload extraction (§3, §4.2): the
// common shape every signing standard's envelope is reduced to before the
// execution engine ever sees it.
type DefusePayload struct {
	SignerID           string
	VerifyingContract  string
	Deadline           Deadline
	Nonce              [32]byte
	SaltEpochHint      *uint32
	Intents            []Intent
}

// defusePayloadDoc is the canonical-JSON wire shape of the "message" field
// that every envelope standard signs over. Field order in the struct is
// irrelevant to wire correctness here: per §4.2a the implementation hashes
// the exact signed bytes, never a re-serialized version, so this type is
// only ever used to decode an already-received byte string, not to
// reconstruct the signed preimage.
type defusePayloadDoc struct {
	SignerID          string          `json:"signer_id"`
	VerifyingContract string          `json:"verifying_contract"`
	Deadline          Deadline        `json:"deadline"`
	Nonce             string          `json:"nonce"`
	SaltEpochHint     *uint32         `json:"salt_epoch_hint,omitempty"`
	Intents           json.RawMessage `json:"intents"`
}

// DecodeMessage parses the canonical-JSON message bytes of an envelope into
// a DefusePayload, including signer_id, verifying_contract and nonce when the
// JSON carries them (fields the JSON omits are left zero). payload.Extract
// fills in SignerID from the verified key when the message leaves it empty
// and rejects a message whose signer_id differs; no other field is derived
// outside the message.
func DecodeMessage(raw []byte) (DefusePayload, error) {
	var doc defusePayloadDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return DefusePayload{}, fmt.Errorf("intents: malformed message: %w", err)
	}

	intentList, err := UnmarshalIntents(doc.Intents)
	if err != nil {
		return DefusePayload{}, err
	}

	payload := DefusePayload{
		SignerID:          doc.SignerID,
		VerifyingContract: doc.VerifyingContract,
		Deadline:          doc.Deadline,
		SaltEpochHint:     doc.SaltEpochHint,
		Intents:           intentList,
	}

	if doc.Nonce != "" {
		nonceBytes, err := decodeHex32(doc.Nonce)
		if err != nil {
			return DefusePayload{}, fmt.Errorf("intents: nonce: %w", err)
		}
		payload.Nonce = nonceBytes
	}

	return payload, nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32-byte hex string, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}

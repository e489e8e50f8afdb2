// Package events defines the event taxonomy of §6: every observable effect
// the engine produces, tagged with a stable name. Events emitted while an
// envelope's intents are applied are bound to that envelope via IntentHash;
// batch-level events (IntentsExecuted and the Transfer events the matcher
// produces at finalize) and events from operations outside an envelope carry
// no intent hash. New fields are added behind a version
// bump; existing shapes never change, mirroring the backward-compatibility
// rule channel event notifications follow elsewhere in this stack.
package events

import "lukechampine.com/uint128"

// Event is implemented by every event the engine can emit.
type Event interface {
	// Tag is the stable, namespaced event name (e.g. "public_key_added").
	Tag() string
}

// Envelope fields common to every event the engine emits for one batch.
type base struct {
	IntentHash string `json:"intent_hash"`
}

func (b base) hash() string { return b.IntentHash }

type PublicKeyAdded struct {
	base
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
}

func (PublicKeyAdded) Tag() string { return "public_key_added" }

type PublicKeyRemoved struct {
	base
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
}

func (PublicKeyRemoved) Tag() string { return "public_key_removed" }

type SetAuthByPredecessorId struct {
	base
	AccountID string `json:"account_id"`
	Enabled   bool   `json:"enabled"`
}

func (SetAuthByPredecessorId) Tag() string { return "set_auth_by_predecessor_id" }

type AccountLocked struct {
	base
	AccountID string `json:"account_id"`
}

func (AccountLocked) Tag() string { return "account_locked" }

type AccountUnlocked struct {
	base
	AccountID string `json:"account_id"`
}

func (AccountUnlocked) Tag() string { return "account_unlocked" }

type Transfer struct {
	base
	Sender   string          `json:"sender_id"`
	Receiver string          `json:"receiver_id"`
	TokenID  string          `json:"token_id"`
	Amount   uint128.Uint128 `json:"amount"`
	Memo     string          `json:"memo,omitempty"`
}

func (Transfer) Tag() string { return "transfer" }

type TokenDiff struct {
	base
	AccountID string            `json:"account_id"`
	Diff      map[string]string `json:"diff"`
}

func (TokenDiff) Tag() string { return "token_diff" }

// IntentsExecuted is emitted once per batch, binding every signer/nonce
// pair that was committed to the batch's envelopes, per §4.6.
type IntentsExecuted struct {
	Entries []ExecutedEntry `json:"entries"`
}

func (IntentsExecuted) Tag() string { return "intents_executed" }

type ExecutedEntry struct {
	SignerID     string `json:"signer_id"`
	Nonce        string `json:"nonce"`
	EnvelopeHash string `json:"envelope_hash"`
}

type FtWithdraw struct {
	base
	Sender   string          `json:"sender_id"`
	TokenID  string          `json:"token_id"`
	Amount   uint128.Uint128 `json:"amount"`
	Receiver string          `json:"receiver_id"`
}

func (FtWithdraw) Tag() string { return "ft_withdraw" }

type NftWithdraw struct {
	base
	Sender   string `json:"sender_id"`
	TokenID  string `json:"token_id"`
	ItemID   string `json:"token_ids"`
	Receiver string `json:"receiver_id"`
}

func (NftWithdraw) Tag() string { return "nft_withdraw" }

type MtWithdraw struct {
	base
	Sender   string            `json:"sender_id"`
	Contract string            `json:"token_contract"`
	TokenIDs []string          `json:"token_ids"`
	Amounts  []uint128.Uint128 `json:"amounts"`
	Receiver string            `json:"receiver_id"`
}

func (MtWithdraw) Tag() string { return "mt_withdraw" }

type NativeWithdraw struct {
	base
	Sender   string          `json:"sender_id"`
	Amount   uint128.Uint128 `json:"amount"`
	Receiver string          `json:"receiver_id"`
}

func (NativeWithdraw) Tag() string { return "native_withdraw" }

type StorageDeposit struct {
	base
	Sender   string          `json:"sender_id"`
	Amount   uint128.Uint128 `json:"amount"`
	Receiver string          `json:"receiver_id"`
}

func (StorageDeposit) Tag() string { return "storage_deposit" }

type FeeChanged struct {
	OldPips uint32 `json:"old_fee_pips"`
	NewPips uint32 `json:"new_fee_pips"`
}

func (FeeChanged) Tag() string { return "fee_changed" }

type FeeCollectorChanged struct {
	Old string `json:"old_collector_id"`
	New string `json:"new_collector_id"`
}

func (FeeCollectorChanged) Tag() string { return "fee_collector_changed" }

// SaltRotation is emitted whenever the current salt epoch is rotated,
// releasing the previous epoch's nonces implicitly (§4.4 Nonces).
type SaltRotation struct {
	Current      uint32   `json:"current"`
	Invalidated  []uint32 `json:"invalidated"`
}

func (SaltRotation) Tag() string { return "salt_rotation" }

type ImtMint struct {
	base
	AccountID string          `json:"account_id"`
	TokenID   string          `json:"token_id"`
	Amount    uint128.Uint128 `json:"amount"`
}

func (ImtMint) Tag() string { return "imt_mint" }

type ImtBurn struct {
	base
	AccountID string          `json:"account_id"`
	TokenID   string          `json:"token_id"`
	Amount    uint128.Uint128 `json:"amount"`
}

func (ImtBurn) Tag() string { return "imt_burn" }

// TokenRefund is emitted by the cross-contract resolver (C7) when a
// deferred transfer is partially or fully refunded back to the sender.
type TokenRefund struct {
	base
	AccountID string          `json:"account_id"`
	TokenID   string          `json:"token_id"`
	Amount    uint128.Uint128 `json:"amount"`
}

func (TokenRefund) Tag() string { return "token_refund" }

// WithIntentHash returns a copy of e with its IntentHash set, if e embeds
// base. Event types that don't carry a per-envelope hash (IntentsExecuted,
// FeeChanged, FeeCollectorChanged, SaltRotation) are returned unchanged.
func WithIntentHash(e Event, hash string) Event {
	switch v := e.(type) {
	case PublicKeyAdded:
		v.IntentHash = hash
		return v
	case PublicKeyRemoved:
		v.IntentHash = hash
		return v
	case SetAuthByPredecessorId:
		v.IntentHash = hash
		return v
	case AccountLocked:
		v.IntentHash = hash
		return v
	case AccountUnlocked:
		v.IntentHash = hash
		return v
	case Transfer:
		v.IntentHash = hash
		return v
	case TokenDiff:
		v.IntentHash = hash
		return v
	case FtWithdraw:
		v.IntentHash = hash
		return v
	case NftWithdraw:
		v.IntentHash = hash
		return v
	case MtWithdraw:
		v.IntentHash = hash
		return v
	case NativeWithdraw:
		v.IntentHash = hash
		return v
	case StorageDeposit:
		v.IntentHash = hash
		return v
	case ImtMint:
		v.IntentHash = hash
		return v
	case ImtBurn:
		v.IntentHash = hash
		return v
	case TokenRefund:
		v.IntentHash = hash
		return v
	default:
		return e
	}
}

// Package intents defines the Intent tagged union (§3) and the DefusePayload
// that every signing standard in package payload extracts into. Intents
// carry no implicit signer — the signer always comes from the enclosing
// envelope, exactly as spec.md §3 requires.
package intents

import (
	"encoding/json"
	"fmt"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

// Kind discriminates the Intent tagged union. JSON payloads carry the kind
// under the "intent" field, the same discriminator-field idiom lnwire's
// MessageType gives each wire message, just carried over JSON instead of a
// fixed binary header.
type Kind string

const (
	KindAddPublicKey          Kind = "add_public_key"
	KindRemovePublicKey       Kind = "remove_public_key"
	KindSetAuthByPredecessor  Kind = "set_auth_by_predecessor"
	KindTransfer              Kind = "transfer"
	KindTokenDiff             Kind = "token_diff"
	KindFtWithdraw            Kind = "ft_withdraw"
	KindNftWithdraw           Kind = "nft_withdraw"
	KindMtWithdraw            Kind = "mt_withdraw"
	KindNativeWithdraw        Kind = "native_withdraw"
	KindStorageDeposit        Kind = "storage_deposit"
	KindAuthCall              Kind = "auth_call"
	KindImtMint               Kind = "imt_mint"
	KindImtBurn               Kind = "imt_burn"
)

// Intent is implemented by every concrete intent variant.
type Intent interface {
	Kind() Kind
}

// PublicKey is a (curve-tag, key-bytes) pair, matching the Account.public_keys
// element of §3.
type PublicKey struct {
	Curve string `json:"curve"`
	Key   []byte `json:"key"`
}

// AddPublicKey requests the signer's account gain pk as an authorized key.
type AddPublicKey struct {
	PK PublicKey `json:"public_key"`
}

func (AddPublicKey) Kind() Kind { return KindAddPublicKey }

// RemovePublicKey requests the signer's account drop pk.
type RemovePublicKey struct {
	PK PublicKey `json:"public_key"`
}

func (RemovePublicKey) Kind() Kind { return KindRemovePublicKey }

// SetAuthByPredecessor toggles whether a direct same-transaction call from
// the account authenticates without a signed envelope (§4.4).
type SetAuthByPredecessor struct {
	Enabled bool `json:"enabled"`
}

func (SetAuthByPredecessor) Kind() Kind { return KindSetAuthByPredecessor }

// Transfer moves tokens from the signer to receiver. Self-transfer and
// zero-amount transfers are invalid per §4.6 and are rejected by the engine,
// not by this type.
type Transfer struct {
	Receiver     string                    `json:"receiver_id"`
	Tokens       map[tokenid.TokenId]string `json:"tokens"`
	Memo         string                    `json:"memo,omitempty"`
	Notification string                    `json:"notification,omitempty"`
}

func (Transfer) Kind() Kind { return KindTransfer }

// TokenDiff is a declarative signed balance-change vector; see §4.5/§4.6 for
// the fee-adjusted closure-delta semantics and §8 scenario 2/3.
type TokenDiff struct {
	Diff     map[tokenid.TokenId]string `json:"diff"`
	Memo     string                    `json:"memo,omitempty"`
	Referral string                    `json:"referral,omitempty"`
}

func (TokenDiff) Kind() Kind { return KindTokenDiff }

// FtWithdraw withdraws a fungible token out to the host's token-contract
// surface via the cross-contract resolver (§4.7).
type FtWithdraw struct {
	Token          tokenid.TokenId `json:"token"`
	Receiver       string          `json:"receiver_id"`
	Amount         string          `json:"amount"`
	Memo           string          `json:"memo,omitempty"`
	Msg            string          `json:"msg,omitempty"`
	StorageDeposit string          `json:"storage_deposit,omitempty"`
	MinGas         uint64          `json:"min_gas,omitempty"`
}

func (FtWithdraw) Kind() Kind { return KindFtWithdraw }

// NftWithdraw withdraws a single non-fungible token.
type NftWithdraw struct {
	Token          tokenid.TokenId `json:"token"`
	Receiver       string          `json:"receiver_id"`
	TokenID        string          `json:"token_id"`
	Memo           string          `json:"memo,omitempty"`
	Msg            string          `json:"msg,omitempty"`
	StorageDeposit string          `json:"storage_deposit,omitempty"`
	MinGas         uint64          `json:"min_gas,omitempty"`
}

func (NftWithdraw) Kind() Kind { return KindNftWithdraw }

// MtWithdraw withdraws a batch of multi-token ids. len(TokenIDs) must equal
// len(Amounts) per §3's invariant; enforced by the engine, not this type.
type MtWithdraw struct {
	Token          tokenid.TokenId `json:"token"`
	Receiver       string          `json:"receiver_id"`
	TokenIDs       []string        `json:"token_ids"`
	Amounts        []string        `json:"amounts"`
	Memo           string          `json:"memo,omitempty"`
	Msg            string          `json:"msg,omitempty"`
	StorageDeposit string          `json:"storage_deposit,omitempty"`
	MinGas         uint64          `json:"min_gas,omitempty"`
}

func (MtWithdraw) Kind() Kind { return KindMtWithdraw }

// NativeWithdraw withdraws the host's native token (unwraps wnear).
type NativeWithdraw struct {
	Receiver string `json:"receiver_id"`
	Amount   string `json:"amount"`
}

func (NativeWithdraw) Kind() Kind { return KindNativeWithdraw }

// StorageDeposit debits the signer's wrapped-native balance to fund a
// storage deposit on a downstream token contract (§4.6).
type StorageDeposit struct {
	Contract  string `json:"contract_id"`
	ForAccount string `json:"account_id"`
	Amount    string `json:"amount"`
}

func (StorageDeposit) Kind() Kind { return KindStorageDeposit }

// AuthCall schedules a deferred call to an arbitrary contract with an
// attached native-token deposit, refunded to the signer on failure (§4.6).
type AuthCall struct {
	Contract        string `json:"contract_id"`
	StateInit       string `json:"state_init,omitempty"`
	Msg             string `json:"msg"`
	AttachedDeposit string `json:"attached_deposit"`
	MinGas          uint64 `json:"min_gas,omitempty"`
}

func (AuthCall) Kind() Kind { return KindAuthCall }

// ImtMint mints an off-ledger accounting amount that never touches the
// transfer matcher (§4.6).
type ImtMint struct {
	Token  tokenid.TokenId `json:"token"`
	Amount string          `json:"amount"`
}

func (ImtMint) Kind() Kind { return KindImtMint }

// ImtBurn burns an off-ledger accounting amount.
type ImtBurn struct {
	Token  tokenid.TokenId `json:"token"`
	Amount string          `json:"amount"`
}

func (ImtBurn) Kind() Kind { return KindImtBurn }

// envelopeDoc is the wire shape of a single intent entry: the discriminator
// plus the raw fields, decoded in two passes exactly as lnwire decodes a
// MessageType header before dispatching to the concrete message's Decode.
type envelopeDoc struct {
	Intent Kind            `json:"intent"`
	Fields json.RawMessage `json:"-"`
}

// UnmarshalIntents decodes a JSON array of discriminated intent objects in
// declaration order, as produced by canonical-JSON serialization of a
// DefusePayload's message field (§4.2a).
func UnmarshalIntents(raw json.RawMessage) ([]Intent, error) {
	var rawList []json.RawMessage
	if err := json.Unmarshal(raw, &rawList); err != nil {
		return nil, fmt.Errorf("intents: malformed array: %w", err)
	}

	out := make([]Intent, 0, len(rawList))
	for i, item := range rawList {
		var disc struct {
			Intent Kind `json:"intent"`
		}
		if err := json.Unmarshal(item, &disc); err != nil {
			return nil, fmt.Errorf("intents[%d]: malformed: %w", i, err)
		}

		intent, err := decodeOne(disc.Intent, item)
		if err != nil {
			return nil, fmt.Errorf("intents[%d]: %w", i, err)
		}
		out = append(out, intent)
	}
	return out, nil
}

func decodeOne(kind Kind, raw json.RawMessage) (Intent, error) {
	var intent Intent
	switch kind {
	case KindAddPublicKey:
		intent = &AddPublicKey{}
	case KindRemovePublicKey:
		intent = &RemovePublicKey{}
	case KindSetAuthByPredecessor:
		intent = &SetAuthByPredecessor{}
	case KindTransfer:
		intent = &Transfer{}
	case KindTokenDiff:
		intent = &TokenDiff{}
	case KindFtWithdraw:
		intent = &FtWithdraw{}
	case KindNftWithdraw:
		intent = &NftWithdraw{}
	case KindMtWithdraw:
		intent = &MtWithdraw{}
	case KindNativeWithdraw:
		intent = &NativeWithdraw{}
	case KindStorageDeposit:
		intent = &StorageDeposit{}
	case KindAuthCall:
		intent = &AuthCall{}
	case KindImtMint:
		intent = &ImtMint{}
	case KindImtBurn:
		intent = &ImtBurn{}
	default:
		return nil, fmt.Errorf("unknown intent kind %q", kind)
	}

	if err := json.Unmarshal(raw, intent); err != nil {
		return nil, err
	}
	// intent was decoded into a pointer receiver; deref to the value form
	// so callers get value semantics matching the exported struct types.
	switch v := intent.(type) {
	case *AddPublicKey:
		return *v, nil
	case *RemovePublicKey:
		return *v, nil
	case *SetAuthByPredecessor:
		return *v, nil
	case *Transfer:
		return *v, nil
	case *TokenDiff:
		return *v, nil
	case *FtWithdraw:
		return *v, nil
	case *NftWithdraw:
		return *v, nil
	case *MtWithdraw:
		return *v, nil
	case *NativeWithdraw:
		return *v, nil
	case *StorageDeposit:
		return *v, nil
	case *AuthCall:
		return *v, nil
	case *ImtMint:
		return *v, nil
	case *ImtBurn:
		return *v, nil
	default:
		return nil, fmt.Errorf("unreachable intent kind %q", kind)
	}
}

// Package tokenid implements the TokenId tagged union of §3: a total-order,
// string-encoded identifier over fungible, non-fungible, and multi-token
// contracts. The textual encoding is bit-exact per §6: "<tag>:<contract>[:<id>]".
package tokenid

import (
	"fmt"
	"strings"
)

// Tag selects which standard a TokenId refers to.
type Tag uint8

const (
	// TagFt identifies a fungible-token contract (nep141-style).
	TagFt Tag = iota
	// TagNft identifies a single non-fungible token within a contract
	// (nep171-style).
	TagNft
	// TagMt identifies a multi-token id within a contract (nep245-style).
	TagMt
)

const (
	ftPrefix  = "nep141"
	nftPrefix = "nep171"
	mtPrefix  = "nep245"

	// maxIDLen is the maximum length in bytes of the NFT/MT id component,
	// per §3 and §8's round-trip property.
	maxIDLen = 127
)

func (t Tag) prefix() string {
	switch t {
	case TagFt:
		return ftPrefix
	case TagNft:
		return nftPrefix
	case TagMt:
		return mtPrefix
	default:
		return ""
	}
}

// TokenId is the tagged union over Ft(contract), Nft(contract, id),
// Mt(contract, id). The zero value is not a valid TokenId.
type TokenId struct {
	Tag      Tag
	Contract string
	// ID is empty for TagFt and otherwise the NFT/MT token id string,
	// length-bounded to maxIDLen bytes.
	ID string
}

// Ft constructs a fungible-token TokenId.
func Ft(contract string) TokenId {
	return TokenId{Tag: TagFt, Contract: contract}
}

// Nft constructs a non-fungible-token TokenId.
func Nft(contract, id string) TokenId {
	return TokenId{Tag: TagNft, Contract: contract, ID: id}
}

// Mt constructs a multi-token TokenId.
func Mt(contract, id string) TokenId {
	return TokenId{Tag: TagMt, Contract: contract, ID: id}
}

// Validate enforces the id-length invariant from §3/§8.
func (t TokenId) Validate() error {
	if t.Tag == TagFt {
		if t.ID != "" {
			return fmt.Errorf("tokenid: ft token must not carry an id")
		}
		return nil
	}
	if len(t.ID) == 0 {
		return fmt.Errorf("tokenid: %s token requires a non-empty id", t.Tag.prefix())
	}
	if len(t.ID) > maxIDLen {
		return fmt.Errorf("tokenid: id length %d exceeds max %d", len(t.ID), maxIDLen)
	}
	return nil
}

// String renders the bit-exact textual encoding of §6.
func (t TokenId) String() string {
	if t.Tag == TagFt {
		return fmt.Sprintf("%s:%s", ftPrefix, t.Contract)
	}
	return fmt.Sprintf("%s:%s:%s", t.Tag.prefix(), t.Contract, t.ID)
}

// MarshalText implements encoding.TextMarshaler so TokenId can be used as a
// JSON object key (the map<TokenId, ...> fields of §3's Intent variants).
func (t TokenId) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TokenId) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Less gives the total order over TokenId required by §3: first by tag, then
// by contract, then by id.
func (t TokenId) Less(other TokenId) bool {
	if t.Tag != other.Tag {
		return t.Tag < other.Tag
	}
	if t.Contract != other.Contract {
		return t.Contract < other.Contract
	}
	return t.ID < other.ID
}

// Parse decodes the textual encoding produced by String, validating the id
// length invariant. It is the inverse of String: Parse(t.String()) == t for
// any valid t.
func Parse(s string) (TokenId, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return TokenId{}, fmt.Errorf("tokenid: malformed encoding %q", s)
	}

	var tag Tag
	switch parts[0] {
	case ftPrefix:
		tag = TagFt
	case nftPrefix:
		tag = TagNft
	case mtPrefix:
		tag = TagMt
	default:
		return TokenId{}, fmt.Errorf("tokenid: unknown tag %q", parts[0])
	}

	contract := parts[1]
	if contract == "" {
		return TokenId{}, fmt.Errorf("tokenid: empty contract in %q", s)
	}

	var id TokenId
	switch tag {
	case TagFt:
		if len(parts) != 2 {
			return TokenId{}, fmt.Errorf("tokenid: ft encoding must not carry an id: %q", s)
		}
		id = Ft(contract)
	default:
		if len(parts) != 3 || parts[2] == "" {
			return TokenId{}, fmt.Errorf("tokenid: %q missing id component", s)
		}
		id = TokenId{Tag: tag, Contract: contract, ID: parts[2]}
	}

	if err := id.Validate(); err != nil {
		return TokenId{}, err
	}
	return id, nil
}

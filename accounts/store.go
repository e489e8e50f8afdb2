// Package accounts implements the account-state component (C4 / §4.4):
// public keys, used nonces, lock/auth-by-predecessor flags, and per-token
// balances, persisted through go.etcd.io/bbolt the way channeldb persists
// lnd's node and channel state. A bbolt read-write transaction doubles as
// the per-batch staging arena spec.md §9 asks for: the engine package opens
// one Update transaction per batch and either commits it or lets the
// closure's error roll it back whole.
package accounts

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

var (
	// accountMetaBucket maps accountID -> serialized Meta (locked,
	// auth_by_predecessor flags).
	accountMetaBucket = []byte("account-meta")

	// pubKeysBucket is a top-level bucket whose sub-bucket per account
	// maps (len(curve-tag) || curve-tag || key-bytes) -> 0x01 marker,
	// modeling the public_keys set of §3.
	pubKeysBucket = []byte("account-pubkeys")

	// noncesBucket sub-buckets per account map nonce(32) || saltEpoch(4
	// big-endian) -> 0x01 marker, so the same nonce is tracked separately
	// under each salt epoch.
	noncesBucket = []byte("account-nonces")

	// balancesBucket sub-buckets per account map TokenId string -> 16-byte
	// big-endian u128 balance.
	balancesBucket = []byte("account-balances")

	// saltBucket is a single top-level bucket holding the current salt
	// epoch and the set of invalidated ones.
	saltBucket     = []byte("salt-epoch")
	currentSaltKey = []byte("current")
)

// DB is the persistent account store.
type DB struct {
	bbolt *bbolt.DB
}

// Open opens (creating if necessary) the bbolt-backed account store at
// path, and ensures the top-level buckets exist.
func Open(path string) (*DB, error) {
	bdb, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("accounts: open %s: %w", path, err)
	}

	db := &DB{bbolt: bdb}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			accountMetaBucket, pubKeysBucket, noncesBucket,
			balancesBucket, saltBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("accounts: initialize buckets: %w", err)
	}

	return db, nil
}

// Close closes the underlying bbolt file.
func (db *DB) Close() error {
	return db.bbolt.Close()
}

// Update runs fn inside a single read-write bbolt transaction: fn's
// mutations all commit together if it returns nil, or revert as a whole if
// it returns an error. This is the staged-batch arena the engine package
// opens once per execute_intents/simulate_intents call.
func (db *DB) Update(fn func(tx *bbolt.Tx) error) error {
	return db.bbolt.Update(fn)
}

// View runs fn inside a read-only bbolt transaction.
func (db *DB) View(fn func(tx *bbolt.Tx) error) error {
	return db.bbolt.View(fn)
}

// Meta is the (locked, auth_by_predecessor) flag pair of §3's Account.
type Meta struct {
	Locked            bool
	AuthByPredecessor bool
}

func (m Meta) serialize() []byte {
	out := make([]byte, 2)
	if m.Locked {
		out[0] = 1
	}
	if m.AuthByPredecessor {
		out[1] = 1
	}
	return out
}

func deserializeMeta(b []byte) Meta {
	if len(b) < 2 {
		// First mutation of an account creates it lazily (§3
		// Lifecycle): absence means the implicit defaults.
		return Meta{}
	}
	return Meta{Locked: b[0] == 1, AuthByPredecessor: b[1] == 1}
}

// u128Bytes serializes a uint128.Uint128 to 16 big-endian bytes.
func u128Bytes(v uint128.Uint128) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[:8], v.Hi)
	binary.BigEndian.PutUint64(out[8:], v.Lo)
	return out
}

func u128FromBytes(b []byte) uint128.Uint128 {
	if len(b) != 16 {
		return uint128.Zero
	}
	return uint128.New(binary.BigEndian.Uint64(b[8:]), binary.BigEndian.Uint64(b[:8]))
}

func pubKeyBytes(curveTag string, key []byte) []byte {
	out := make([]byte, 0, len(curveTag)+1+len(key))
	out = append(out, byte(len(curveTag)))
	out = append(out, curveTag...)
	out = append(out, key...)
	return out
}

func subBucket(tx *bbolt.Tx, parent []byte, accountID string) (*bbolt.Bucket, error) {
	p := tx.Bucket(parent)
	if p == nil {
		return nil, fmt.Errorf("accounts: bucket %s not initialized", parent)
	}
	return p.CreateBucketIfNotExists([]byte(accountID))
}

func existingSubBucket(tx *bbolt.Tx, parent []byte, accountID string) *bbolt.Bucket {
	p := tx.Bucket(parent)
	if p == nil {
		return nil
	}
	return p.Bucket([]byte(accountID))
}

// TokenIdKey returns the bbolt key bytes for a balance entry, breaking the
// tokenid.TokenId package-coupling out into one place.
func TokenIdKey(t tokenid.TokenId) []byte {
	return []byte(t.String())
}

package accounts

import (
	"fmt"

	"go.etcd.io/bbolt"
	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

// Account is a handle bound to one accountID inside an open bbolt
// transaction. It is cheap to construct and carries no cached state; every
// method reads or writes directly through tx.
type Account struct {
	ID string
	tx *bbolt.Tx
}

// Open returns a handle for accountID scoped to tx. Callers obtain tx from
// DB.View or DB.Update.
func (db *DB) Open(tx *bbolt.Tx, accountID string) *Account {
	return &Account{ID: accountID, tx: tx}
}

func (a *Account) meta() (Meta, error) {
	bucket := a.tx.Bucket(accountMetaBucket)
	if bucket == nil {
		return Meta{}, ErrDBNotInitialized
	}
	return deserializeMeta(bucket.Get([]byte(a.ID))), nil
}

func (a *Account) putMeta(m Meta) error {
	bucket := a.tx.Bucket(accountMetaBucket)
	if bucket == nil {
		return ErrDBNotInitialized
	}
	return bucket.Put([]byte(a.ID), m.serialize())
}

// Locked reports whether the account has locked itself (§4.4, "an account
// may lock itself; a locked account can still be the receiver of transfers
// but cannot originate further intents").
func (a *Account) Locked() (bool, error) {
	m, err := a.meta()
	if err != nil {
		return false, err
	}
	return m.Locked, nil
}

// Lock sets the locked flag.
func (a *Account) Lock() error {
	m, err := a.meta()
	if err != nil {
		return err
	}
	m.Locked = true
	return a.putMeta(m)
}

// Unlock clears the locked flag. Unlocking itself requires no special
// authorization at this layer; callers enforce who may call it.
func (a *Account) Unlock() error {
	m, err := a.meta()
	if err != nil {
		return err
	}
	m.Locked = false
	return a.putMeta(m)
}

// AuthByPredecessor reports whether the account currently accepts intents
// authorized by its NEAR predecessor (cross-contract caller) rather than a
// signed envelope.
func (a *Account) AuthByPredecessor() (bool, error) {
	m, err := a.meta()
	if err != nil {
		return false, err
	}
	return m.AuthByPredecessor, nil
}

// SetAuthByPredecessor flips the auth-by-predecessor flag.
func (a *Account) SetAuthByPredecessor(enabled bool) error {
	m, err := a.meta()
	if err != nil {
		return err
	}
	m.AuthByPredecessor = enabled
	return a.putMeta(m)
}

// HasPublicKey reports whether curveTag/key is registered for the account.
func (a *Account) HasPublicKey(curveTag string, key []byte) (bool, error) {
	bucket := existingSubBucket(a.tx, pubKeysBucket, a.ID)
	if bucket == nil {
		return false, nil
	}
	return bucket.Get(pubKeyBytes(curveTag, key)) != nil, nil
}

// AddPublicKey registers curveTag/key for the account, creating the
// account's key set lazily.
func (a *Account) AddPublicKey(curveTag string, key []byte) error {
	bucket, err := subBucket(a.tx, pubKeysBucket, a.ID)
	if err != nil {
		return err
	}
	return bucket.Put(pubKeyBytes(curveTag, key), []byte{1})
}

// RemovePublicKey deregisters curveTag/key, returning ErrUnknownPublicKey if
// it is not registered. It does not check whether the key is the account's
// last one, and neither does the engine's RemovePublicKey handler;
// CountPublicKeys reports how many keys remain.
func (a *Account) RemovePublicKey(curveTag string, key []byte) error {
	bucket := existingSubBucket(a.tx, pubKeysBucket, a.ID)
	if bucket == nil {
		return ErrUnknownPublicKey
	}
	k := pubKeyBytes(curveTag, key)
	if bucket.Get(k) == nil {
		return ErrUnknownPublicKey
	}
	return bucket.Delete(k)
}

// CountPublicKeys returns how many keys are registered for the account.
func (a *Account) CountPublicKeys() (int, error) {
	bucket := existingSubBucket(a.tx, pubKeysBucket, a.ID)
	if bucket == nil {
		return 0, nil
	}
	n := 0
	err := bucket.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

func nonceKey(nonce [32]byte, saltEpoch uint32) []byte {
	out := make([]byte, 36)
	copy(out, nonce[:])
	out[32] = byte(saltEpoch >> 24)
	out[33] = byte(saltEpoch >> 16)
	out[34] = byte(saltEpoch >> 8)
	out[35] = byte(saltEpoch)
	return out
}

// IsNonceUsed reports whether nonce has already been committed under
// saltEpoch.
func (a *Account) IsNonceUsed(nonce [32]byte, saltEpoch uint32) (bool, error) {
	bucket := existingSubBucket(a.tx, noncesBucket, a.ID)
	if bucket == nil {
		return false, nil
	}
	return bucket.Get(nonceKey(nonce, saltEpoch)) != nil, nil
}

// CommitNonce marks nonce as used under saltEpoch. It returns
// ErrNonceReused if the nonce was already committed.
func (a *Account) CommitNonce(nonce [32]byte, saltEpoch uint32) error {
	used, err := a.IsNonceUsed(nonce, saltEpoch)
	if err != nil {
		return err
	}
	if used {
		return ErrNonceReused
	}
	bucket, err := subBucket(a.tx, noncesBucket, a.ID)
	if err != nil {
		return err
	}
	return bucket.Put(nonceKey(nonce, saltEpoch), []byte{1})
}

// BalanceOf returns the account's balance of token, or zero if never set.
func (a *Account) BalanceOf(token tokenid.TokenId) (uint128.Uint128, error) {
	bucket := existingSubBucket(a.tx, balancesBucket, a.ID)
	if bucket == nil {
		return uint128.Zero, nil
	}
	return u128FromBytes(bucket.Get(TokenIdKey(token))), nil
}

func (a *Account) putBalance(token tokenid.TokenId, v uint128.Uint128) error {
	bucket, err := subBucket(a.tx, balancesBucket, a.ID)
	if err != nil {
		return err
	}
	return bucket.Put(TokenIdKey(token), u128Bytes(v))
}

// AddBalance credits amount to the account's token balance, returning
// ErrBalanceOverflow on u128 wraparound.
func (a *Account) AddBalance(token tokenid.TokenId, amount uint128.Uint128) error {
	current, err := a.BalanceOf(token)
	if err != nil {
		return err
	}
	next := current.Add(amount)
	if next.Cmp(current) < 0 {
		return ErrBalanceOverflow
	}
	return a.putBalance(token, next)
}

// SubBalance debits amount from the account's token balance, returning
// ErrBalanceUnderflow if the balance is insufficient.
func (a *Account) SubBalance(token tokenid.TokenId, amount uint128.Uint128) error {
	current, err := a.BalanceOf(token)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrBalanceUnderflow
	}
	return a.putBalance(token, current.Sub(amount))
}

// IsEmpty reports whether the account holds no keys, no committed nonces,
// and no nonzero balances, per the ErrAccountNotEmpty guard that callers
// apply before permitting an account to be forgotten.
func (a *Account) IsEmpty() (bool, error) {
	if n, err := a.CountPublicKeys(); err != nil {
		return false, err
	} else if n > 0 {
		return false, nil
	}

	if bucket := existingSubBucket(a.tx, noncesBucket, a.ID); bucket != nil {
		if k, _ := bucket.Cursor().First(); k != nil {
			return false, nil
		}
	}

	if bucket := existingSubBucket(a.tx, balancesBucket, a.ID); bucket != nil {
		nonzero := false
		err := bucket.ForEach(func(_, v []byte) error {
			if !u128FromBytes(v).IsZero() {
				nonzero = true
			}
			return nil
		})
		if err != nil {
			return false, err
		}
		if nonzero {
			return false, nil
		}
	}

	return true, nil
}

// Forget deletes all of the account's state. Callers must first confirm
// IsEmpty; Forget itself does not re-check, mirroring §4.4's description of
// account forgetting as a distinct, explicit step from emptying it.
func (a *Account) Forget() error {
	for _, bucket := range [][]byte{pubKeysBucket, noncesBucket, balancesBucket} {
		p := a.tx.Bucket(bucket)
		if p == nil {
			continue
		}
		if err := p.DeleteBucket([]byte(a.ID)); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("accounts: forget %s: %w", a.ID, err)
		}
	}
	meta := a.tx.Bucket(accountMetaBucket)
	if meta == nil {
		return ErrDBNotInitialized
	}
	return meta.Delete([]byte(a.ID))
}

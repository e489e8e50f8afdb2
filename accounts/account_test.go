package accounts

import (
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
	"lukechampine.com/uint128"

	"github.com/stretchr/testify/require"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPublicKeyLifecycle(t *testing.T) {
	db := openTestDB(t)
	key := []byte{0x01, 0x02, 0x03}

	err := db.bbolt.Update(func(tx *bbolt.Tx) error {
		acct := db.Open(tx, "alice.near")

		has, err := acct.HasPublicKey("ed25519", key)
		require.NoError(t, err)
		require.False(t, has)

		require.NoError(t, acct.AddPublicKey("ed25519", key))

		has, err = acct.HasPublicKey("ed25519", key)
		require.NoError(t, err)
		require.True(t, has)

		n, err := acct.CountPublicKeys()
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NoError(t, acct.RemovePublicKey("ed25519", key))
		require.Error(t, acct.RemovePublicKey("ed25519", key))
		return nil
	})
	require.NoError(t, err)
}

func TestNonceCommitIsOneShotPerSaltEpoch(t *testing.T) {
	db := openTestDB(t)
	var nonce [32]byte
	nonce[0] = 0xAA

	err := db.bbolt.Update(func(tx *bbolt.Tx) error {
		acct := db.Open(tx, "bob.near")

		used, err := acct.IsNonceUsed(nonce, 1)
		require.NoError(t, err)
		require.False(t, used)

		require.NoError(t, acct.CommitNonce(nonce, 1))
		require.ErrorIs(t, acct.CommitNonce(nonce, 1), ErrNonceReused)

		// Same nonce, different salt epoch, is independent.
		require.NoError(t, acct.CommitNonce(nonce, 2))
		return nil
	})
	require.NoError(t, err)
}

func TestLockAndAuthByPredecessorFlags(t *testing.T) {
	db := openTestDB(t)

	err := db.bbolt.Update(func(tx *bbolt.Tx) error {
		acct := db.Open(tx, "carol.near")

		locked, err := acct.Locked()
		require.NoError(t, err)
		require.False(t, locked)

		require.NoError(t, acct.Lock())
		locked, err = acct.Locked()
		require.NoError(t, err)
		require.True(t, locked)

		require.NoError(t, acct.Unlock())

		require.NoError(t, acct.SetAuthByPredecessor(true))
		enabled, err := acct.AuthByPredecessor()
		require.NoError(t, err)
		require.True(t, enabled)
		return nil
	})
	require.NoError(t, err)
}

func TestBalanceAddSubAndUnderflow(t *testing.T) {
	db := openTestDB(t)
	token := tokenid.Ft("usdt.near")

	err := db.bbolt.Update(func(tx *bbolt.Tx) error {
		acct := db.Open(tx, "dave.near")

		bal, err := acct.BalanceOf(token)
		require.NoError(t, err)
		require.True(t, bal.IsZero())

		require.NoError(t, acct.AddBalance(token, uint128.From64(100)))
		require.NoError(t, acct.SubBalance(token, uint128.From64(40)))

		bal, err = acct.BalanceOf(token)
		require.NoError(t, err)
		require.Equal(t, uint128.From64(60), bal)

		require.ErrorIs(t, acct.SubBalance(token, uint128.From64(1000)), ErrBalanceUnderflow)
		return nil
	})
	require.NoError(t, err)
}

func TestIsEmptyAndForget(t *testing.T) {
	db := openTestDB(t)
	token := tokenid.Ft("usdt.near")

	err := db.bbolt.Update(func(tx *bbolt.Tx) error {
		acct := db.Open(tx, "erin.near")

		empty, err := acct.IsEmpty()
		require.NoError(t, err)
		require.True(t, empty)

		require.NoError(t, acct.AddBalance(token, uint128.From64(1)))
		empty, err = acct.IsEmpty()
		require.NoError(t, err)
		require.False(t, empty)

		require.NoError(t, acct.SubBalance(token, uint128.From64(1)))
		empty, err = acct.IsEmpty()
		require.NoError(t, err)
		require.True(t, empty)

		require.NoError(t, acct.Forget())
		return nil
	})
	require.NoError(t, err)
}

package engine

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/accounts"
	"github.com/defuse-protocol/intents-settle/condvar"
	"github.com/defuse-protocol/intents-settle/crypto"
	"github.com/defuse-protocol/intents-settle/events"
	"github.com/defuse-protocol/intents-settle/resolver"
	"github.com/defuse-protocol/intents-settle/tokenid"
)

const testVerifyingContract = "intents.near"

type testEnvelope struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestSigner(t *testing.T) testEnvelope {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return testEnvelope{pub: pub, priv: priv}
}

func (s testEnvelope) signerID() string {
	return "ed25519:" + hex.EncodeToString(s.pub)
}

// sign builds and signs a nep413 envelope wrapping intentsJSON, nonce must
// be unique per (signer, salt epoch) or CommitNonce rejects it.
func (s testEnvelope) sign(t *testing.T, nonce byte, intentsJSON string) []byte {
	t.Helper()

	nonceBytes := make([]byte, 32)
	nonceBytes[31] = nonce

	doc := map[string]interface{}{
		"signer_id":          s.signerID(),
		"verifying_contract": testVerifyingContract,
		"deadline":           "Never",
		"nonce":              hex.EncodeToString(nonceBytes),
		"intents":            json.RawMessage(intentsJSON),
	}
	message, err := json.Marshal(doc)
	require.NoError(t, err)

	const domainTag = "defuse-envelope-nep413-v1"
	tag := crypto.Sha256([]byte(domainTag))
	recipient := testVerifyingContract
	preimage := append(append([]byte{}, tag[:]...), recipient...)
	preimage = append(preimage, message...)
	digest := crypto.Sha256(preimage)
	sig := ed25519.Sign(s.priv, digest[:])

	env := map[string]interface{}{
		"standard":   "nep413",
		"message":    string(message),
		"signature":  hex.EncodeToString(sig),
		"public_key": hex.EncodeToString(s.pub),
		"recipient":  recipient,
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *accounts.DB, *events.Recorder) {
	t.Helper()
	db, err := accounts.Open(t.TempDir() + "/accounts.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec := events.NewRecorder()
	if cfg.VerifyingContract == "" {
		cfg.VerifyingContract = testVerifyingContract
	}
	return New(db, cfg, rec, NoopScheduler{}), db, rec
}

func seedAccountBalance(t *testing.T, db *accounts.DB, account string, token tokenid.TokenId, amount uint64) {
	t.Helper()
	err := db.Update(func(tx *bbolt.Tx) error {
		return db.Open(tx, account).AddBalance(token, uint128.From64(amount))
	})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, db *accounts.DB, account string, token tokenid.TokenId) uint64 {
	t.Helper()
	var bal uint128.Uint128
	err := db.View(func(tx *bbolt.Tx) error {
		var err error
		bal, err = db.Open(tx, account).BalanceOf(token)
		return err
	})
	require.NoError(t, err)
	return bal.Lo
}

func TestExecuteIntentsSimpleTransfer(t *testing.T) {
	eng, db, rec := newTestEngine(t, Config{})
	alice := newTestSigner(t)

	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	envelope := alice.sign(t, 1, `[{"intent":"transfer","receiver_id":"bob.near","tokens":{"nep141:x.near":"400"}}]`)
	err := eng.ExecuteIntents([][]byte{envelope}, 0)
	require.NoError(t, err, "dispatch failed, events so far:\n%s", spew.Sdump(rec.Events()))

	require.Equal(t, uint64(600), balanceOf(t, db, alice.signerID(), token))
	require.Equal(t, uint64(400), balanceOf(t, db, "bob.near", token))

	// The per-intent Transfer event carries the envelope's intent hash; the
	// batch-level Transfer the matcher emits after finalize carries none.
	var perIntent, batchLevel int
	for _, ev := range rec.Events() {
		if tr, ok := ev.(events.Transfer); ok && tr.Receiver == "bob.near" {
			if tr.IntentHash != "" {
				perIntent++
			} else {
				batchLevel++
			}
		}
	}
	require.Equal(t, 1, perIntent)
	require.Equal(t, 1, batchLevel)
}

func TestExecuteIntentsRejectsSelfTransfer(t *testing.T) {
	eng, db, _ := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	envelope := alice.sign(t, 1, `[{"intent":"transfer","receiver_id":"`+alice.signerID()+`","tokens":{"nep141:x.near":"1"}}]`)
	err := eng.ExecuteIntents([][]byte{envelope}, 0)
	require.ErrorIs(t, err, ErrSelfTransfer)

	// a rejected batch must leave state untouched
	require.Equal(t, uint64(1000), balanceOf(t, db, alice.signerID(), token))
}

func TestExecuteIntentsRejectsNonceReuse(t *testing.T) {
	eng, db, _ := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	envelope := alice.sign(t, 7, `[{"intent":"transfer","receiver_id":"bob.near","tokens":{"nep141:x.near":"10"}}]`)
	require.NoError(t, eng.ExecuteIntents([][]byte{envelope}, 0))

	err := eng.ExecuteIntents([][]byte{envelope}, 0)
	require.ErrorIs(t, err, accounts.ErrNonceReused)
}

func TestExecuteIntentsRejectsLockedSigner(t *testing.T) {
	eng, db, _ := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	require.NoError(t, eng.ForceLockAccount(alice.signerID()))

	envelope := alice.sign(t, 1, `[{"intent":"transfer","receiver_id":"bob.near","tokens":{"nep141:x.near":"10"}}]`)
	err := eng.ExecuteIntents([][]byte{envelope}, 0)
	require.ErrorIs(t, err, accounts.ErrAccountLocked)

	require.NoError(t, eng.ForceUnlockAccount(alice.signerID()))
	envelope2 := alice.sign(t, 2, `[{"intent":"transfer","receiver_id":"bob.near","tokens":{"nep141:x.near":"10"}}]`)
	require.NoError(t, eng.ExecuteIntents([][]byte{envelope2}, 0))
}

func TestSimulateIntentsNeverCommits(t *testing.T) {
	eng, db, rec := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	envelope := alice.sign(t, 1, `[{"intent":"transfer","receiver_id":"bob.near","tokens":{"nep141:x.near":"400"}}]`)
	report := eng.SimulateIntents([][]byte{envelope}, 0)
	require.NoError(t, report.InvariantViolated)
	require.NotEmpty(t, report.Logs)

	require.Equal(t, uint64(1000), balanceOf(t, db, alice.signerID(), token))
	require.Empty(t, rec.Events())

	require.NoError(t, eng.ExecuteIntents([][]byte{envelope}, 0))
	require.Equal(t, uint64(600), balanceOf(t, db, alice.signerID(), token))
}

func TestRotateSaltInvalidatesOldNonceCommitments(t *testing.T) {
	eng, db, _ := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	envelope := alice.sign(t, 1, `[{"intent":"transfer","receiver_id":"bob.near","tokens":{"nep141:x.near":"10"}}]`)
	require.NoError(t, eng.ExecuteIntents([][]byte{envelope}, 0))

	require.NoError(t, eng.RotateSalt())

	// same envelope (salt_epoch_hint omitted -> 0) is now rejected since
	// epoch 0 is no longer current.
	err := eng.ExecuteIntents([][]byte{envelope}, 0)
	require.ErrorIs(t, err, ErrSaltEpochInvalidated)
}

func TestExecuteIntentsTokenDiffChargesFee(t *testing.T) {
	eng, db, rec := newTestEngine(t, Config{FeePips: 100_000, FeeCollector: "fees.near"})
	alice := newTestSigner(t)
	tokenA := tokenid.Ft("a.near")
	tokenB := tokenid.Ft("b.near")
	// 10% fee is a surcharge on top of what each side declares giving, so
	// each signer is seeded with their declared magnitude plus the fee.
	seedAccountBalance(t, db, alice.signerID(), tokenA, 1100)
	bob := newTestSigner(t)
	seedAccountBalance(t, db, bob.signerID(), tokenB, 1100)

	aliceDiff := alice.sign(t, 1, `[{"intent":"token_diff","diff":{"nep141:a.near":"-1000","nep141:b.near":"+1000"}}]`)
	bobDiff := bob.sign(t, 1, `[{"intent":"token_diff","diff":{"nep141:b.near":"-1000","nep141:a.near":"+1000"}}]`)

	err := eng.ExecuteIntents([][]byte{aliceDiff, bobDiff}, 0)
	require.NoError(t, err)

	// each side is credited exactly its declared receive-amount; the 100
	// surcharge comes out of the giving side's own debit, on both tokens.
	require.Equal(t, uint64(1000), balanceOf(t, db, alice.signerID(), tokenB))
	require.Equal(t, uint64(0), balanceOf(t, db, alice.signerID(), tokenA))
	require.Equal(t, uint64(1000), balanceOf(t, db, bob.signerID(), tokenA))
	require.Equal(t, uint64(0), balanceOf(t, db, bob.signerID(), tokenB))
	require.Equal(t, uint64(100), balanceOf(t, db, "fees.near", tokenA))
	require.Equal(t, uint64(100), balanceOf(t, db, "fees.near", tokenB))

	var sawFeeCollectorDeposit bool
	for _, ev := range rec.Events() {
		if tr, ok := ev.(events.Transfer); ok && tr.Receiver == "fees.near" {
			sawFeeCollectorDeposit = true
		}
	}
	require.True(t, sawFeeCollectorDeposit)
}

func TestForceWithdrawDebitsRegardlessOfLock(t *testing.T) {
	eng, db, rec := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 500)
	require.NoError(t, eng.ForceLockAccount(alice.signerID()))

	err := eng.ForceWithdraw(alice.signerID(), token, "500", "cold-storage.near")
	require.NoError(t, err)
	require.Equal(t, uint64(0), balanceOf(t, db, alice.signerID(), token))

	var sawWithdraw bool
	for _, ev := range rec.Events() {
		if w, ok := ev.(events.FtWithdraw); ok && w.Receiver == "cold-storage.near" {
			sawWithdraw = true
		}
	}
	require.True(t, sawWithdraw)
}

func TestResolveWithdrawCreditsBackPartialRefund(t *testing.T) {
	eng, db, rec := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 1000)

	require.NoError(t, eng.ForceWithdraw(alice.signerID(), token, "500", "cold-storage.near"))
	require.Equal(t, uint64(500), balanceOf(t, db, alice.signerID(), token))

	err := eng.ResolveWithdraw(alice.signerID(), token, uint128.From64(500), resolver.PromiseOutcome{
		Success:  true,
		IsCall:   true,
		Returned: uint128.From64(300),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(700), balanceOf(t, db, alice.signerID(), token))

	var refund events.TokenRefund
	var sawRefund bool
	for _, ev := range rec.Events() {
		if r, ok := ev.(events.TokenRefund); ok {
			refund, sawRefund = r, true
		}
	}
	require.True(t, sawRefund)
	require.Equal(t, alice.signerID(), refund.AccountID)
	require.Equal(t, uint64(200), refund.Amount.Lo)
}

func TestResolveWithdrawNoopOnFullUse(t *testing.T) {
	eng, db, rec := newTestEngine(t, Config{})
	alice := newTestSigner(t)
	token := tokenid.Ft("x.near")
	seedAccountBalance(t, db, alice.signerID(), token, 500)
	require.NoError(t, eng.ForceWithdraw(alice.signerID(), token, "500", "cold-storage.near"))

	before := len(rec.Events())
	err := eng.ResolveWithdraw(alice.signerID(), token, uint128.From64(500), resolver.PromiseOutcome{Success: true})
	require.NoError(t, err)
	require.Equal(t, uint64(0), balanceOf(t, db, alice.signerID(), token))
	require.Equal(t, before, len(rec.Events()))
}

func TestWaitAuthorizationResolvesOnNotify(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})
	key := condvar.Key{
		EscrowContract: "escrow.near",
		AuthContract:   "auth.near",
		OnAuthSigner:   "relay.near",
		Authorizee:     "proxy.near",
		MsgHash:        [32]byte{1, 2, 3},
	}

	done := make(chan bool, 1)
	go func() {
		ok, err := eng.WaitAuthorization("proxy.near", key, 5*time.Second)
		require.NoError(t, err)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, eng.NotifyAuthorization("auth.near", "relay.near", key))
	require.True(t, <-done)
}

func TestWaitAuthorizationTimesOut(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})
	key := condvar.Key{
		EscrowContract: "escrow.near",
		AuthContract:   "auth.near",
		OnAuthSigner:   "relay.near",
		Authorizee:     "proxy.near",
		MsgHash:        [32]byte{9, 9, 9},
	}

	ok, err := eng.WaitAuthorization("proxy.near", key, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

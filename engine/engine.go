// Package engine implements the intent execution engine (C6, §4.6): the
// per-batch dispatch loop that extracts, verifies, and applies every
// envelope's intents against staged account state, finalizes the delta
// matcher, and commits or reverts the whole batch atomically.
package engine

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/accounts"
	"github.com/defuse-protocol/intents-settle/crypto"
	"github.com/defuse-protocol/intents-settle/events"
	"github.com/defuse-protocol/intents-settle/matcher"
	"github.com/defuse-protocol/intents-settle/payload"
	"github.com/defuse-protocol/intents-settle/resolver"
	"github.com/defuse-protocol/intents-settle/tokenid"
)

// Config is the engine's global configuration (§3 "Global config").
type Config struct {
	VerifyingContract string
	FeePips           uint32
	FeeCollector      string
}

// Engine ties the account store, the delta matcher, and the event sink
// together into the batch dispatch loop of §4.6.
type Engine struct {
	db        *accounts.DB
	cfg       Config
	sink      events.Sink
	scheduler Scheduler
	condvars  *condvarRegistry
}

// New returns an engine backed by db, configured per cfg. sink receives
// every event a successfully committed execute_intents batch emits;
// simulate_intents never reaches sink since its transaction always rolls
// back. scheduler receives every deferred cross-contract call a batch
// schedules; pass NoopScheduler{} when no host is wired up.
func New(db *accounts.DB, cfg Config, sink events.Sink, scheduler Scheduler) *Engine {
	return &Engine{db: db, cfg: cfg, sink: sink, scheduler: scheduler, condvars: newCondvarRegistry()}
}

// Report is simulate_intents's read-only result (§6).
type Report struct {
	Logs              []events.Event
	InvariantViolated error
}

func envelopeHash(raw []byte) string {
	h := crypto.Sha256(raw)
	return hex.EncodeToString(h[:])
}

// ExecuteIntents is the primary entry point: it runs every envelope's
// intents against one staged bbolt transaction and commits only if the
// whole batch succeeds, per §4.6's pseudocode.
func (e *Engine) ExecuteIntents(rawEnvelopes [][]byte, nowUnixNanos int64) error {
	start := time.Now()
	defer func() { batchDispatchSeconds.Observe(time.Since(start).Seconds()) }()

	var committed []events.Event

	err := e.db.Update(func(tx *bbolt.Tx) error {
		recorder := events.NewRecorder()
		m := matcher.New()

		entries, err := e.dispatchBatch(tx, rawEnvelopes, nowUnixNanos, m, recorder, e.scheduler)
		if err != nil {
			return err
		}
		recorder.Emit(events.IntentsExecuted{Entries: entries})

		transfers, err := m.Finalize()
		if err != nil {
			return err
		}
		for _, tr := range transfers {
			recorder.Emit(events.Transfer{
				Sender:   tr.From,
				Receiver: tr.To,
				TokenID:  tr.Token.String(),
				Amount:   tr.Amount,
			})
		}

		committed = recorder.Events()
		return nil
	})
	if err != nil {
		batchesReverted.WithLabelValues(revertReason(err)).Inc()
		log.Warnf("batch of %d envelopes reverted: %v", len(rawEnvelopes), err)
		return err
	}
	batchesCommitted.Inc()
	log.Infof("batch of %d envelopes committed, %d events emitted", len(rawEnvelopes), len(committed))

	for _, ev := range committed {
		e.sink.Emit(ev)
	}
	return nil
}

// revertReason buckets a dispatch error into a low-cardinality Prometheus
// label, falling back to "other" for anything not in the known taxonomy.
func revertReason(err error) string {
	switch {
	case isOneOf(err, ErrDeadlinePassed, ErrWrongVerifyingContract, ErrSaltEpochInvalidated):
		return "envelope"
	case isOneOf(err, accounts.ErrNonceReused, accounts.ErrAccountLocked):
		return "account"
	case isOneOf(err, ErrSelfTransfer, ErrZeroAmount, ErrMalformedAmount, resolver.ErrLogTooLarge):
		return "intent"
	case isOneOf(err, matcher.ErrOverflow):
		return "matcher_overflow"
	default:
		return "other"
	}
}

func isOneOf(err error, candidates ...error) bool {
	for _, c := range candidates {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// simulateAbort is returned by SimulateIntents's closure unconditionally,
// so bbolt always rolls the transaction back regardless of outcome.
var simulateAbort = fmt.Errorf("engine: simulated batch, rolling back")

// SimulateIntents runs the exact same dispatch as ExecuteIntents but always
// rolls back its mutations, per §6's read-only dry-run contract.
func (e *Engine) SimulateIntents(rawEnvelopes [][]byte, nowUnixNanos int64) Report {
	recorder := events.NewRecorder()
	var invariantErr error

	_ = e.db.Update(func(tx *bbolt.Tx) error {
		m := matcher.New()
		entries, err := e.dispatchBatch(tx, rawEnvelopes, nowUnixNanos, m, recorder, NoopScheduler{})
		if err != nil {
			invariantErr = err
			return simulateAbort
		}
		recorder.Emit(events.IntentsExecuted{Entries: entries})

		transfers, err := m.Finalize()
		if err != nil {
			invariantErr = err
			return simulateAbort
		}
		for _, tr := range transfers {
			recorder.Emit(events.Transfer{
				Sender:   tr.From,
				Receiver: tr.To,
				TokenID:  tr.Token.String(),
				Amount:   tr.Amount,
			})
		}
		return simulateAbort
	})

	return Report{Logs: recorder.Events(), InvariantViolated: invariantErr}
}

// dispatchBatch runs the per-envelope loop of §4.6: extract, validate,
// verify, commit the nonce, then apply every intent in declaration order.
func (e *Engine) dispatchBatch(
	tx *bbolt.Tx,
	rawEnvelopes [][]byte,
	nowUnixNanos int64,
	m *matcher.TransferMatcher,
	sink events.Sink,
	scheduler Scheduler,
) ([]events.ExecutedEntry, error) {
	entries := make([]events.ExecutedEntry, 0, len(rawEnvelopes))

	for _, raw := range rawEnvelopes {
		p, err := payload.Extract(raw)
		if err != nil {
			return nil, err
		}

		if p.VerifyingContract != e.cfg.VerifyingContract {
			return nil, ErrWrongVerifyingContract
		}
		if p.Deadline.Expired(nowUnixNanos) {
			return nil, ErrDeadlinePassed
		}

		saltEpoch := uint32(0)
		if p.SaltEpochHint != nil {
			saltEpoch = *p.SaltEpochHint
		}
		acceptable, err := accounts.IsSaltEpochAcceptable(tx, saltEpoch)
		if err != nil {
			return nil, err
		}
		if !acceptable {
			return nil, ErrSaltEpochInvalidated
		}

		acct := e.db.Open(tx, p.SignerID)
		if err := acct.CommitNonce(p.Nonce, saltEpoch); err != nil {
			return nil, err
		}

		envHash := envelopeHash(raw)
		log.Debugf("envelope %s extracted for signer %s, %d intents", envHash, p.SignerID, len(p.Intents))
		for _, intent := range p.Intents {
			if err := e.apply(tx, p.SignerID, intent, m, sink, envHash, scheduler); err != nil {
				return nil, err
			}
		}

		entries = append(entries, events.ExecutedEntry{
			SignerID:     p.SignerID,
			Nonce:        hex.EncodeToString(p.Nonce[:]),
			EnvelopeHash: envHash,
		})
	}

	return entries, nil
}

// IsNonceUsed answers the external is_nonce_used query (§6).
func (e *Engine) IsNonceUsed(account string, nonce [32]byte) (bool, error) {
	var used bool
	err := e.db.View(func(tx *bbolt.Tx) error {
		acct := e.db.Open(tx, account)
		saltEpoch, err := accounts.CurrentSalt(tx)
		if err != nil {
			return err
		}
		used, err = acct.IsNonceUsed(nonce, saltEpoch)
		return err
	})
	return used, err
}

// CurrentSalt answers the external current_salt query.
func (e *Engine) CurrentSalt() (uint32, error) {
	var epoch uint32
	err := e.db.View(func(tx *bbolt.Tx) error {
		var err error
		epoch, err = accounts.CurrentSalt(tx)
		return err
	})
	return epoch, err
}

// RotateSalt answers the privileged rotate_salt operation, emitting a
// SaltRotation event on success.
func (e *Engine) RotateSalt() error {
	var current uint32
	var invalidated []uint32
	err := e.db.Update(func(tx *bbolt.Tx) error {
		var err error
		current, invalidated, err = accounts.RotateSalt(tx)
		return err
	})
	if err != nil {
		return err
	}
	log.Infof("salt rotated to epoch %d, %d epochs now invalidated", current, len(invalidated))
	e.sink.Emit(events.SaltRotation{Current: current, Invalidated: invalidated})
	return nil
}

// ForceLockAccount is the privileged force_lock_account operation (§6).
func (e *Engine) ForceLockAccount(accountID string) error {
	return e.db.Update(func(tx *bbolt.Tx) error {
		return e.db.Open(tx, accountID).Lock()
	})
}

// ForceUnlockAccount is the privileged force_unlock_account operation (§6).
func (e *Engine) ForceUnlockAccount(accountID string) error {
	return e.db.Update(func(tx *bbolt.Tx) error {
		return e.db.Open(tx, accountID).Unlock()
	})
}

// ForceWithdraw is the privileged force_withdraw operation (§6): it debits
// accountID's balance and schedules the withdraw regardless of the
// account's lock state, bypassing the normal envelope/nonce path entirely.
// Used by operators to recover funds from an account that can no longer
// produce a valid signature (lost key, compromised key rotated out).
func (e *Engine) ForceWithdraw(accountID string, token tokenid.TokenId, amountStr, receiver string) error {
	amount, err := parseAmount(amountStr)
	if err != nil {
		return err
	}

	err = e.db.Update(func(tx *bbolt.Tx) error {
		return e.db.Open(tx, accountID).SubBalance(token, amount)
	})
	if err != nil {
		return err
	}

	e.sink.Emit(events.FtWithdraw{
		Sender:   accountID,
		TokenID:  token.String(),
		Amount:   amount,
		Receiver: receiver,
	})
	e.scheduler.ScheduleWithdraw(accountID, receiver, token.String(), amount, "", 0)
	return nil
}

// DirectTransfer moves amount of token from sender to receiver outside the
// signed-envelope/nonce path entirely: the multi-token standard's
// mt_transfer entrypoint is called directly by a predecessor the host
// runtime already authorizes, so there is no envelope to verify here. It
// is exposed only behind the privileged RPC surface in this daemon, since
// nothing upstream of this package authenticates a predecessor identity.
func (e *Engine) DirectTransfer(sender, receiver string, token tokenid.TokenId, amountStr string) error {
	if sender == receiver {
		return ErrSelfTransfer
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		return err
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}

	err = e.db.Update(func(tx *bbolt.Tx) error {
		if err := e.db.Open(tx, sender).SubBalance(token, amount); err != nil {
			return err
		}
		return e.db.Open(tx, receiver).AddBalance(token, amount)
	})
	if err != nil {
		return err
	}

	log.Infof("direct transfer %s %s -> %s of %s", amount.String(), sender, receiver, token.String())
	e.sink.Emit(events.Transfer{
		Sender:   sender,
		Receiver: receiver,
		TokenID:  token.String(),
		Amount:   amount,
	})
	return nil
}

// ResolveWithdraw is the callback entrypoint a scheduled withdraw's promise
// resolution drives (§4.7 step 3): the host runtime observed what the token
// contract's cross-contract call did with a previously-debited amount, and
// this credits back whatever resolver.ResolveWithdraw says wasn't actually
// used. A zero refund is a no-op: nothing is credited and no event is
// emitted.
func (e *Engine) ResolveWithdraw(accountID string, token tokenid.TokenId, amount uint128.Uint128, outcome resolver.PromiseOutcome) error {
	_, refund := resolver.ResolveWithdraw(amount, outcome)
	if refund.IsZero() {
		return nil
	}

	err := e.db.Update(func(tx *bbolt.Tx) error {
		return e.db.Open(tx, accountID).AddBalance(token, refund)
	})
	if err != nil {
		return err
	}

	log.Infof("refund %s of %s to %s after withdraw resolution", refund.String(), token.String(), accountID)
	e.sink.Emit(events.TokenRefund{
		AccountID: accountID,
		TokenID:   token.String(),
		Amount:    refund,
	})
	return nil
}

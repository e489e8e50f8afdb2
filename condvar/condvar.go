// Package condvar implements the one-shot authorization primitive (C8,
// §4.8): a deterministically addressed instance that lets a relay signer
// acknowledge a pending transfer within a timeout, without the proxy and
// the relay needing to coordinate a session id ahead of time.
package condvar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// State is the condvar instance's position in its state machine.
type State int

const (
	// Empty is the instance's state before any wait() or notify() call.
	Empty State = iota
	// Waiting means a wait() call is parked on a yielded promise.
	Waiting
	// Notified means an authorization arrived before any wait() call.
	Notified
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Waiting:
		return "waiting"
	case Notified:
		return "notified"
	default:
		return "unknown"
	}
}

var (
	ErrNotAuthorized   = fmt.Errorf("condvar: caller is not authorized to perform this action")
	ErrTimedOut        = fmt.Errorf("condvar: wait timed out before notify arrived")
	ErrAlreadyResolved = fmt.Errorf("condvar: instance has already resolved and is spent")
)

// Key derives the deterministic address of a condvar instance from the
// parties and message it binds, per §4.8: "a function of {escrow_contract,
// auth_contract, on_auth_signer, authorizee, msg_hash}". The same inputs
// always derive the same address, letting the proxy precompute it before
// the relay is online.
type Key struct {
	EscrowContract string
	AuthContract   string
	OnAuthSigner   string
	Authorizee     string
	MsgHash        [32]byte
}

// Address renders Key's deterministic derived address as a hex digest.
func (k Key) Address() string {
	h := sha256.New()
	h.Write([]byte(k.EscrowContract))
	h.Write([]byte{0})
	h.Write([]byte(k.AuthContract))
	h.Write([]byte{0})
	h.Write([]byte(k.OnAuthSigner))
	h.Write([]byte{0})
	h.Write([]byte(k.Authorizee))
	h.Write([]byte{0})
	h.Write(k.MsgHash[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Instance is one condvar's mutable state. It is strictly single-use: after
// it resolves (Notified and a subsequent Wait, or a wait that times out) it
// is considered spent and callers must not reuse it.
type Instance struct {
	Key Key

	// CorrelationID is a scratch id for tying log lines for one instance's
	// Wait/Notify pair together. It plays no part in Address's derivation
	// or in any authorization check.
	CorrelationID uuid.UUID

	state   State
	spent   bool
	waiting *waiter
}

type waiter struct {
	resolve chan bool
}

// New returns a fresh Empty instance for key.
func New(key Key) *Instance {
	return &Instance{Key: key, state: Empty, CorrelationID: uuid.New()}
}

// State returns the instance's current state.
func (i *Instance) State() State { return i.state }

// Spent reports whether the instance has already resolved once.
func (i *Instance) Spent() bool { return i.spent }

// Wait is called by the authorizee. If the instance is already Notified, it
// resolves immediately with true and the instance is marked spent
// (self-deleted, per §4.8's transition table). Otherwise it transitions to
// Waiting and blocks on either notify or the timeout, whichever arrives
// first, per §4.8's Waiting row.
//
// caller must equal Key.Authorizee; ErrNotAuthorized otherwise.
func (i *Instance) Wait(caller string, timeoutC <-chan struct{}) (bool, error) {
	if caller != i.Key.Authorizee {
		return false, ErrNotAuthorized
	}
	if i.spent {
		return false, ErrAlreadyResolved
	}

	switch i.state {
	case Notified:
		i.spent = true
		return true, nil

	case Waiting:
		return false, ErrAlreadyResolved

	default: // Empty
		w := &waiter{resolve: make(chan bool, 1)}
		i.state = Waiting
		i.waiting = w

		select {
		case ok := <-w.resolve:
			i.spent = true
			return ok, nil
		case <-timeoutC:
			i.spent = true
			i.waiting = nil
			return false, nil
		}
	}
}

// Notify is called by the auth_contract cross-contract caller on behalf of
// signer. It must equal Key.OnAuthSigner, per §4.8's contract clause.
//
// If a Wait is currently parked (Waiting), Notify resolves it with true. If
// no Wait has arrived yet (Empty), Notify transitions the instance to
// Notified so the next Wait call returns true immediately.
func (i *Instance) Notify(callerContract, signer string) error {
	if callerContract != i.Key.AuthContract || signer != i.Key.OnAuthSigner {
		return ErrNotAuthorized
	}
	if i.spent {
		return ErrAlreadyResolved
	}

	switch i.state {
	case Waiting:
		i.waiting.resolve <- true
		return nil
	case Empty:
		i.state = Notified
		return nil
	default: // Notified
		return ErrAlreadyResolved
	}
}

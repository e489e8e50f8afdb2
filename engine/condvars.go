package engine

import (
	"sync"
	"time"

	"github.com/defuse-protocol/intents-settle/condvar"
)

// condvarRegistry holds every one-shot authorization instance (C8, §4.8) an
// AuthCall-gated escrow has derived but not yet resolved, keyed by its
// deterministic address. Instances are created lazily on first touch by
// either side, the same way the deterministic derivation lets the proxy
// precompute the address before the relay is online.
type condvarRegistry struct {
	mu        sync.Mutex
	instances map[string]*condvar.Instance
}

func newCondvarRegistry() *condvarRegistry {
	return &condvarRegistry{instances: make(map[string]*condvar.Instance)}
}

func (reg *condvarRegistry) get(key condvar.Key) *condvar.Instance {
	addr := key.Address()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	inst, ok := reg.instances[addr]
	if !ok {
		inst = condvar.New(key)
		reg.instances[addr] = inst
	}
	return inst
}

// WaitAuthorization parks the authorizee on key's condvar instance until an
// on_auth_signer notify arrives or timeout elapses, per §4.8's Waiting row.
// It returns false, nil on timeout rather than an error: a timed-out wait is
// a normal outcome the caller must compensate for, not a failure.
func (e *Engine) WaitAuthorization(caller string, key condvar.Key, timeout time.Duration) (bool, error) {
	inst := e.condvars.get(key)

	timeoutC := make(chan struct{})
	timer := time.AfterFunc(timeout, func() { close(timeoutC) })
	defer timer.Stop()

	return inst.Wait(caller, timeoutC)
}

// NotifyAuthorization is the auth_contract cross-contract call acknowledging
// a pending transfer on behalf of signer.
func (e *Engine) NotifyAuthorization(callerContract, signer string, key condvar.Key) error {
	inst := e.condvars.get(key)
	return inst.Notify(callerContract, signer)
}

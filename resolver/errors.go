package resolver

import "fmt"

var (
	// ErrLogTooLarge is returned when either a transfer's success log or
	// its worst-case refund log would exceed the host's per-log byte
	// limit. The whole call is rejected before any state changes, per
	// §4.7's log-size pre-check.
	ErrLogTooLarge = fmt.Errorf("resolver: event log would exceed host's per-log byte limit")

	// ErrNoRecoveryPath names the case where a deferred cross-contract
	// transfer's promise chain is itself lost (e.g. the host drops the
	// callback). No recovery mechanism for that case exists, and nothing
	// in this repository returns this error.
	ErrNoRecoveryPath = fmt.Errorf("resolver: no recovery path for a lost promise chain")
)

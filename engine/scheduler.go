package engine

import "lukechampine.com/uint128"

// Scheduler receives the deferred cross-contract calls a batch schedules
// (§4.6's "schedule deferred cross-contract calls" step, detailed in
// §4.7). The engine itself only debits balances and records what must
// happen next; actually dispatching a promise to a token contract and
// driving its callback is the host runtime's job, so Scheduler is the seam
// between the two. NoopScheduler is used wherever no host is wired up
// (tests, simulate_intents).
type Scheduler interface {
	ScheduleWithdraw(signer, receiver string, tokenID string, amount uint128.Uint128, msg string, minGas uint64)
	ScheduleAuthCall(signer, contract, msg string, attachedDeposit uint128.Uint128, minGas uint64)
	ScheduleStorageDeposit(signer, contract, forAccount string, amount uint128.Uint128)
}

// NoopScheduler discards every deferred call. It is the default scheduler
// for engines that don't wire a host, and the only scheduler
// simulate_intents ever uses, since dry runs must not have side effects.
type NoopScheduler struct{}

func (NoopScheduler) ScheduleWithdraw(string, string, string, uint128.Uint128, string, uint64) {}
func (NoopScheduler) ScheduleAuthCall(string, string, string, uint128.Uint128, uint64)          {}
func (NoopScheduler) ScheduleStorageDeposit(string, string, string, uint128.Uint128)             {}

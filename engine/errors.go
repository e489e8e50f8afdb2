package engine

import "fmt"

// Envelope errors (§7): batch-fatal, raised before any state change.
var (
	ErrDeadlinePassed         = fmt.Errorf("engine: envelope deadline has passed")
	ErrWrongVerifyingContract = fmt.Errorf("engine: envelope's verifying_contract does not match this engine")
	ErrSaltEpochInvalidated   = fmt.Errorf("engine: envelope's salt epoch hint has been invalidated")
)

// Intent errors (§7): batch-fatal.
var (
	ErrUnauthorized    = fmt.Errorf("engine: caller is not authorized for this account")
	ErrSelfTransfer    = fmt.Errorf("engine: self-transfers are forbidden")
	ErrZeroAmount      = fmt.Errorf("engine: zero-amount transfers are forbidden")
	ErrTokenIdTooLarge = fmt.Errorf("engine: token id exceeds the maximum length")
	ErrUnknownToken    = fmt.Errorf("engine: unknown intent kind or mismatched token/amount lists")
	ErrMalformedAmount = fmt.Errorf("engine: amount is not a valid non-negative decimal integer")
)

package accounts

import "fmt"

var (
	ErrAccountLocked    = fmt.Errorf("account is locked")
	ErrUnknownPublicKey = fmt.Errorf("public key is not authorized for this account")
	ErrNonceReused      = fmt.Errorf("nonce has already been committed under the current salt epoch")
	ErrSaltEpochInvalid = fmt.Errorf("envelope's salt epoch has been invalidated")
	ErrBalanceUnderflow = fmt.Errorf("balance underflow")
	ErrBalanceOverflow  = fmt.Errorf("balance overflow")
	ErrAccountNotEmpty  = fmt.Errorf("account still holds balances, keys, or nonces")
	ErrDBNotInitialized = fmt.Errorf("account store has not been opened")
)

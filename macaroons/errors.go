package macaroons

import "fmt"

// ErrUnauthorized covers every macaroon verification failure: malformed
// binary, bad signature, wrong or missing operation caveat.
var ErrUnauthorized = fmt.Errorf("macaroons: unauthorized")

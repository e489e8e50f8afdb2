package payload

import "fmt"

var (
	ErrInvalidSignature    = fmt.Errorf("envelope: signature verification failed")
	ErrUnsupportedStandard = fmt.Errorf("envelope: unsupported signing standard")
	ErrMalformedEnvelope   = fmt.Errorf("envelope: malformed envelope")
	ErrAddressMismatch     = fmt.Errorf("envelope: recovered key does not match signer_id")
)

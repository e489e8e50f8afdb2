package resolver

// maxLogBytes is the safe per-log byte ceiling pinned by binary search
// against the host's actual limit; kept a comfortable margin under it so a
// borderline-sized refund event is never the one call that overflows.
const maxLogBytes = 16 * 1024

// PreCheckLogSizes rejects a transfer before any state change if either its
// success-log or its worst-case refund-log would exceed the host's per-log
// byte limit, per §4.7's log-size pre-check: "This prevents catastrophic
// inability to refund after a successful debit."
func PreCheckLogSizes(successLogBytes, refundLogBytes int) error {
	if successLogBytes > maxLogBytes || refundLogBytes > maxLogBytes {
		return ErrLogTooLarge
	}
	return nil
}

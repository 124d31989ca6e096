package feedback

import "time"

// readTimeCounter stands in for an architecture-specific monotonic
// cycle-counter read: a stateless pure function, not a singleton. Wall-clock
// nanoseconds are coarser than a real cycle counter but preserve the
// property IsInterestingWithPerf needs: a monotonically increasing per-call
// reading to difference around a leaf.
func readTimeCounter() uint64 {
	return uint64(time.Now().UnixNano())
}

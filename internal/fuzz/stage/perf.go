package stage

import "time"

// readTimeCounter stands in for an architecture-specific monotonic
// cycle-counter read, the same stateless utility shape used to time
// feedback evaluation, applied here to time the clone/mutate/evaluate/
// post-exec steps of a mutational round.
func readTimeCounter() uint64 {
	return uint64(time.Now().UnixNano())
}

// perfCloneIdx, perfMutateIdx, perfEvaluateIdx, perfPostExecIdx are the
// fixed slots a MutationalStage records its four bracketed steps into
// inside state.PerfCounters.
const (
	perfCloneIdx = iota
	perfMutateIdx
	perfEvaluateIdx
	perfPostExecIdx
	perfCounterCount
)

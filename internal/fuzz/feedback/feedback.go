// Package feedback implements the composable interestingness-verdict tree:
// leaves consult observer/exit-kind data, composites combine child verdicts
// under AND/EagerOr/FastOr/Not semantics, and every feedback stamps or
// discards corpus metadata once the fuzzer decides an input's fate.
package feedback

import (
	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// Feedback is a judge: given the observer set an execution produced and how
// it ended, it returns a boolean verdict. AppendMetadata/DiscardMetadata are
// called exactly once per input depending on the fuzzer's final decision —
// never both, never neither.
type Feedback interface {
	Name() string
	IsInteresting(obs *observer.Set, exitKind executor.ExitKind) (bool, error)
	AppendMetadata(tc *corpus.Testcase) error
	DiscardMetadata() error
	// Size is the number of leaves in this feedback's subtree, used to
	// allocate non-overlapping performance-counter indices at construction.
	Size() int
}

// PerfFeedback is the optional performance-accounting extension: the same
// verdict, but timed into a shared counters slice at a statically assigned
// index.
type PerfFeedback interface {
	Feedback
	IsInterestingWithPerf(obs *observer.Set, exitKind executor.ExitKind, counters []uint64, baseIndex int) (bool, error)
}

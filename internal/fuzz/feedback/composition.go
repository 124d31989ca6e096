package feedback

import (
	"fmt"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// timed runs f's IsInteresting (or IsInterestingWithPerf, if f supports it)
// and records its wall time into counters[baseIndex], the way a leaf with no
// native perf support still participates in a composite's perf accounting.
func timed(f Feedback, obs *observer.Set, exitKind executor.ExitKind, counters []uint64, baseIndex int) (bool, error) {
	if pf, ok := f.(PerfFeedback); ok {
		return pf.IsInterestingWithPerf(obs, exitKind, counters, baseIndex)
	}
	start := readTimeCounter()
	verdict, err := f.IsInteresting(obs, exitKind)
	if baseIndex < len(counters) {
		counters[baseIndex] += readTimeCounter() - start
	}
	return verdict, err
}

// andFeedback evaluates both children unconditionally and ANDs their
// verdicts; both side effects always occur.
type andFeedback struct {
	left, right Feedback
}

// And composes two feedbacks under AND semantics.
func And(left, right Feedback) Feedback {
	return &andFeedback{left: left, right: right}
}

func (f *andFeedback) Name() string {
	return fmt.Sprintf("and (%s, %s)", f.left.Name(), f.right.Name())
}

func (f *andFeedback) Size() int { return f.left.Size() + f.right.Size() }

func (f *andFeedback) IsInteresting(obs *observer.Set, exitKind executor.ExitKind) (bool, error) {
	lv, err := f.left.IsInteresting(obs, exitKind)
	if err != nil {
		return false, err
	}
	rv, err := f.right.IsInteresting(obs, exitKind)
	if err != nil {
		return false, err
	}
	return lv && rv, nil
}

func (f *andFeedback) IsInterestingWithPerf(obs *observer.Set, exitKind executor.ExitKind, counters []uint64, baseIndex int) (bool, error) {
	lv, err := timed(f.left, obs, exitKind, counters, baseIndex)
	if err != nil {
		return false, err
	}
	rv, err := timed(f.right, obs, exitKind, counters, baseIndex+f.left.Size())
	if err != nil {
		return false, err
	}
	return lv && rv, nil
}

func (f *andFeedback) AppendMetadata(tc *corpus.Testcase) error {
	if err := f.left.AppendMetadata(tc); err != nil {
		return err
	}
	return f.right.AppendMetadata(tc)
}

func (f *andFeedback) DiscardMetadata() error {
	if err := f.left.DiscardMetadata(); err != nil {
		return err
	}
	return f.right.DiscardMetadata()
}

// eagerOrFeedback evaluates both children unconditionally and ORs their
// verdicts. Used when a downstream feedback (e.g. TimeFeedback) must observe
// every run regardless of the left child's verdict.
type eagerOrFeedback struct {
	left, right Feedback
}

// EagerOr composes two feedbacks under eager-OR semantics: both always run.
func EagerOr(left, right Feedback) Feedback {
	return &eagerOrFeedback{left: left, right: right}
}

func (f *eagerOrFeedback) Name() string {
	return fmt.Sprintf("eager_or (%s, %s)", f.left.Name(), f.right.Name())
}

func (f *eagerOrFeedback) Size() int { return f.left.Size() + f.right.Size() }

func (f *eagerOrFeedback) IsInteresting(obs *observer.Set, exitKind executor.ExitKind) (bool, error) {
	lv, err := f.left.IsInteresting(obs, exitKind)
	if err != nil {
		return false, err
	}
	rv, err := f.right.IsInteresting(obs, exitKind)
	if err != nil {
		return false, err
	}
	return lv || rv, nil
}

func (f *eagerOrFeedback) IsInterestingWithPerf(obs *observer.Set, exitKind executor.ExitKind, counters []uint64, baseIndex int) (bool, error) {
	lv, err := timed(f.left, obs, exitKind, counters, baseIndex)
	if err != nil {
		return false, err
	}
	rv, err := timed(f.right, obs, exitKind, counters, baseIndex+f.left.Size())
	if err != nil {
		return false, err
	}
	return lv || rv, nil
}

func (f *eagerOrFeedback) AppendMetadata(tc *corpus.Testcase) error {
	if err := f.left.AppendMetadata(tc); err != nil {
		return err
	}
	return f.right.AppendMetadata(tc)
}

func (f *eagerOrFeedback) DiscardMetadata() error {
	if err := f.left.DiscardMetadata(); err != nil {
		return err
	}
	return f.right.DiscardMetadata()
}

// fastOrFeedback evaluates the left child; if true, the right child is
// skipped entirely and the verdict is true. Documented hazard: a feedback
// whose AppendMetadata depends on IsInteresting having run for every input
// (TimeFeedback being the canonical example) must never sit to the right of
// a FastOr — see TimeFeedback.AppendMetadata.
type fastOrFeedback struct {
	left, right Feedback
}

// FastOr composes two feedbacks under short-circuit-OR semantics.
func FastOr(left, right Feedback) Feedback {
	return &fastOrFeedback{left: left, right: right}
}

func (f *fastOrFeedback) Name() string {
	return fmt.Sprintf("fast_or (%s, %s)", f.left.Name(), f.right.Name())
}

func (f *fastOrFeedback) Size() int { return f.left.Size() + f.right.Size() }

func (f *fastOrFeedback) IsInteresting(obs *observer.Set, exitKind executor.ExitKind) (bool, error) {
	lv, err := f.left.IsInteresting(obs, exitKind)
	if err != nil {
		return false, err
	}
	if lv {
		return true, nil
	}
	return f.right.IsInteresting(obs, exitKind)
}

func (f *fastOrFeedback) IsInterestingWithPerf(obs *observer.Set, exitKind executor.ExitKind, counters []uint64, baseIndex int) (bool, error) {
	lv, err := timed(f.left, obs, exitKind, counters, baseIndex)
	if err != nil {
		return false, err
	}
	if lv {
		return true, nil
	}
	return timed(f.right, obs, exitKind, counters, baseIndex+f.left.Size())
}

func (f *fastOrFeedback) AppendMetadata(tc *corpus.Testcase) error {
	if err := f.left.AppendMetadata(tc); err != nil {
		return err
	}
	// AppendMetadata always reaches the right child even when IsInteresting
	// skipped it this round. The hazard this creates (e.g. TimeFeedback
	// stamping a value it never cached) is caught by the child itself, not
	// here — see TimeFeedback.AppendMetadata.
	return f.right.AppendMetadata(tc)
}

func (f *fastOrFeedback) DiscardMetadata() error {
	if err := f.left.DiscardMetadata(); err != nil {
		return err
	}
	return f.right.DiscardMetadata()
}

// notFeedback inverts its child's verdict; metadata operations forward
// unchanged since NOT does not alter execution order of side effects.
type notFeedback struct {
	child Feedback
}

// Not inverts a feedback's verdict.
func Not(child Feedback) Feedback {
	return &notFeedback{child: child}
}

func (f *notFeedback) Name() string { return fmt.Sprintf("not (%s)", f.child.Name()) }
func (f *notFeedback) Size() int    { return f.child.Size() }

func (f *notFeedback) IsInteresting(obs *observer.Set, exitKind executor.ExitKind) (bool, error) {
	v, err := f.child.IsInteresting(obs, exitKind)
	if err != nil {
		return false, err
	}
	return !v, nil
}

func (f *notFeedback) IsInterestingWithPerf(obs *observer.Set, exitKind executor.ExitKind, counters []uint64, baseIndex int) (bool, error) {
	v, err := timed(f.child, obs, exitKind, counters, baseIndex)
	if err != nil {
		return false, err
	}
	return !v, nil
}

func (f *notFeedback) AppendMetadata(tc *corpus.Testcase) error { return f.child.AppendMetadata(tc) }
func (f *notFeedback) DiscardMetadata() error                   { return f.child.DiscardMetadata() }

// emptyFeedback is the neutral element: always false, metadata ops are no-ops.
type emptyFeedback struct{}

// Empty returns the neutral-element feedback.
func Empty() Feedback { return emptyFeedback{} }

func (emptyFeedback) Name() string                                        { return "empty" }
func (emptyFeedback) Size() int                                           { return 1 }
func (emptyFeedback) IsInteresting(*observer.Set, executor.ExitKind) (bool, error) { return false, nil }
func (emptyFeedback) AppendMetadata(*corpus.Testcase) error               { return nil }
func (emptyFeedback) DiscardMetadata() error                              { return nil }

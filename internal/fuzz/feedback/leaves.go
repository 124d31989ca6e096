package feedback

import (
	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// CrashFeedback is true iff the execution crashed.
type CrashFeedback struct{}

func (CrashFeedback) Name() string { return "crash" }
func (CrashFeedback) Size() int    { return 1 }

func (CrashFeedback) IsInteresting(_ *observer.Set, exitKind executor.ExitKind) (bool, error) {
	return exitKind == executor.Crash, nil
}

func (CrashFeedback) AppendMetadata(*corpus.Testcase) error { return nil }
func (CrashFeedback) DiscardMetadata() error                { return nil }

// TimeoutFeedback is true iff the execution timed out.
type TimeoutFeedback struct{}

func (TimeoutFeedback) Name() string { return "timeout" }
func (TimeoutFeedback) Size() int    { return 1 }

func (TimeoutFeedback) IsInteresting(_ *observer.Set, exitKind executor.ExitKind) (bool, error) {
	return exitKind == executor.Timeout, nil
}

func (TimeoutFeedback) AppendMetadata(*corpus.Testcase) error { return nil }
func (TimeoutFeedback) DiscardMetadata() error                { return nil }

// DiffFeedback is true iff the execution's two backends disagreed
// (executor.DiffExecutor). Pair with CrashFeedback/TimeoutFeedback via
// feedback.FastOr as an objective to treat a differential mismatch as a
// solution alongside a crash or timeout.
type DiffFeedback struct{}

func (DiffFeedback) Name() string { return "diff" }
func (DiffFeedback) Size() int    { return 1 }

func (DiffFeedback) IsInteresting(_ *observer.Set, exitKind executor.ExitKind) (bool, error) {
	return exitKind == executor.Diff, nil
}

func (DiffFeedback) AppendMetadata(*corpus.Testcase) error { return nil }
func (DiffFeedback) DiscardMetadata() error                { return nil }

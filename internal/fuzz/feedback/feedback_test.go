package feedback

import (
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

type callCountFeedback struct {
	name    string
	verdict bool
	calls   int
}

func (f *callCountFeedback) Name() string { return f.name }
func (f *callCountFeedback) Size() int    { return 1 }
func (f *callCountFeedback) IsInteresting(*observer.Set, executor.ExitKind) (bool, error) {
	f.calls++
	return f.verdict, nil
}
func (f *callCountFeedback) AppendMetadata(*corpus.Testcase) error { return nil }
func (f *callCountFeedback) DiscardMetadata() error                { return nil }

func TestAndEvaluatesBoth(t *testing.T) {
	a := &callCountFeedback{name: "a", verdict: true}
	b := &callCountFeedback{name: "b", verdict: false}
	f := And(a, b)

	v, err := f.IsInteresting(nil, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if v {
		t.Fatal("expected false from And(true, false)")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both children called once, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestEagerOrEvaluatesBoth(t *testing.T) {
	a := &callCountFeedback{name: "a", verdict: true}
	b := &callCountFeedback{name: "b", verdict: false}
	f := EagerOr(a, b)

	v, _ := f.IsInteresting(nil, executor.Ok)
	if !v {
		t.Fatal("expected true from EagerOr(true, false)")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both children called once, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestFastOrSkipsRightWhenLeftTrue(t *testing.T) {
	a := &callCountFeedback{name: "a", verdict: true}
	b := &callCountFeedback{name: "b", verdict: false}
	f := FastOr(a, b)

	v, _ := f.IsInteresting(nil, executor.Ok)
	if !v {
		t.Fatal("expected true from FastOr(true, _)")
	}
	if b.calls != 0 {
		t.Fatalf("expected right child skipped, got %d calls", b.calls)
	}
}

func TestFastOrConsultsRightWhenLeftFalse(t *testing.T) {
	a := &callCountFeedback{name: "a", verdict: false}
	b := &callCountFeedback{name: "b", verdict: true}
	f := FastOr(a, b)

	v, _ := f.IsInteresting(nil, executor.Ok)
	if !v {
		t.Fatal("expected true from FastOr(false, true)")
	}
	if b.calls != 1 {
		t.Fatalf("expected right child called once, got %d", b.calls)
	}
}

func TestNotInverts(t *testing.T) {
	a := &callCountFeedback{name: "a", verdict: true}
	f := Not(a)
	v, _ := f.IsInteresting(nil, executor.Ok)
	if v {
		t.Fatal("expected Not(true) == false")
	}
}

func TestCompositeNaming(t *testing.T) {
	a := &callCountFeedback{name: "a"}
	b := &callCountFeedback{name: "b"}

	if got, want := And(a, b).Name(), "and (a, b)"; got != want {
		t.Fatalf("And name = %q, want %q", got, want)
	}
	if got, want := EagerOr(a, b).Name(), "eager_or (a, b)"; got != want {
		t.Fatalf("EagerOr name = %q, want %q", got, want)
	}
	if got, want := FastOr(a, b).Name(), "fast_or (a, b)"; got != want {
		t.Fatalf("FastOr name = %q, want %q", got, want)
	}
	if got, want := Not(a).Name(), "not (a)"; got != want {
		t.Fatalf("Not name = %q, want %q", got, want)
	}
}

func TestCrashAndTimeoutFeedback(t *testing.T) {
	crash := CrashFeedback{}
	if v, _ := crash.IsInteresting(nil, executor.Crash); !v {
		t.Fatal("CrashFeedback should be true on Crash")
	}
	if v, _ := crash.IsInteresting(nil, executor.Ok); v {
		t.Fatal("CrashFeedback should be false on Ok")
	}

	timeout := TimeoutFeedback{}
	if v, _ := timeout.IsInteresting(nil, executor.Timeout); !v {
		t.Fatal("TimeoutFeedback should be true on Timeout")
	}
}

func TestTimeFeedbackCachesAndStamps(t *testing.T) {
	to := observer.NewTimeObserver("time")
	to.PreExec()
	to.PostExec()

	set := observer.NewSet(to)
	tf := NewTimeFeedback("time")

	v, err := tf.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if v {
		t.Fatal("TimeFeedback must always return false")
	}

	tc := corpus.NewTestcase(nil)
	if err := tf.AppendMetadata(tc); err != nil {
		t.Fatalf("AppendMetadata: %v", err)
	}
	if tc.ExecTime == nil {
		t.Fatal("expected ExecTime to be stamped")
	}
}

func TestTimeFeedbackHazardBehindFastOr(t *testing.T) {
	to := observer.NewTimeObserver("time")
	to.PreExec()
	to.PostExec()
	set := observer.NewSet(to)

	alwaysTrue := &callCountFeedback{name: "map", verdict: true}
	tf := NewTimeFeedback("time")
	tree := FastOr(alwaysTrue, tf)

	v, err := tree.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if !v {
		t.Fatal("expected FastOr to short circuit true")
	}

	tc := corpus.NewTestcase(nil)
	err = tree.AppendMetadata(tc)
	if !ferr.Is(err, ferr.IllegalState) {
		t.Fatalf("expected IllegalState hazard error, got %v", err)
	}
}

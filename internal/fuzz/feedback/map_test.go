package feedback

import (
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

func TestMapFeedbackInterestingOnNewEdge(t *testing.T) {
	mo := observer.NewMapObserver("map", 1024)
	mo.Map().RecordEdge(1, 2)

	set := observer.NewSet(mo)
	mf := NewMapFeedback("coverage", "map", ReduceMax)

	v, err := mf.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if !v {
		t.Fatal("expected true on first-ever edge hit")
	}

	tc := corpus.NewTestcase(nil)
	if err := mf.AppendMetadata(tc); err != nil {
		t.Fatalf("AppendMetadata: %v", err)
	}
	if _, ok := tc.Metadata[corpus.EdgesCoveredKey]; !ok {
		t.Fatal("expected edges_covered metadata to be stamped")
	}
}

func TestMapFeedbackNotInterestingOnRepeat(t *testing.T) {
	mo := observer.NewMapObserver("map", 1024)
	mo.Map().RecordEdge(1, 2)
	set := observer.NewSet(mo)
	mf := NewMapFeedback("coverage", "map", ReduceMax)

	v, _ := mf.IsInteresting(set, executor.Ok)
	tc := corpus.NewTestcase(nil)
	mf.AppendMetadata(tc)
	if !v {
		t.Fatal("expected interesting on first hit")
	}

	// Second execution resets the per-run map, then re-records the same
	// edge at the same hit-count bucket: nothing new for the reducer.
	mo.PreExec()
	mo.Map().RecordEdge(1, 2)

	v2, err := mf.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if v2 {
		t.Fatal("expected false once the reducer's best value is already at the observed value")
	}
}

func TestMapFeedbackDiscardDoesNotCommit(t *testing.T) {
	mo := observer.NewMapObserver("map", 1024)
	mo.Map().RecordEdge(1, 2)
	set := observer.NewSet(mo)
	mf := NewMapFeedback("coverage", "map", ReduceMax)

	if _, err := mf.IsInteresting(set, executor.Ok); err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if err := mf.DiscardMetadata(); err != nil {
		t.Fatalf("DiscardMetadata: %v", err)
	}

	mo.PreExec()
	v, err := mf.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if !v {
		t.Fatal("discarding the first round should leave the edge still novel")
	}
}

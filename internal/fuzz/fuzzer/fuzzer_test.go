package fuzzer

import (
	"context"
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/feedback"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/stage"
)

type recordingEventManager struct {
	newTestcases []int
	solutions    []int
	crashes      int
}

func (m *recordingEventManager) FireNewTestcase(idx int, tc *corpus.Testcase) {
	m.newTestcases = append(m.newTestcases, idx)
}
func (m *recordingEventManager) FireSolution(idx int, tc *corpus.Testcase) {
	m.solutions = append(m.solutions, idx)
}
func (m *recordingEventManager) FireCrash(tc *corpus.Testcase) { m.crashes++ }
func (m *recordingEventManager) ProcessEvents(state *fuzzstate.State, exec executor.Executor, sched corpus.Scheduler) error {
	return nil
}

func newHarnessExecutor(t *testing.T, mapObs *observer.MapObserver, crashOn byte) executor.Executor {
	t.Helper()
	obs := observer.NewSet(mapObs)
	return executor.NewInProcessExecutor("harness", func(data []byte) executor.ExitKind {
		for i := 0; i+1 < len(data); i++ {
			mapObs.Map().RecordEdge(uint32(data[i]), uint32(data[i+1]))
		}
		if len(data) > 0 && data[0] == crashOn {
			return executor.Crash
		}
		return executor.Ok
	}, obs, 0)
}

func TestEvaluateInputAddsNewCoverageToCorpus(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	mapObs := observer.NewMapObserver("map", 256)
	exec := newHarnessExecutor(t, mapObs, 0xFF)

	fb := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	objective := feedback.CrashFeedback{}

	f := New(state, corpus.NewRandScheduler(), nil, fb, objective)
	mgr := &recordingEventManager{}

	added, idx, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{1, 2, 3}), exec, mgr)
	if err != nil {
		t.Fatalf("EvaluateInput: %v", err)
	}
	if !added || idx == nil {
		t.Fatalf("expected first input with novel coverage to be added, got added=%v idx=%v", added, idx)
	}
	if len(mgr.newTestcases) != 1 {
		t.Fatalf("expected one NewTestcase event, got %d", len(mgr.newTestcases))
	}
	if state.Corpus.Count() != 1 {
		t.Fatalf("expected corpus to contain one entry, got %d", state.Corpus.Count())
	}
}

func TestEvaluateInputRejectsRepeatedCoverage(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	mapObs := observer.NewMapObserver("map", 256)
	exec := newHarnessExecutor(t, mapObs, 0xFF)

	fb := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	objective := feedback.CrashFeedback{}

	f := New(state, corpus.NewRandScheduler(), nil, fb, objective)
	mgr := &recordingEventManager{}

	if _, _, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{1, 2, 3}), exec, mgr); err != nil {
		t.Fatalf("first EvaluateInput: %v", err)
	}

	added, _, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{1, 2, 3}), exec, mgr)
	if err != nil {
		t.Fatalf("second EvaluateInput: %v", err)
	}
	if added {
		t.Fatal("expected identical-coverage input to not be added a second time")
	}
	if state.Corpus.Count() != 1 {
		t.Fatalf("expected corpus to still contain one entry, got %d", state.Corpus.Count())
	}
}

// alwaysInterestingFeedback reports every execution as interesting,
// regardless of observed state — used to isolate the corpus's own
// content-hash dedup from a feedback's own novelty tracking (e.g. a
// SimilarityFeedback whose hash can drift run to run for byte-identical
// input against a live network target).
type alwaysInterestingFeedback struct{}

func (alwaysInterestingFeedback) Name() string { return "always" }
func (alwaysInterestingFeedback) Size() int    { return 1 }
func (alwaysInterestingFeedback) IsInteresting(*observer.Set, executor.ExitKind) (bool, error) {
	return true, nil
}
func (alwaysInterestingFeedback) AppendMetadata(*corpus.Testcase) error { return nil }
func (alwaysInterestingFeedback) DiscardMetadata() error                { return nil }

func TestEvaluateInputRejectsDuplicateContentEvenWhenFeedbackSaysInteresting(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	mapObs := observer.NewMapObserver("map", 256)
	exec := newHarnessExecutor(t, mapObs, 0xFF)

	f := New(state, corpus.NewRandScheduler(), nil, alwaysInterestingFeedback{}, feedback.CrashFeedback{})
	mgr := &recordingEventManager{}

	if _, _, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{9, 9, 9}), exec, mgr); err != nil {
		t.Fatalf("first EvaluateInput: %v", err)
	}
	added, _, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{9, 9, 9}), exec, mgr)
	if err != nil {
		t.Fatalf("second EvaluateInput: %v", err)
	}
	if added {
		t.Fatal("expected byte-identical input to be rejected by corpus dedup even though feedback claimed novelty")
	}
	if state.Corpus.Count() != 1 {
		t.Fatalf("expected corpus to still contain one entry, got %d", state.Corpus.Count())
	}
}

func TestEvaluateInputRoutesCrashesToSolutions(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	mapObs := observer.NewMapObserver("map", 256)
	exec := newHarnessExecutor(t, mapObs, 0xFF)

	fb := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	objective := feedback.CrashFeedback{}

	f := New(state, corpus.NewRandScheduler(), nil, fb, objective)
	mgr := &recordingEventManager{}

	added, idx, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{0xFF, 9}), exec, mgr)
	if err != nil {
		t.Fatalf("EvaluateInput: %v", err)
	}
	if !added || idx == nil {
		t.Fatal("expected a crashing input to be reported as added (to solutions)")
	}
	if len(mgr.solutions) != 1 {
		t.Fatalf("expected one Solution event, got %d", len(mgr.solutions))
	}
	if mgr.crashes != 1 {
		t.Fatalf("expected one Crash event, got %d", mgr.crashes)
	}
	if state.Corpus.Count() != 0 {
		t.Fatalf("expected the main corpus to stay empty for a crash, got %d", state.Corpus.Count())
	}
	if state.Solutions.Count() != 1 {
		t.Fatalf("expected solutions corpus to contain one entry, got %d", state.Solutions.Count())
	}
}

func TestRunIterationDrivesStagesAndProcessesEvents(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	_ = state.Corpus.Add(corpus.NewTestcase(input.NewBytes([]byte{1, 2})))

	mapObs := observer.NewMapObserver("map", 256)
	exec := newHarnessExecutor(t, mapObs, 0xFF)

	fb := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	objective := feedback.CrashFeedback{}

	mutator := &passthroughMutator{}
	stages := []stage.Stage{stage.NewMutationalStage(mutator).WithIterations(func(*fuzzstate.State) int { return 2 })}

	f := New(state, corpus.NewRandScheduler(), stages, fb, objective)
	mgr := &recordingEventManager{}

	if err := f.RunIteration(context.Background(), exec, mgr); err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
}

func TestEvaluateInputClassifiesSolutionsWithResponseObserver(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	mapObs := observer.NewMapObserver("map", 256)
	respObs := observer.NewResponseObserver("resp")

	obs := observer.NewSet(mapObs, respObs)
	exec := executor.NewInProcessExecutor("harness", func(data []byte) executor.ExitKind {
		for i := 0; i+1 < len(data); i++ {
			mapObs.Map().RecordEdge(uint32(data[i]), uint32(data[i+1]))
		}
		respObs.Record(500, []byte("You have an error in your SQL syntax"))
		return executor.Crash
	}, obs, 0)

	fb := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	objective := feedback.CrashFeedback{}

	f := New(state, corpus.NewRandScheduler(), nil, fb, objective).WithResponseObserver("resp")
	mgr := &recordingEventManager{}

	_, idx, err := f.EvaluateInput(context.Background(), input.NewBytes([]byte{1, 2, 3}), exec, mgr)
	if err != nil {
		t.Fatalf("EvaluateInput: %v", err)
	}
	if idx == nil {
		t.Fatal("expected the crash to be added to solutions")
	}

	tc, err := state.Solutions.Get(*idx)
	if err != nil {
		t.Fatalf("Solutions.Get: %v", err)
	}
	if tc.Metadata["triage_category"] != "sql_injection" {
		t.Fatalf("expected triage to stamp sql_injection, got %v", tc.Metadata["triage_category"])
	}
}

// passthroughMutator leaves the input unchanged each round; used where the
// test only cares that the pipeline runs to completion.
type passthroughMutator struct{}

func (passthroughMutator) Mutate(state *fuzzstate.State, in *input.Bytes, round int) error {
	return nil
}
func (passthroughMutator) PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error {
	return nil
}

package stage

import (
	"context"
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// recordingMutator counts how many times Mutate/PostExec ran and appends a
// marker byte on every mutation, so a test can tell the stage actually drove
// as many rounds as it asked for.
type recordingMutator struct {
	mutateCalls int
	postCalls   []int
}

func (m *recordingMutator) Mutate(state *fuzzstate.State, in *input.Bytes, round int) error {
	m.mutateCalls++
	*in = input.NewBytes(append(in.Bytes(), byte(round)))
	return nil
}

func (m *recordingMutator) PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error {
	m.postCalls = append(m.postCalls, round)
	return nil
}

// recordingEvaluator satisfies Evaluator without driving an actual executor;
// it just remembers every input it was handed.
type recordingEvaluator struct {
	seen []input.Input
}

func (e *recordingEvaluator) EvaluateInput(ctx context.Context, in input.Input, exec executor.Executor, mgr EventManager) (bool, *int, error) {
	e.seen = append(e.seen, in)
	idx := len(e.seen) - 1
	return true, &idx, nil
}

type noopEventManager struct{}

func (noopEventManager) FireNewTestcase(idx int, tc *corpus.Testcase) {}
func (noopEventManager) FireSolution(idx int, tc *corpus.Testcase)    {}
func (noopEventManager) FireCrash(tc *corpus.Testcase)                {}

func newTestState(t *testing.T, seed []byte) (*fuzzstate.State, int) {
	t.Helper()
	state := fuzzstate.New(1, "", "")
	idx := state.Corpus.Add(corpus.NewTestcase(input.NewBytes(seed)))
	return state, idx
}

func TestMutationalStageRunsFixedIterations(t *testing.T) {
	state, idx := newTestState(t, []byte("seed"))
	mut := &recordingMutator{}
	ev := &recordingEvaluator{}

	s := NewMutationalStage(mut).WithIterations(func(*fuzzstate.State) int { return 5 })
	if err := s.Perform(context.Background(), ev, nil, state, noopEventManager{}, idx); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if mut.mutateCalls != 5 {
		t.Fatalf("expected 5 Mutate calls, got %d", mut.mutateCalls)
	}
	if len(mut.postCalls) != 5 {
		t.Fatalf("expected 5 PostExec calls, got %d", len(mut.postCalls))
	}
	if len(ev.seen) != 5 {
		t.Fatalf("expected 5 evaluated inputs, got %d", len(ev.seen))
	}
}

func TestMutationalStageRecordsPerfCounters(t *testing.T) {
	state, idx := newTestState(t, []byte("x"))
	mut := &recordingMutator{}
	ev := &recordingEvaluator{}

	s := NewMutationalStage(mut).WithIterations(func(*fuzzstate.State) int { return 1 })
	if err := s.Perform(context.Background(), ev, nil, state, noopEventManager{}, idx); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	counters := state.PerfCounters(perfCounterCount)
	if len(counters) != perfCounterCount {
		t.Fatalf("expected %d perf counter slots, got %d", perfCounterCount, len(counters))
	}
}

func TestTracingStageRunsExecutorOnce(t *testing.T) {
	state, idx := newTestState(t, []byte("hello"))

	var harnessCalls int
	obs := observer.NewSet()
	exec := executor.NewInProcessExecutor("tracer", func(data []byte) executor.ExitKind {
		harnessCalls++
		return executor.Ok
	}, obs, 0)

	s := NewTracingStage(exec)
	if err := s.Perform(context.Background(), nil, nil, state, noopEventManager{}, idx); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if harnessCalls != 1 {
		t.Fatalf("expected exactly one harness call, got %d", harnessCalls)
	}
	if state.Executions() != 1 {
		t.Fatalf("expected executions to be incremented, got %d", state.Executions())
	}
}

func TestShadowTracingStageTogglesAndRestoresHooks(t *testing.T) {
	state, idx := newTestState(t, []byte("hello"))

	primaryObs := observer.NewSet()
	primary := executor.NewInProcessExecutor("primary", func(data []byte) executor.ExitKind {
		return executor.Ok
	}, primaryObs, 0)

	shadowObs := observer.NewSet()
	shadow := executor.NewShadowExecutor(primary, shadowObs)
	if shadow.ShadowHooks {
		t.Fatal("expected ShadowHooks to start false")
	}

	s := NewShadowTracingStage(shadow)
	if err := s.Perform(context.Background(), nil, nil, state, noopEventManager{}, idx); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if shadow.ShadowHooks {
		t.Fatal("expected ShadowHooks to be restored to false after Perform")
	}
}

func TestTracingStageMissingCorpusIndex(t *testing.T) {
	state := fuzzstate.New(1, "", "")
	obs := observer.NewSet()
	exec := executor.NewInProcessExecutor("tracer", func(data []byte) executor.ExitKind {
		return executor.Ok
	}, obs, 0)

	s := NewTracingStage(exec)
	if err := s.Perform(context.Background(), nil, nil, state, noopEventManager{}, 0); err == nil {
		t.Fatal("expected an error for an out-of-range corpus index")
	}
}

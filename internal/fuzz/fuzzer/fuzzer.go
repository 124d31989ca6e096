// Package fuzzer implements the top-level orchestrator: pick an index, run
// the stage pipeline against it, then process events, and implements
// EvaluateInput — the central predicate every stage eventually calls to turn
// one executed input into a corpus/solutions decision.
package fuzzer

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/feedback"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/stage"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/triage"
)

// EventManager is the lifecycle-event sink a Fuzzer fires into, plus the
// batch-processing hook the loop calls once per iteration. Concrete
// implementations live in internal/fuzz/event.
type EventManager interface {
	stage.EventManager
	ProcessEvents(state *fuzzstate.State, exec executor.Executor, sched corpus.Scheduler) error
}

// Fuzzer drives the scheduler → stage pipeline → event-processing loop and
// implements stage.Evaluator.
type Fuzzer struct {
	state     *fuzzstate.State
	scheduler corpus.Scheduler
	stages    []stage.Stage
	feedback  feedback.Feedback
	objective feedback.Feedback

	// responseObserver is the name a ResponseObserver is registered under
	// in the executor's observer set, if any. When set, every solution is
	// run through triage.Classify before being fired.
	responseObserver string
}

// New builds a Fuzzer. feedback governs corpus admission; objective governs
// solution detection. Either may be feedback.Empty() if unused.
func New(state *fuzzstate.State, scheduler corpus.Scheduler, stages []stage.Stage, fb, objective feedback.Feedback) *Fuzzer {
	return &Fuzzer{
		state:     state,
		scheduler: scheduler,
		stages:    stages,
		feedback:  fb,
		objective: objective,
	}
}

// State returns the fuzzstate.State this Fuzzer drives, letting a caller
// serialize it (see fuzzstate.State.Serialize) once the run stops.
func (f *Fuzzer) State() *fuzzstate.State { return f.state }

// WithResponseObserver names the ResponseObserver a NetworkExecutor's
// observer set carries, enabling triage.Classify on every solution found
// from here on.
func (f *Fuzzer) WithResponseObserver(name string) *Fuzzer {
	f.responseObserver = name
	return f
}

// RunIteration performs exactly one loop iteration: pick an index, run every
// stage against it in order, then let the event manager process whatever
// accumulated. An error from a stage aborts the remainder of the pipeline
// for this iteration but not the caller's loop.
func (f *Fuzzer) RunIteration(ctx context.Context, exec executor.Executor, mgr EventManager) error {
	idx, err := f.scheduler.Next(f.state.Rng, f.state.Corpus)
	if err != nil {
		return err
	}

	for _, s := range f.stages {
		if err := s.Perform(ctx, f, exec, f.state, mgr, idx); err != nil {
			return err
		}
	}

	return mgr.ProcessEvents(f.state, exec, f.scheduler)
}

// Run drives RunIteration in a loop until ctx is cancelled. A component
// reporting ferr.ShuttingDown or ferr.IteratorEnd ends the loop cleanly;
// ferr.IllegalState (a configuration bug) and ferr.Empty (the scheduler has
// nothing to pick) end it with that error. Any other error abandons only the
// current iteration, and the loop goes on with the next scheduler pick.
func (f *Fuzzer) Run(ctx context.Context, exec executor.Executor, mgr EventManager) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := f.RunIteration(ctx, exec, mgr); err != nil {
			if ferr.Is(err, ferr.ShuttingDown) || ferr.Is(err, ferr.IteratorEnd) {
				return nil
			}
			if ferr.Is(err, ferr.IllegalState) || ferr.Is(err, ferr.Empty) {
				return err
			}
		}
	}
}

// EvaluateInput is the Fuzzer's evaluation entry point, implementing
// stage.Evaluator. It runs the executor once, consults the feedback tree,
// conditionally adds to the corpus, consults the objective tree,
// conditionally adds to the solutions corpus, and returns whether anything
// was added and at what new index.
func (f *Fuzzer) EvaluateInput(ctx context.Context, in input.Input, exec executor.Executor, mgr stage.EventManager) (bool, *int, error) {
	exitKind, err := exec.Run(ctx, f.state, in)
	if err != nil {
		return false, nil, err
	}
	obs := exec.Observers()

	isInteresting, err := f.feedback.IsInteresting(obs, exitKind)
	if err != nil {
		return false, nil, err
	}
	isSolution, err := f.objective.IsInteresting(obs, exitKind)
	if err != nil {
		return false, nil, err
	}

	if isSolution {
		tc := corpus.NewTestcase(in)
		if err := f.objective.AppendMetadata(tc); err != nil {
			return false, nil, err
		}
		if err := f.feedback.DiscardMetadata(); err != nil {
			return false, nil, err
		}
		if f.responseObserver != "" {
			if o, ok := obs.Match(f.responseObserver); ok {
				if resp, ok := o.(*observer.ResponseObserver); ok {
					triage.Classify(tc, resp)
				}
			}
		}
		idx := f.state.Solutions.Add(tc)
		mgr.FireSolution(idx, tc)
		if exitKind == executor.Crash {
			mgr.FireCrash(tc)
		}
		return true, &idx, nil
	}

	if err := f.objective.DiscardMetadata(); err != nil {
		return false, nil, err
	}

	if isInteresting && f.state.Corpus.Contains(in) {
		isInteresting = false
	}

	if isInteresting {
		tc := corpus.NewTestcase(in)
		if err := f.feedback.AppendMetadata(tc); err != nil {
			return false, nil, err
		}
		idx := f.state.Corpus.Add(tc)
		f.scheduler.OnAdd(f.state.Corpus, idx)
		mgr.FireNewTestcase(idx, tc)
		return true, &idx, nil
	}

	if err := f.feedback.DiscardMetadata(); err != nil {
		return false, nil, err
	}
	return false, nil, nil
}

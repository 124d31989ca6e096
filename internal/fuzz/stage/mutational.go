package stage

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// DefaultMutationalMaxIterations bounds the default per-round iteration
// count: 1 + rand.Intn(DefaultMutationalMaxIterations).
const DefaultMutationalMaxIterations = 128

// MutationalStage repeatedly clones the selected input, mutates it, and
// hands it to the evaluator, letting the mutator learn from each round's
// outcome via PostExec.
type MutationalStage struct {
	mutator    Mutator
	iterations func(state *fuzzstate.State) int
}

// NewMutationalStage builds a MutationalStage with the default iteration
// count (1 + rand.Intn(128)).
func NewMutationalStage(mutator Mutator) *MutationalStage {
	return &MutationalStage{
		mutator:    mutator,
		iterations: defaultIterations,
	}
}

// WithIterations overrides how many rounds a call to Perform runs.
func (s *MutationalStage) WithIterations(fn func(state *fuzzstate.State) int) *MutationalStage {
	s.iterations = fn
	return s
}

func defaultIterations(state *fuzzstate.State) int {
	return 1 + state.Rng.Intn(DefaultMutationalMaxIterations)
}

func (s *MutationalStage) Perform(ctx context.Context, ev Evaluator, exec executor.Executor, state *fuzzstate.State, mgr EventManager, corpusIdx int) error {
	n := s.iterations(state)
	counters := state.PerfCounters(perfCounterCount)

	for i := 0; i < n; i++ {
		cloneStart := readTimeCounter()
		tc, err := state.Corpus.Get(corpusIdx)
		if err != nil {
			return err
		}
		bi, ok := tc.Input.(input.Bytes)
		if !ok {
			return ferr.New(ferr.IllegalState, "mutational stage requires an input.Bytes, got %T", tc.Input)
		}
		mutated := bi.Clone().(input.Bytes)
		counters[perfCloneIdx] += readTimeCounter() - cloneStart

		mutateStart := readTimeCounter()
		if err := s.mutator.Mutate(state, &mutated, i); err != nil {
			return err
		}
		counters[perfMutateIdx] += readTimeCounter() - mutateStart

		evalStart := readTimeCounter()
		_, newIdx, err := ev.EvaluateInput(ctx, mutated, exec, mgr)
		if err != nil {
			return err
		}
		counters[perfEvaluateIdx] += readTimeCounter() - evalStart

		postStart := readTimeCounter()
		if err := s.mutator.PostExec(state, i, newIdx); err != nil {
			return err
		}
		counters[perfPostExecIdx] += readTimeCounter() - postStart
	}
	return nil
}

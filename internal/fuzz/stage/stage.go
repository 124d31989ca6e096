// Package stage implements the ordered per-iteration stage pipeline: each
// stage drives zero or more executions against a single corpus index, the
// way a mutational stage repeatedly mutates-and-evaluates or a tracing stage
// runs once to populate observers for later stages to read.
package stage

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// Mutator is the contract a stage needs from a mutation operator. It is
// declared locally (rather than importing internal/fuzz/mutator) so the
// stage package stays decoupled from any particular mutator implementation,
// the same way the fuzzer's own evaluation entry point is abstracted behind
// Evaluator below.
type Mutator interface {
	Mutate(state *fuzzstate.State, in *input.Bytes, round int) error
	PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error
}

// EventManager is the minimal contract a stage needs to fire lifecycle
// events; concrete implementations live in internal/fuzz/event.
type EventManager interface {
	FireNewTestcase(idx int, tc *corpus.Testcase)
	FireSolution(idx int, tc *corpus.Testcase)
	FireCrash(tc *corpus.Testcase)
}

// Evaluator is the fuzzer's evaluate_input entry point, as a stage sees it:
// run the executor once, consult the feedback/objective trees, and commit
// the input to the corpus or the solutions corpus accordingly.
type Evaluator interface {
	EvaluateInput(ctx context.Context, in input.Input, exec executor.Executor, mgr EventManager) (added bool, newIdx *int, err error)
}

// Stage performs its unit of work against a single corpus index. An error
// aborts the pipeline for this iteration but not the fuzzer loop itself.
type Stage interface {
	Perform(ctx context.Context, ev Evaluator, exec executor.Executor, state *fuzzstate.State, mgr EventManager, corpusIdx int) error
}

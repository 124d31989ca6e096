package stage

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
)

// TracingStage runs a dedicated (typically slower, more instrumented)
// executor once against the selected input without going through
// EvaluateInput. Its purpose is purely to populate observers — e.g. a
// CmpObserver — that a later stage in the same pipeline will read. It still
// increments executions and runs the full pre/post-exec hook cycle, so
// observers see a complete run.
type TracingStage struct {
	tracer executor.Executor
}

// NewTracingStage wraps the executor that performs the dedicated trace run.
func NewTracingStage(tracer executor.Executor) *TracingStage {
	return &TracingStage{tracer: tracer}
}

func (s *TracingStage) Perform(ctx context.Context, ev Evaluator, exec executor.Executor, state *fuzzstate.State, mgr EventManager, corpusIdx int) error {
	tc, err := state.Corpus.Get(corpusIdx)
	if err != nil {
		return err
	}
	_, err = s.tracer.Run(ctx, state, tc.Input)
	return err
}

// ShadowTracingStage is a TracingStage that temporarily enables the wrapped
// executor's shadow hooks for the duration of the trace run, restoring the
// previous value afterward regardless of outcome.
type ShadowTracingStage struct {
	tracing *TracingStage
	shadow  *executor.ShadowExecutor
}

// NewShadowTracingStage builds a ShadowTracingStage around a ShadowExecutor.
func NewShadowTracingStage(shadow *executor.ShadowExecutor) *ShadowTracingStage {
	return &ShadowTracingStage{tracing: NewTracingStage(shadow), shadow: shadow}
}

func (s *ShadowTracingStage) Perform(ctx context.Context, ev Evaluator, exec executor.Executor, state *fuzzstate.State, mgr EventManager, corpusIdx int) error {
	previous := s.shadow.ShadowHooks
	s.shadow.ShadowHooks = true
	defer func() { s.shadow.ShadowHooks = previous }()

	return s.tracing.Perform(ctx, ev, exec, state, mgr, corpusIdx)
}

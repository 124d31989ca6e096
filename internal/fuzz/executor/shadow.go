package executor

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// ShadowExecutor wraps a primary executor together with an auxiliary
// "shadow" observer set. ShadowHooks controls whether the shadow set also
// receives pre/post-exec hooks during a normal Run; tracing stages toggle it
// true for the duration of their dedicated execution and restore the
// previous value afterward.
type ShadowExecutor struct {
	primary     Executor
	shadow      *observer.Set
	ShadowHooks bool
}

// NewShadowExecutor wraps primary with a shadow observer set, hooks off by
// default.
func NewShadowExecutor(primary Executor, shadow *observer.Set) *ShadowExecutor {
	return &ShadowExecutor{primary: primary, shadow: shadow}
}

func (e *ShadowExecutor) Name() string { return e.primary.Name() + "+shadow" }

// Observers returns the primary executor's observer set; the shadow set is
// reached via Shadow().
func (e *ShadowExecutor) Observers() *observer.Set { return e.primary.Observers() }

// Shadow returns the auxiliary observer set.
func (e *ShadowExecutor) Shadow() *observer.Set { return e.shadow }

// Primary returns the wrapped executor, for stages that need to call it
// directly (e.g. a tracing stage bypassing evaluate_input).
func (e *ShadowExecutor) Primary() Executor { return e.primary }

func (e *ShadowExecutor) Run(ctx context.Context, state *fuzzstate.State, in input.Input) (ExitKind, error) {
	if e.ShadowHooks {
		if err := e.shadow.PreExecAll(); err != nil {
			return Ok, err
		}
	}

	kind, err := e.primary.Run(ctx, state, in)

	if e.ShadowHooks {
		if postErr := e.shadow.PostExecAll(); postErr != nil && err == nil {
			return kind, postErr
		}
	}
	return kind, err
}

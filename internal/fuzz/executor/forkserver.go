package executor

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// ForkserverExecutor documents the fork-server executor variant's contract
// without implementing the shared-memory bitmap transport and fork-server
// wire protocol it requires — both are explicit Non-goals. The Executor
// interface still names the variant so callers can match on it and fail
// predictably rather than the variant silently not existing.
type ForkserverExecutor struct {
	name string
	obs  *observer.Set
}

// NewForkserverExecutor always fails: the fork-server protocol is
// unimplemented by design.
func NewForkserverExecutor(name string, obs *observer.Set) (*ForkserverExecutor, error) {
	return nil, ferr.New(ferr.NotImplemented, "forkserver executor %q: fork-server protocol is not implemented", name)
}

func (e *ForkserverExecutor) Name() string            { return e.name }
func (e *ForkserverExecutor) Observers() *observer.Set { return e.obs }

func (e *ForkserverExecutor) Run(ctx context.Context, state *fuzzstate.State, in input.Input) (ExitKind, error) {
	return Ok, ferr.New(ferr.Forkserver, "forkserver executor %q: run_target is not implemented", e.name)
}

// Package executor runs a target against an input and drives the observer
// set, in strict order: pre-exec hooks, the target run, the execution
// counter bump, then post-exec hooks.
package executor

import (
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// ExitKind classifies how a single target run ended.
type ExitKind int

const (
	Ok ExitKind = iota
	Crash
	Timeout
	Diff
)

func (k ExitKind) String() string {
	switch k {
	case Crash:
		return "crash"
	case Timeout:
		return "timeout"
	case Diff:
		return "diff"
	default:
		return "ok"
	}
}

// Executor is the uniform contract every executor variant satisfies.
type Executor interface {
	Name() string
	Observers() *observer.Set
	Run(ctx context.Context, state *fuzzstate.State, in input.Input) (ExitKind, error)
}

// runObserved is the shared pre/run/count/post sequence every Executor
// variant follows, parameterized by the function that actually drives the
// target. target returning a non-nil error means the spawn itself failed
// (step 1 still ran; the run is not counted toward executions).
func runObserved(obs *observer.Set, state *fuzzstate.State, target func() (ExitKind, error)) (ExitKind, error) {
	if err := obs.PreExecAll(); err != nil {
		return Ok, err
	}

	kind, err := target()
	if err != nil {
		return Ok, err
	}

	state.IncExecutions()

	if postErr := obs.PostExecAll(); postErr != nil {
		return kind, postErr
	}
	return kind, nil
}

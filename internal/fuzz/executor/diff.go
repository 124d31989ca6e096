package executor

import (
	"bytes"
	"context"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// DiffExecutor drives the same input against two NetworkExecutors — two
// backends meant to behave identically — and reports Diff when their
// responses disagree. It counts as one execution: both backends are
// fetched under a single PreExec/PostExec/IncExecutions cycle, using
// primary's observer set (so a ResponseObserver downstream sees primary's
// response, the way triage.Classify expects one response per execution).
//
// A Crash from either backend still wins over a mismatch — a 5xx is worth
// surfacing on its own regardless of what the other backend returned.
type DiffExecutor struct {
	name      string
	primary   *NetworkExecutor
	secondary *NetworkExecutor
}

// NewDiffExecutor pairs primary and secondary for differential comparison.
// Both must already be configured against their respective backends.
func NewDiffExecutor(name string, primary, secondary *NetworkExecutor) *DiffExecutor {
	return &DiffExecutor{name: name, primary: primary, secondary: secondary}
}

func (e *DiffExecutor) Name() string { return e.name }

// Observers returns primary's observer set — the one DiffExecutor records
// the kept response into.
func (e *DiffExecutor) Observers() *observer.Set { return e.primary.obs }

func (e *DiffExecutor) Run(ctx context.Context, state *fuzzstate.State, in input.Input) (ExitKind, error) {
	return runObserved(e.primary.obs, state, func() (ExitKind, error) {
		body := in.Bytes()

		pStatus, pBody, pKind, err := e.primary.fetch(ctx, body)
		if err != nil {
			return Ok, err
		}
		sStatus, sBody, sKind, err := e.secondary.fetch(ctx, body)
		if err != nil {
			return Ok, err
		}

		if ro, ok := e.primary.obs.Match(responseObserverName); ok {
			if r, ok := ro.(*observer.ResponseObserver); ok {
				r.Record(pStatus, pBody)
			}
		}

		if pKind == Crash || sKind == Crash {
			return Crash, nil
		}
		if pKind == Timeout || sKind == Timeout {
			return Timeout, nil
		}
		if pStatus != sStatus || !bytes.Equal(pBody, sBody) {
			return Diff, nil
		}
		return Ok, nil
	})
}

package executor

import (
	"context"
	"time"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// Harness is the in-process target: a plain function taking the raw input
// bytes and returning how the run ended. A panic inside Harness is recovered
// and reported as Crash.
type Harness func(data []byte) ExitKind

// InProcessExecutor runs Harness in a separate goroutine and waits for it
// under a context deadline for timeout detection. On timeout it stops
// waiting and reports Timeout; the harness goroutine itself is not stopped.
type InProcessExecutor struct {
	name    string
	harness Harness
	obs     *observer.Set
	timeout time.Duration
}

// NewInProcessExecutor builds an InProcessExecutor. A zero timeout disables
// the deadline (the harness runs to completion unconditionally).
func NewInProcessExecutor(name string, harness Harness, obs *observer.Set, timeout time.Duration) *InProcessExecutor {
	return &InProcessExecutor{name: name, harness: harness, obs: obs, timeout: timeout}
}

func (e *InProcessExecutor) Name() string              { return e.name }
func (e *InProcessExecutor) Observers() *observer.Set   { return e.obs }

func (e *InProcessExecutor) Run(ctx context.Context, state *fuzzstate.State, in input.Input) (ExitKind, error) {
	return runObserved(e.obs, state, func() (ExitKind, error) {
		return e.runHarness(ctx, in.Bytes())
	})
}

func (e *InProcessExecutor) runHarness(ctx context.Context, data []byte) (ExitKind, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type result struct {
		kind ExitKind
	}
	done := make(chan result, 1)

	go func() {
		kind := Ok
		func() {
			defer func() {
				if r := recover(); r != nil {
					kind = Crash
				}
			}()
			kind = e.harness(data)
		}()
		done <- result{kind: kind}
	}()

	select {
	case r := <-done:
		return r.kind, nil
	case <-ctx.Done():
		return Timeout, nil
	}
}

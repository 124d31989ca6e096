// Package supervisor runs several independent fuzzing clients concurrently,
// each owning its own exclusive fuzzstate.State, and aggregates their event
// manager stats into one combined view.
package supervisor

import (
	"context"
	"sync"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/event"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzer"
	"github.com/emberfuzz/emberfuzz/internal/requester"
)

// StatsSource is whatever an event manager exposes for aggregation; both
// event.SimpleEventManager and event.WebEventManager satisfy it.
type StatsSource interface {
	Stats() event.Stats
}

// Client bundles everything one independent fuzzing client needs to run:
// its own Fuzzer (and therefore its own exclusive fuzzstate.State), its own
// executor, and its own event manager. Stats is optional — leave it nil if
// Events doesn't expose a Stats() snapshot.
type Client struct {
	Name   string
	Fuzzer *fuzzer.Fuzzer
	Exec   executor.Executor
	Events fuzzer.EventManager
	Stats  StatsSource
}

// Supervisor runs N independent fuzzing clients concurrently on a bounded
// goroutine pool. Built directly on requester.WorkerPool, adapted from
// short request-handling tasks to long-running fuzzer loops: one Submit per
// client, each call blocking for that client's entire run rather than a
// single unit of work.
type Supervisor struct {
	pool *requester.WorkerPool

	mu      sync.Mutex
	clients []*Client
}

// New builds a Supervisor able to run up to size clients concurrently.
func New(size int) (*Supervisor, error) {
	pool, err := requester.NewWorkerPool(&requester.WorkerPoolOptions{
		Size:        size,
		PreAlloc:    true,
		MaxBlocking: size,
	})
	if err != nil {
		return nil, err
	}
	return &Supervisor{pool: pool}, nil
}

// Spawn submits c to run until ctx is cancelled or its loop returns on its
// own (e.g. ferr.ShuttingDown). Spawn does not block; call Wait or Shutdown
// to block until every spawned client has returned.
func (s *Supervisor) Spawn(ctx context.Context, c *Client) error {
	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.mu.Unlock()

	return s.pool.SubmitWithError(func() error {
		return c.Fuzzer.Run(ctx, c.Exec, c.Events)
	})
}

// Wait blocks until every spawned client's Run has returned.
func (s *Supervisor) Wait() {
	s.pool.Wait()
}

// Shutdown waits for running clients to finish and releases the pool.
func (s *Supervisor) Shutdown() {
	s.pool.Shutdown()
}

// PoolStats reports how many clients have been submitted, completed, and
// errored across this Supervisor's lifetime.
func (s *Supervisor) PoolStats() requester.PoolStats {
	return s.pool.Stats()
}

// ClientCount returns how many clients have been spawned so far.
func (s *Supervisor) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Aggregate sums every client's stats snapshot that exposes one into a
// single combined Stats, for a top-level view showing fleet-wide totals
// rather than per-client detail.
func (s *Supervisor) Aggregate() event.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agg event.Stats
	for _, c := range s.clients {
		if c.Stats == nil {
			continue
		}
		snap := c.Stats.Stats()

		if agg.StartTime.IsZero() || (!snap.StartTime.IsZero() && snap.StartTime.Before(agg.StartTime)) {
			agg.StartTime = snap.StartTime
		}
		agg.Executions += snap.Executions
		agg.CorpusSize += snap.CorpusSize
		agg.SolutionCount += snap.SolutionCount
		agg.CrashCount += snap.CrashCount
		if snap.LastNewCover.After(agg.LastNewCover) {
			agg.LastNewCover = snap.LastNewCover
		}
	}
	return agg
}

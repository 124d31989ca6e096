// Package requester provides the replay engine used to re-send recorded
// solutions at a live target: once the fuzzer loop stamps a testcase as a
// solution, ReplayEngine confirms it reproduces outside the fuzzer loop
// before it's reported, fanning the confirmation runs out across a bounded
// worker pool instead of replaying one at a time.
package requester

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
)

// ReplayEngine fires a batch of solution testcases at a target URL
// concurrently, rate-limited the same way NetworkExecutor is, and collects
// each confirmation result for the caller to inspect.
type ReplayEngine struct {
	client    *Client
	pool      *WorkerPool
	limiter   *rate.Limiter
	results   chan *Result
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
	mu        sync.RWMutex
	isRunning bool

	totalRequests   int64
	successRequests int64
	failedRequests  int64
	startTime       time.Time
}

// Result pairs a replayed solution with the response it produced.
type Result struct {
	Testcase *corpus.Testcase
	Request  *Request
	Response *Response
	// Reproduced is true when Response status >= 500, matching the crash
	// condition NetworkExecutor itself uses.
	Reproduced bool
}

// ReplayEngineOptions configures the replay engine.
type ReplayEngineOptions struct {
	Workers   int
	RPS       int
	Timeout   time.Duration
	UserAgent string
}

// DefaultReplayEngineOptions returns sensible defaults.
func DefaultReplayEngineOptions() *ReplayEngineOptions {
	return &ReplayEngineOptions{
		Workers:   50,
		RPS:       100,
		Timeout:   10 * time.Second,
		UserAgent: "emberfuzz/1.0",
	}
}

// NewReplayEngine creates a new replay engine.
func NewReplayEngine(opts *ReplayEngineOptions) (*ReplayEngine, error) {
	if opts == nil {
		opts = DefaultReplayEngineOptions()
	}

	client := NewClient(&ClientOptions{
		Timeout:   opts.Timeout,
		UserAgent: opts.UserAgent,
	})

	pool, err := NewWorkerPool(&WorkerPoolOptions{
		Size: opts.Workers,
	})
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS)
	ctx, cancel := context.WithCancel(context.Background())

	return &ReplayEngine{
		client:  client,
		pool:    pool,
		limiter: limiter,
		results: make(chan *Result, opts.Workers*2),
		ctx:     ctx,
		cancel:  cancel,
		logger:  slog.Default(),
	}, nil
}

// Start begins accepting replay submissions.
func (e *ReplayEngine) Start() {
	e.mu.Lock()
	e.isRunning = true
	e.startTime = time.Now()
	e.mu.Unlock()

	e.logger.Info("replay engine started",
		slog.Int("workers", e.pool.Stats().Capacity),
	)
}

// Stop gracefully stops the engine.
func (e *ReplayEngine) Stop() {
	e.mu.Lock()
	e.isRunning = false
	e.mu.Unlock()

	e.cancel()
	e.pool.Shutdown()
	close(e.results)

	e.logger.Info("replay engine stopped",
		slog.Int64("total_requests", e.totalRequests),
		slog.Int64("success", e.successRequests),
		slog.Int64("failed", e.failedRequests),
	)
}

// Submit replays tc's bytes as a request body against method/url.
func (e *ReplayEngine) Submit(tc *corpus.Testcase, method, url string, headers map[string]string) error {
	e.mu.RLock()
	if !e.isRunning {
		e.mu.RUnlock()
		return ErrEngineNotRunning
	}
	e.mu.RUnlock()

	if err := e.limiter.Wait(e.ctx); err != nil {
		return err
	}

	req := &Request{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    tc.Input.Bytes(),
	}

	return e.pool.Submit(func() {
		resp := e.client.Do(req)

		e.mu.Lock()
		e.totalRequests++
		if resp.Error == nil && resp.StatusCode < 500 {
			e.successRequests++
		} else {
			e.failedRequests++
		}
		e.mu.Unlock()

		select {
		case e.results <- &Result{
			Testcase:   tc,
			Request:    req,
			Response:   resp,
			Reproduced: resp.Error == nil && resp.StatusCode >= 500,
		}:
		case <-e.ctx.Done():
		}
	})
}

// Results returns the channel for receiving replay results.
func (e *ReplayEngine) Results() <-chan *Result {
	return e.results
}

// EngineStats reports current replay engine statistics.
type EngineStats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RequestsPerSec  float64
	RunningWorkers  int
	Uptime          time.Duration
}

// Stats returns current statistics.
func (e *ReplayEngine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	uptime := time.Since(e.startTime)
	rps := float64(0)
	if uptime.Seconds() > 0 {
		rps = float64(e.totalRequests) / uptime.Seconds()
	}

	poolStats := e.pool.Stats()

	return EngineStats{
		TotalRequests:   e.totalRequests,
		SuccessRequests: e.successRequests,
		FailedRequests:  e.failedRequests,
		RequestsPerSec:  rps,
		RunningWorkers:  poolStats.Running,
		Uptime:          uptime,
	}
}

// ErrEngineNotRunning is returned by Submit before Start or after Stop.
var ErrEngineNotRunning = &EngineError{Message: "replay engine is not running"}

// EngineError reports a replay engine failure.
type EngineError struct {
	Message string
}

func (e *EngineError) Error() string {
	return e.Message
}

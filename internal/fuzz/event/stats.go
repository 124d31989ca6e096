// Package event implements the event-sink side of the fuzzer loop contract
// (stage.EventManager / fuzzer.EventManager): a terminal dashboard built on
// bubbletea/lipgloss, and a websocket-broadcasting dashboard built on
// gofiber, both driven by the same FireNewTestcase/FireSolution/FireCrash/
// ProcessEvents calls the fuzzer loop issues.
package event

import (
	"sync"
	"time"
)

// Stats is the thread-safe counter set both dashboards display, updated
// from the fuzzer-loop goroutine and read from a UI goroutine.
type Stats struct {
	mu sync.RWMutex

	StartTime     time.Time
	Executions    int64
	CorpusSize    int64
	SolutionCount int64
	CrashCount    int64
	LastNewCover  time.Time
}

// NewStats builds a Stats instance timestamped at construction.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// RecordNewTestcase bumps the corpus counter and timestamps the last new
// coverage discovery.
func (s *Stats) RecordNewTestcase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CorpusSize++
	s.LastNewCover = time.Now()
}

// RecordSolution bumps the solutions counter.
func (s *Stats) RecordSolution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SolutionCount++
}

// RecordCrash bumps the crash counter.
func (s *Stats) RecordCrash() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CrashCount++
}

// SetExecutions overwrites the execution counter from the authoritative
// fuzzstate.State value.
func (s *Stats) SetExecutions(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Executions = n
}

// Snapshot returns a copy safe to read without holding the lock.
func (s *Stats) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		StartTime:     s.StartTime,
		Executions:    s.Executions,
		CorpusSize:    s.CorpusSize,
		SolutionCount: s.SolutionCount,
		CrashCount:    s.CrashCount,
		LastNewCover:  s.LastNewCover,
	}
}

// ExecsPerSec derives a throughput figure from Executions and StartTime.
func (s Stats) ExecsPerSec() float64 {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Executions) / elapsed
}

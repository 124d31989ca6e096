// Package fuzzstate defines the aggregate State a single fuzzer-loop client
// exclusively owns: rng, corpora, feedback side-band store, metadata, and
// counters. No concurrent mutation of one State is ever permitted; a
// multi-client run hands each goroutine its own State (see
// internal/fuzz/supervisor).
package fuzzstate

import (
	"math/rand"
	"sync/atomic"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
)

// FeedbackState is the side-band, serializable store a feedback keeps across
// inputs (e.g. the novelty mask for MapFeedback). The tuple of all feedback
// states is modeled as an ordered map keyed by name, per design note (a) in
// SPEC_FULL.md: a string name plus a runtime type assertion stands in for
// the source's compile-time heterogeneous tuple.
type FeedbackState interface {
	// Name identifies this state's owning feedback, used as its Store key.
	Name() string
}

// State is the aggregate every fuzzer-loop client owns exclusively.
type State struct {
	Rng       *rand.Rand
	Corpus    *corpus.Corpus
	Solutions *corpus.Corpus

	store    *Store
	metadata map[string]interface{}

	seed       int64
	executions int64
	perf       []uint64
}

// New builds a State with fresh, empty corpora seeded from the given rng
// seed. dir/solutionsDir are the on-disk roots for each corpus; pass "" for
// an in-memory-only corpus.
func New(seed int64, dir, solutionsDir string) *State {
	return &State{
		Rng:       rand.New(rand.NewSource(seed)),
		Corpus:    corpus.New(dir),
		Solutions: corpus.New(solutionsDir),
		store:     NewStore(nil),
		metadata:  make(map[string]interface{}),
		seed:      seed,
	}
}

// Store returns the feedback-state side-band store.
func (s *State) Store() *Store { return s.store }

// IncExecutions bumps the execution counter by one, called by the executor
// immediately after a target run completes (spec step "executions_mut() += 1").
func (s *State) IncExecutions() int64 {
	return atomic.AddInt64(&s.executions, 1)
}

// Executions returns the total number of completed target runs.
func (s *State) Executions() int64 {
	return atomic.LoadInt64(&s.executions)
}

// SetMetadata stores an arbitrary top-level value on the state, for
// components that need a place to stash run-scoped data outside any
// feedback's own FeedbackState (e.g. the dictionary engine's harvested
// constants).
func (s *State) SetMetadata(key string, value interface{}) {
	s.metadata[key] = value
}

// GetMetadata retrieves a value set by SetMetadata.
func (s *State) GetMetadata(key string) (interface{}, bool) {
	v, ok := s.metadata[key]
	return v, ok
}

// PerfCounters returns the performance-accounting slice backing
// IsInterestingWithPerf, growing it to at least n entries.
func (s *State) PerfCounters(n int) []uint64 {
	if len(s.perf) < n {
		grown := make([]uint64, n)
		copy(grown, s.perf)
		s.perf = grown
	}
	return s.perf
}

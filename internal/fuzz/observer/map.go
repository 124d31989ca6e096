package observer

import "github.com/emberfuzz/emberfuzz/internal/coverage"

// MapObserver adapts an AFL-style CoverageMap into the Observer contract:
// PreExec resets the per-execution bitmap, PostExec is a no-op because the
// executor records edges directly into the map as the target runs
// (in-process) or decodes a shared-memory region into it (forkserver).
type MapObserver struct {
	name string
	em   *coverage.CoverageMap
}

// NewMapObserver allocates a fresh CoverageMap of bitmapSize entries.
func NewMapObserver(name string, bitmapSize int) *MapObserver {
	return &MapObserver{name: name, em: coverage.NewCoverageMap(bitmapSize)}
}

func (m *MapObserver) Name() string { return m.name }

// PreExec clears the map so this execution's coverage is measured in
// isolation.
func (m *MapObserver) PreExec() error {
	m.em.Reset()
	return nil
}

// PostExec is intentionally empty: RecordEdge is called inline by the
// executor while the target runs, not after the fact.
func (m *MapObserver) PostExec() error { return nil }

// Map exposes the underlying coverage map so the executor can call
// RecordEdge and a MapFeedback can call GetStats/Hash against it.
func (m *MapObserver) Map() *coverage.CoverageMap { return m.em }

package fuzzstate

import (
	"io"
	"math/rand"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
)

// Snapshotable is implemented by a FeedbackState that can export and restore
// its internal data across a State round-trip. It is declared here rather
// than imported from the feedback package that defines its implementers
// (MapFeedback's and SimilarityFeedback's states) because feedback already
// imports executor, and executor imports fuzzstate — fuzzstate importing
// feedback directly would close that cycle. A FeedbackState that doesn't
// implement Snapshotable is still named in a snapshot but carries no data.
type Snapshotable interface {
	FeedbackState
	MarshalState() (interface{}, error)
	UnmarshalState(raw []byte) error
}

type feedbackStateSnapshot struct {
	Name string `yaml:"name"`
	Data string `yaml:"data,omitempty"`
}

// Snapshot is the single self-contained document a State serializes to and
// from: the rng seed, execution counter, every registered feedback state's
// data (by name, in registration order), and both corpora's entries.
type Snapshot struct {
	Seed           int64                     `yaml:"seed"`
	Executions     int64                     `yaml:"executions"`
	FeedbackStates []feedbackStateSnapshot   `yaml:"feedback_states,omitempty"`
	Corpus         []corpus.TestcaseSnapshot `yaml:"corpus"`
	Solutions      []corpus.TestcaseSnapshot `yaml:"solutions"`
}

// Serialize writes s as one YAML document to w: the rng seed, execution
// counter, every FeedbackState registered in s.Store that implements
// Snapshotable, and both corpora's entries, in insertion order.
func (s *State) Serialize(w io.Writer) error {
	snap := Snapshot{
		Seed:       s.seed,
		Executions: s.Executions(),
		Corpus:     s.Corpus.Snapshot(),
		Solutions:  s.Solutions.Snapshot(),
	}

	for _, fs := range s.store.All() {
		fss := feedbackStateSnapshot{Name: fs.Name()}
		if sn, ok := fs.(Snapshotable); ok {
			data, err := sn.MarshalState()
			if err != nil {
				return err
			}
			raw, err := yaml.Marshal(data)
			if err != nil {
				return err
			}
			fss.Data = string(raw)
		}
		snap.FeedbackStates = append(snap.FeedbackStates, fss)
	}

	return yaml.NewEncoder(w).Encode(snap)
}

// Deserialize reads a Snapshot written by Serialize from r and restores it
// into s in place: the rng is reseeded from the persisted seed, the
// execution counter is reset to the persisted value, both corpora are
// replaced with the persisted entries, and every FeedbackState already
// registered in s.Store has its data restored by name. Deserialize assumes
// the caller has already built s with the same feedback pipeline as the run
// that was serialized (so the matching FeedbackStates are registered in
// s.Store before this is called) — a persisted name with no registered
// match is skipped rather than treated as an error.
func (s *State) Deserialize(r io.Reader) error {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return err
	}

	s.Rng = rand.New(rand.NewSource(snap.Seed))
	s.seed = snap.Seed
	atomic.StoreInt64(&s.executions, snap.Executions)
	s.Corpus.Restore(snap.Corpus)
	s.Solutions.Restore(snap.Solutions)

	for _, fss := range snap.FeedbackStates {
		fs, ok := s.store.Get(fss.Name)
		if !ok || fss.Data == "" {
			continue
		}
		sn, ok := fs.(Snapshotable)
		if !ok {
			continue
		}
		if err := sn.UnmarshalState([]byte(fss.Data)); err != nil {
			return err
		}
	}
	return nil
}

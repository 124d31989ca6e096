package feedback

import (
	"gopkg.in/yaml.v3"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// Reducer combines an observed byte with the best value seen so far for the
// same map index, the way MapFeedback decides whether a run improved on
// history.
type Reducer func(observed, best byte) byte

// ReduceMax keeps the larger of the two values; a run is interesting only
// when it strictly exceeds every prior value at some index.
func ReduceMax(observed, best byte) byte {
	if observed > best {
		return observed
	}
	return best
}

// ReduceOr treats any nonzero bit as "seen"; novelty is whichever bits the
// current run sets that history hadn't.
func ReduceOr(observed, best byte) byte {
	return observed | best
}

// noveltyState is the FeedbackState MapFeedback keeps in the fuzzstate.Store
// under its own name: the best-seen value at every map index.
type noveltyState struct {
	name string
	best []byte
}

func (s *noveltyState) Name() string { return s.name }

// noveltyStateData is the yaml-marshaled shape of a noveltyState, satisfying
// fuzzstate.Snapshotable without fuzzstate needing to import this package.
type noveltyStateData struct {
	Best []byte `yaml:"best"`
}

func (s *noveltyState) MarshalState() (interface{}, error) {
	return noveltyStateData{Best: s.best}, nil
}

func (s *noveltyState) UnmarshalState(raw []byte) error {
	var data noveltyStateData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return err
	}
	s.best = data.Best
	return nil
}

// MapFeedback is true iff the current run's coverage map contains at least
// one index whose value exceeds the stored novelty value under the
// configured reducer. It is a concrete map-shaped novelty feedback built on
// the AFL-style CoverageMap in internal/coverage.
type MapFeedback struct {
	name    string
	obsName string
	reduce  Reducer
	state   *noveltyState

	// staged holds the pending novelty update between IsInteresting and
	// AppendMetadata/DiscardMetadata, so a rejected input never pollutes
	// the persisted novelty mask.
	staged       []byte
	stagedEdges  int
	hasStaged    bool
}

// NewMapFeedback builds a MapFeedback reading the MapObserver named
// obsName. reduce selects how novelty is judged; pass ReduceMax or ReduceOr.
func NewMapFeedback(name, obsName string, reduce Reducer) *MapFeedback {
	return &MapFeedback{
		name:    name,
		obsName: obsName,
		reduce:  reduce,
		state:   &noveltyState{name: name},
	}
}

func (f *MapFeedback) Name() string { return f.name }
func (f *MapFeedback) Size() int    { return 1 }

func (f *MapFeedback) IsInteresting(obs *observer.Set, _ executor.ExitKind) (bool, error) {
	o, err := obs.MustMatch(f.obsName)
	if err != nil {
		return false, err
	}
	mo, ok := o.(*observer.MapObserver)
	if !ok {
		return false, ferr.New(ferr.IllegalState, "observer %q is not a MapObserver", f.obsName)
	}

	stats := mo.Map().GetStats()
	bitmap := mo.Map().Bytes()

	if len(f.state.best) != len(bitmap) {
		f.state.best = make([]byte, len(bitmap))
	}

	interesting := false
	staged := make([]byte, len(bitmap))
	for i, v := range bitmap {
		best := f.state.best[i]
		reduced := f.reduce(v, best)
		staged[i] = reduced
		if reduced != best {
			interesting = true
		} else {
			staged[i] = best
		}
	}

	f.staged = staged
	f.stagedEdges = int(stats.EdgesCovered)
	f.hasStaged = true
	return interesting, nil
}

func (f *MapFeedback) AppendMetadata(tc *corpus.Testcase) error {
	if !f.hasStaged {
		return ferr.New(ferr.IllegalState, "MapFeedback %q: AppendMetadata called without a preceding IsInteresting", f.name)
	}
	f.state.best = f.staged
	if tc.Metadata == nil {
		tc.Metadata = make(map[string]interface{})
	}
	tc.Metadata[corpus.EdgesCoveredKey] = f.stagedEdges
	f.staged = nil
	f.hasStaged = false
	return nil
}

func (f *MapFeedback) DiscardMetadata() error {
	f.staged = nil
	f.hasStaged = false
	return nil
}

// State returns the FeedbackState this MapFeedback maintains, for
// registration into a fuzzstate.Store so it persists across serialization.
func (f *MapFeedback) State() interface{ Name() string } { return f.state }

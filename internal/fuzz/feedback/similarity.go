package feedback

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emberfuzz/emberfuzz/internal/analyzer"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// similarityState is the FeedbackState SimilarityFeedback keeps: every
// locality-sensitive hash retained so far because some prior execution's
// response was judged structurally distinct from everything already seen.
type similarityState struct {
	name   string
	hashes []analyzer.SimHash
}

func (s *similarityState) Name() string { return s.name }

// similarityStateData is the yaml-marshaled shape of a similarityState,
// satisfying fuzzstate.Snapshotable without fuzzstate needing to import this
// package. SimHash is a uint64 alias, so it round-trips as a plain list.
type similarityStateData struct {
	Hashes []uint64 `yaml:"hashes"`
}

func (s *similarityState) MarshalState() (interface{}, error) {
	hashes := make([]uint64, len(s.hashes))
	for i, h := range s.hashes {
		hashes[i] = uint64(h)
	}
	return similarityStateData{Hashes: hashes}, nil
}

func (s *similarityState) UnmarshalState(raw []byte) error {
	var data similarityStateData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return err
	}
	hashes := make([]analyzer.SimHash, len(data.Hashes))
	for i, h := range data.Hashes {
		hashes[i] = analyzer.SimHash(h)
	}
	s.hashes = hashes
	return nil
}

// SimilarityFeedback is true iff the current execution's response is
// structurally distinct (by SimHash distance) from every retained exemplar.
// It exists for executors that cannot expose a real edge bitmap — the
// NetworkExecutor records only a status code and a response body, so a
// MapFeedback over its MapObserver would never see novelty. This leaf never
// inspects what the response means, only how far its content hash sits from
// what's already been kept, so it stays within the "core does not interpret
// coverage" boundary the same way MapFeedback does.
type SimilarityFeedback struct {
	name      string
	obsName   string
	threshold int
	hasher    *analyzer.SimHasher
	state     *similarityState

	staged    analyzer.SimHash
	hasStaged bool
}

// NewSimilarityFeedback builds a SimilarityFeedback reading the
// ResponseObserver named obsName. threshold is the minimum SimHash Hamming
// distance (0-64) a response must clear from every retained exemplar to
// count as novel; callers in this repository pass 16, a quarter of the bits.
func NewSimilarityFeedback(name, obsName string, threshold int) *SimilarityFeedback {
	return &SimilarityFeedback{
		name:      name,
		obsName:   obsName,
		threshold: threshold,
		hasher:    analyzer.NewSimHasher(),
		state:     &similarityState{name: name},
	}
}

func (f *SimilarityFeedback) Name() string { return f.name }
func (f *SimilarityFeedback) Size() int    { return 1 }

func (f *SimilarityFeedback) IsInteresting(obs *observer.Set, _ executor.ExitKind) (bool, error) {
	o, err := obs.MustMatch(f.obsName)
	if err != nil {
		return false, err
	}
	ro, ok := o.(*observer.ResponseObserver)
	if !ok {
		return false, ferr.New(ferr.IllegalState, "observer %q is not a ResponseObserver", f.obsName)
	}

	// An HTML error page often re-renders the exact same markup around a
	// stack trace or message whose literal text changes run to run (a
	// request ID, a timestamp); hashing DOM structure instead of tokens
	// keeps those pages from being treated as endlessly novel.
	body := string(ro.Body)
	var hash analyzer.SimHash
	if looksLikeHTML(body) {
		hash = f.hasher.ComputeFromHTML(body)
	} else {
		hash = f.hasher.Compute(body)
	}

	interesting := len(f.state.hashes) == 0
	for _, seen := range f.state.hashes {
		if hash.Distance(seen) >= f.threshold {
			interesting = true
		} else {
			interesting = false
			break
		}
	}

	f.staged = hash
	f.hasStaged = true
	return interesting, nil
}

func (f *SimilarityFeedback) AppendMetadata(tc *corpus.Testcase) error {
	if !f.hasStaged {
		return ferr.New(ferr.IllegalState, "SimilarityFeedback %q: AppendMetadata called without a preceding IsInteresting", f.name)
	}
	f.state.hashes = append(f.state.hashes, f.staged)
	if tc.Metadata == nil {
		tc.Metadata = make(map[string]interface{})
	}
	tc.Metadata[SimHashKey] = uint64(f.staged)
	f.hasStaged = false
	return nil
}

func (f *SimilarityFeedback) DiscardMetadata() error {
	f.hasStaged = false
	return nil
}

// State returns the FeedbackState this SimilarityFeedback maintains, for
// registration into a fuzzstate.Store so it persists across serialization.
func (f *SimilarityFeedback) State() interface{ Name() string } { return f.state }

// SimHashKey is the Testcase.Metadata key SimilarityFeedback stamps with the
// retained input's SimHash value.
const SimHashKey = "response_simhash"

func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html")
}

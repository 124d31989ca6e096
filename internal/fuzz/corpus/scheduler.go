package corpus

import (
	"math"
	"math/rand"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
)

// EdgesCoveredKey is the Testcase.Metadata key a MapFeedback stamps with the
// number of map entries the accepted run covered, consumed by
// WeightedScheduler.
const EdgesCoveredKey = "edges_covered"

// Scheduler picks which retained testcase to try next. It may consult
// arbitrary corpus/testcase metadata but must never return an index outside
// [0, corpus.Count()).
type Scheduler interface {
	Next(rng *rand.Rand, c *Corpus) (int, error)
	OnAdd(c *Corpus, idx int)
	OnReplace(c *Corpus, idx int, prev *Testcase)
	OnRemove(c *Corpus, idx int, prev *Testcase) error
}

// RandScheduler picks uniformly at random among retained testcases.
type RandScheduler struct{}

// NewRandScheduler builds a RandScheduler.
func NewRandScheduler() *RandScheduler { return &RandScheduler{} }

func (s *RandScheduler) Next(rng *rand.Rand, c *Corpus) (int, error) {
	n := c.Count()
	if n == 0 {
		return 0, ferr.New(ferr.Empty, "corpus is empty, scheduler has nothing to pick")
	}
	return rng.Intn(n), nil
}

func (s *RandScheduler) OnAdd(c *Corpus, idx int)                         {}
func (s *RandScheduler) OnReplace(c *Corpus, idx int, prev *Testcase)     {}
func (s *RandScheduler) OnRemove(c *Corpus, idx int, prev *Testcase) error { return nil }

// WeightedScheduler favors entries with more covered edges: weight =
// log2(edges_covered+1). It falls back to uniform selection once no entry
// in the corpus carries coverage metadata, since a weighted draw over
// all-zero weights is undefined.
type WeightedScheduler struct {
	rand *RandScheduler
}

// NewWeightedScheduler builds a WeightedScheduler.
func NewWeightedScheduler() *WeightedScheduler {
	return &WeightedScheduler{rand: NewRandScheduler()}
}

func (s *WeightedScheduler) Next(rng *rand.Rand, c *Corpus) (int, error) {
	n := c.Count()
	if n == 0 {
		return 0, ferr.New(ferr.Empty, "corpus is empty, scheduler has nothing to pick")
	}

	weights := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		tc, err := c.Get(i)
		if err != nil {
			return 0, err
		}
		w := 0.0
		if edges, ok := tc.Metadata[EdgesCoveredKey].(int); ok && edges > 0 {
			w = math.Log2(float64(edges) + 1)
		}
		weights[i] = w
		total += w
	}

	if total <= 0 {
		return s.rand.Next(rng, c)
	}

	pick := rng.Float64() * total
	cursor := 0.0
	for i, w := range weights {
		cursor += w
		if pick <= cursor {
			return i, nil
		}
	}
	return n - 1, nil
}

func (s *WeightedScheduler) OnAdd(c *Corpus, idx int)                     {}
func (s *WeightedScheduler) OnReplace(c *Corpus, idx int, prev *Testcase) {}
func (s *WeightedScheduler) OnRemove(c *Corpus, idx int, prev *Testcase) error {
	return nil
}

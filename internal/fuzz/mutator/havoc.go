package mutator

import (
	"math/rand"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// DefaultHavocStackMax bounds how many primitives HavocMutator chains
// together in a single Mutate call.
const DefaultHavocStackMax = 8

// HavocMutator stacks several randomly (weight-biased) chosen primitive
// mutations per round, and adjusts each primitive's weight in PostExec based
// on whether the round it last ran in produced a new corpus entry — a
// minimal havoc-scheduling policy: operators that have recently paid off get
// drawn more often.
type HavocMutator struct {
	primitives []primitive
	weights    []float64
	stackMax   int

	lastPicks []int // primitive indices used in the most recent Mutate call
}

// NewHavocMutator builds a HavocMutator over the default primitive set, all
// starting at equal weight.
func NewHavocMutator() *HavocMutator {
	prims := defaultPrimitives()
	weights := make([]float64, len(prims))
	for i := range weights {
		weights[i] = 1.0
	}
	return &HavocMutator{primitives: prims, weights: weights, stackMax: DefaultHavocStackMax}
}

func (m *HavocMutator) Name() string { return "havoc" }

func (m *HavocMutator) pick(rng *rand.Rand) int {
	total := 0.0
	for _, w := range m.weights {
		total += w
	}
	if total <= 0 {
		return rng.Intn(len(m.primitives))
	}
	target := rng.Float64() * total
	cursor := 0.0
	for i, w := range m.weights {
		cursor += w
		if target <= cursor {
			return i
		}
	}
	return len(m.primitives) - 1
}

// Mutate stacks 1..stackMax weighted primitive draws onto in, round is
// unused here (every round is independent; a stacking count is re-rolled
// each call).
func (m *HavocMutator) Mutate(state *fuzzstate.State, in *input.Bytes, round int) error {
	if in == nil {
		return ferr.New(ferr.IllegalArgument, "havoc mutator requires a non-nil input")
	}

	n := 1 + state.Rng.Intn(m.stackMax)
	data := in.Bytes()
	picks := make([]int, 0, n)

	for i := 0; i < n; i++ {
		idx := m.pick(state.Rng)
		picks = append(picks, idx)
		data = m.primitives[idx].apply(state.Rng, data)
	}

	m.lastPicks = picks
	*in = input.NewBytes(data)
	return nil
}

// PostExec rewards every primitive used in the round that just finished when
// it produced a new corpus entry, the way a weighted havoc scheduler tracks
// which operators are currently productive. Weights are never decreased.
func (m *HavocMutator) PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error {
	if newCorpusIdx == nil {
		return nil
	}
	for _, idx := range m.lastPicks {
		m.weights[idx] += 1.0
	}
	return nil
}

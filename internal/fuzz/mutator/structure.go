package mutator

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// StructureAwareMutator mutates one leaf value of a JSON document in place,
// preserving the surrounding structure. It locates the leaf's exact byte
// range via gjson.Result.Index rather than re-serializing the whole
// document, so mutation never perturbs key order, whitespace, or number
// formatting anywhere but the chosen leaf.
type StructureAwareMutator struct{}

// NewStructureAwareMutator builds a StructureAwareMutator.
func NewStructureAwareMutator() *StructureAwareMutator { return &StructureAwareMutator{} }

func (m *StructureAwareMutator) Name() string { return "structure_aware_json" }

type jsonLeaf struct {
	value gjson.Result
}

func collectLeaves(v gjson.Result) []jsonLeaf {
	var leaves []jsonLeaf
	if v.IsObject() || v.IsArray() {
		v.ForEach(func(_, val gjson.Result) bool {
			leaves = append(leaves, collectLeaves(val)...)
			return true
		})
		return leaves
	}
	return []jsonLeaf{{value: v}}
}

// Mutate parses in as JSON and, if it is valid and has at least one leaf
// with a known byte offset, replaces that leaf's raw text with a
// type-appropriate mutated value. Non-JSON or offset-less input (gjson
// reports Index 0 for a value it cannot place, e.g. one reached through
// certain escaped-key paths) is left untouched rather than falling back to
// whole-document re-serialization.
func (m *StructureAwareMutator) Mutate(state *fuzzstate.State, in *input.Bytes, round int) error {
	if in == nil {
		return ferr.New(ferr.IllegalArgument, "structure-aware mutator requires a non-nil input")
	}

	data := in.Bytes()
	if !gjson.ValidBytes(data) {
		return nil
	}
	root := gjson.ParseBytes(data)
	leaves := collectLeaves(root)
	if len(leaves) == 0 {
		return nil
	}

	leaf := leaves[state.Rng.Intn(len(leaves))].value
	if leaf.Index == 0 {
		return nil
	}

	replacement := mutateLeafRaw(state, leaf)
	start := leaf.Index
	end := start + len(leaf.Raw)
	if end > len(data) {
		return nil
	}

	out := make([]byte, 0, len(data)-len(leaf.Raw)+len(replacement))
	out = append(out, data[:start]...)
	out = append(out, replacement...)
	out = append(out, data[end:]...)

	*in = input.NewBytes(out)
	return nil
}

// PostExec is a no-op: this mutator carries no cross-round state.
func (m *StructureAwareMutator) PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error {
	return nil
}

func mutateLeafRaw(state *fuzzstate.State, leaf gjson.Result) string {
	switch leaf.Type {
	case gjson.String:
		s := leaf.Str
		if len(s) == 0 {
			return strconv.Quote("'")
		}
		b := []byte(s)
		b[state.Rng.Intn(len(b))] ^= 0xFF
		return strconv.Quote(string(b))
	case gjson.Number:
		n := leaf.Num
		n += float64(interesting32[state.Rng.Intn(len(interesting32))])
		return strconv.FormatFloat(n, 'f', -1, 64)
	case gjson.True:
		return "false"
	case gjson.False:
		return "true"
	case gjson.Null:
		return "null"
	default:
		return leaf.Raw
	}
}

package mutator

import (
	"encoding/binary"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// DictionaryMutator performs input-to-state replacement: it reads the
// comparison operands a CmpObserver harvested during a preceding
// TracingStage run and splices the "other side" of a comparison directly
// into the input, the way AFL's redqueen/cmplog mutator turns "the target
// compared this input byte against 0x1337" into "so write 0x1337 there".
// It is constructed against a specific CmpObserver instance rather than
// discovering one through fuzzstate, since the wiring between a tracer's
// observer and the mutator that reads it is fixed at setup time.
type DictionaryMutator struct {
	cmp *observer.CmpObserver
}

// NewDictionaryMutator builds a DictionaryMutator reading cmp's most recent
// metadata.
func NewDictionaryMutator(cmp *observer.CmpObserver) *DictionaryMutator {
	return &DictionaryMutator{cmp: cmp}
}

func (m *DictionaryMutator) Name() string { return "dictionary" }

// Mutate picks one captured comparison at random and overwrites a
// same-width window of the input with its right-hand operand. Numeric
// operands are written little-endian; a Bytes operand is spliced in
// verbatim, truncated to fit if the input is shorter than the operand.
func (m *DictionaryMutator) Mutate(state *fuzzstate.State, in *input.Bytes, round int) error {
	if in == nil {
		return ferr.New(ferr.IllegalArgument, "dictionary mutator requires a non-nil input")
	}

	meta := m.cmp.Metadata()
	if len(meta.List) == 0 {
		return nil
	}

	v := meta.List[state.Rng.Intn(len(meta.List))]
	data := append([]byte(nil), in.Bytes()...)
	if len(data) == 0 {
		return nil
	}

	switch v.Kind {
	case observer.CmpU8:
		data[state.Rng.Intn(len(data))] = v.U8[1]
	case observer.CmpU16:
		writeLE(data, state.Rng.Intn(maxPos(len(data), 2)), uint64(v.U16[1]), 2)
	case observer.CmpU32:
		writeLE(data, state.Rng.Intn(maxPos(len(data), 4)), uint64(v.U32[1]), 4)
	case observer.CmpU64:
		writeLE(data, state.Rng.Intn(maxPos(len(data), 8)), v.U64[1], 8)
	case observer.CmpBytes:
		n := len(v.Bytes[1])
		if n == 0 {
			return nil
		}
		pos := state.Rng.Intn(maxPos(len(data), n))
		copy(data[pos:], v.Bytes[1])
	}

	*in = input.NewBytes(data)
	return nil
}

// PostExec is a no-op: the dictionary mutator has no internal scheduling
// state to adjust between rounds.
func (m *DictionaryMutator) PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error {
	return nil
}

// maxPos returns the number of valid starting positions for a width-byte
// window in a buffer of length n, never less than 1 so rng.Intn never sees 0.
func maxPos(n, width int) int {
	if n < width {
		return 1
	}
	if n-width+1 < 1 {
		return 1
	}
	return n - width + 1
}

func writeLE(data []byte, pos int, v uint64, width int) {
	if pos+width > len(data) {
		pos = 0
		if pos+width > len(data) {
			return
		}
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	copy(data[pos:pos+width], buf[:width])
}

package mutator

import (
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

func TestDictionaryMutatorSplicesU32Operand(t *testing.T) {
	mem := observer.NewMemCmpMap(1, 8)
	mem.RecordU32(0, 0x11111111, 0xdeadbeef)
	cmp := observer.NewCmpObserver("cmp", mem)
	if err := cmp.PreExec(); err != nil {
		t.Fatalf("PreExec: %v", err)
	}
	mem.RecordU32(0, 0x11111111, 0xdeadbeef)
	if err := cmp.PostExec(); err != nil {
		t.Fatalf("PostExec: %v", err)
	}

	state := fuzzstate.New(1, "", "")
	in := input.NewBytes(make([]byte, 16))
	m := NewDictionaryMutator(cmp)

	if err := m.Mutate(state, &in, 0); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	found := false
	data := in.Bytes()
	for i := 0; i+3 < len(data); i++ {
		v := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		if v == 0xdeadbeef {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the comparison's right-hand operand to appear somewhere in the mutated input")
	}
}

func TestDictionaryMutatorNoOpWithoutMetadata(t *testing.T) {
	mem := observer.NewMemCmpMap(1, 8)
	cmp := observer.NewCmpObserver("cmp", mem)

	state := fuzzstate.New(1, "", "")
	original := []byte("untouched")
	in := input.NewBytes(append([]byte(nil), original...))
	m := NewDictionaryMutator(cmp)

	if err := m.Mutate(state, &in, 0); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if string(in.Bytes()) != string(original) {
		t.Fatal("expected input unchanged when no comparison metadata is available")
	}
}

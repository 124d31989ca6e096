package trace

import (
	"bytes"
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

func TestExtractorRecordsNumericComparison(t *testing.T) {
	cm := observer.NewMemCmpMap(4, 8)
	ext := NewExtractor(cm)

	ext.Feed([]byte("CMP idx=2 a=0x1337 b=0xcafe\nnoise\n"))

	v, ok := cm.ValuesOf(2, 0)
	if !ok {
		t.Fatal("expected a recorded comparison at site 2")
	}
	lhs, rhs, numeric := v.ToU64Pair()
	if !numeric || lhs != 0x1337 || rhs != 0xcafe {
		t.Fatalf("unexpected values: %+v", v)
	}
}

func TestExtractorRecordsStringComparison(t *testing.T) {
	cm := observer.NewMemCmpMap(1, 8)
	ext := NewExtractor(cm)

	ext.Feed([]byte(`CMP idx=0 a="admin" b="guest"`))

	v, ok := cm.ValuesOf(0, 0)
	if !ok || v.Kind != observer.CmpBytes {
		t.Fatalf("expected a bytes comparison, got %+v ok=%v", v, ok)
	}
	if string(v.Bytes[0]) != "admin" || string(v.Bytes[1]) != "guest" {
		t.Fatalf("unexpected operands: %q %q", v.Bytes[0], v.Bytes[1])
	}
}

func TestExtractorIgnoresMalformedLines(t *testing.T) {
	cm := observer.NewMemCmpMap(1, 8)
	ext := NewExtractor(cm)

	ext.Feed([]byte("CMP idx=oops a=0x1 b=0x2\nCMP a=0x1 b=0x2\n"))

	if !cm.IsEmpty() {
		t.Fatal("expected malformed lines to be ignored")
	}
}

func TestCapturingHarnessFeedsExtractor(t *testing.T) {
	cm := observer.NewMemCmpMap(1, 8)
	ext := NewExtractor(cm)

	harness := CapturingHarness(func(data []byte, trace *bytes.Buffer) executor.ExitKind {
		trace.WriteString("CMP idx=0 a=0x5 b=0x6\n")
		return executor.Ok
	}, ext)

	if kind := harness([]byte("x")); kind != executor.Ok {
		t.Fatalf("expected Ok, got %v", kind)
	}

	if _, ok := cm.ValuesOf(0, 0); !ok {
		t.Fatal("expected the wrapped harness's trace output to be recorded")
	}
}

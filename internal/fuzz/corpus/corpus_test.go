package corpus

import (
	"math/rand"
	"os"
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

func TestCorpusAddGetCount(t *testing.T) {
	c := New("")
	idx := c.Add(NewTestcase(input.NewBytes([]byte("seed"))))
	if idx != 0 {
		t.Fatalf("expected first index 0, got %d", idx)
	}
	if c.Count() != 1 {
		t.Fatalf("expected count 1, got %d", c.Count())
	}

	tc, err := c.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(tc.Input.Bytes()) != "seed" {
		t.Fatalf("unexpected input: %q", tc.Input.Bytes())
	}
}

func TestCorpusContainsDedup(t *testing.T) {
	c := New("")
	seed := input.NewBytes([]byte("seed"))

	if c.Contains(seed) {
		t.Fatal("expected empty corpus to not contain seed")
	}

	c.Add(NewTestcase(seed))
	if !c.Contains(seed) {
		t.Fatal("expected corpus to contain seed after Add")
	}
	if !c.Contains(input.NewBytes([]byte("seed"))) {
		t.Fatal("expected Contains to match by content hash, not identity")
	}
	if c.Contains(input.NewBytes([]byte("different"))) {
		t.Fatal("expected Contains to reject unrelated content")
	}
}

func TestCorpusRemoveShiftsIndices(t *testing.T) {
	c := New("")
	c.Add(NewTestcase(input.NewBytes([]byte("a"))))
	c.Add(NewTestcase(input.NewBytes([]byte("b"))))
	c.Add(NewTestcase(input.NewBytes([]byte("c"))))

	if err := c.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	tc, _ := c.Get(0)
	if string(tc.Input.Bytes()) != "b" {
		t.Fatalf("expected index 0 to now hold 'b', got %q", tc.Input.Bytes())
	}
	if c.Count() != 2 {
		t.Fatalf("expected count 2 after remove, got %d", c.Count())
	}
}

func TestCorpusGetOutOfRange(t *testing.T) {
	c := New("")
	if _, err := c.Get(0); !ferr.Is(err, ferr.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestRandSchedulerEmptyCorpus(t *testing.T) {
	s := NewRandScheduler()
	rng := rand.New(rand.NewSource(1))
	if _, err := s.Next(rng, New("")); !ferr.Is(err, ferr.Empty) {
		t.Fatalf("expected Empty, got %v", err)
	}
}

func TestRandSchedulerWithinRange(t *testing.T) {
	c := New("")
	for i := 0; i < 5; i++ {
		c.Add(NewTestcase(input.NewBytes([]byte{byte(i)})))
	}
	s := NewRandScheduler()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		idx, err := s.Next(rng, c)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if idx < 0 || idx >= c.Count() {
			t.Fatalf("index %d out of range", idx)
		}
	}
}

func TestWeightedSchedulerFallsBackToUniform(t *testing.T) {
	c := New("")
	c.Add(NewTestcase(input.NewBytes([]byte("a"))))
	c.Add(NewTestcase(input.NewBytes([]byte("b"))))

	s := NewWeightedScheduler()
	rng := rand.New(rand.NewSource(1))
	idx, err := s.Next(rng, c)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if idx < 0 || idx >= c.Count() {
		t.Fatalf("index %d out of range", idx)
	}
}

func TestWeightedSchedulerPrefersHigherCoverage(t *testing.T) {
	c := New("")
	low := NewTestcase(input.NewBytes([]byte("low")))
	low.Metadata[EdgesCoveredKey] = 1
	high := NewTestcase(input.NewBytes([]byte("high")))
	high.Metadata[EdgesCoveredKey] = 1000
	c.Add(low)
	c.Add(high)

	s := NewWeightedScheduler()
	rng := rand.New(rand.NewSource(42))

	counts := map[int]int{}
	for i := 0; i < 500; i++ {
		idx, err := s.Next(rng, c)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		counts[idx]++
	}
	if counts[1] <= counts[0] {
		t.Fatalf("expected higher-coverage entry to be favored, counts=%v", counts)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "corpus-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	c := New(dir)
	c.Add(NewTestcase(input.NewBytes([]byte("hello world"))))
	if err := c.SaveAll(); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	reloaded := New(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Count() != 1 {
		t.Fatalf("expected 1 entry after reload, got %d", reloaded.Count())
	}
	tc, _ := reloaded.Get(0)
	if string(tc.Input.Bytes()) != "hello world" {
		t.Fatalf("unexpected reloaded content: %q", tc.Input.Bytes())
	}
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	dir, err := os.MkdirTemp("", "corpus-test-compressed-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	large := make([]byte, CompressionThreshold*2)
	for i := range large {
		large[i] = byte(i % 251)
	}

	c := New(dir)
	c.Add(NewTestcase(input.NewBytes(large)))
	if err := c.SaveAll(); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	reloaded := New(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	tc, _ := reloaded.Get(0)
	if len(tc.Input.Bytes()) != len(large) {
		t.Fatalf("expected %d bytes after decompression, got %d", len(large), len(tc.Input.Bytes()))
	}
}

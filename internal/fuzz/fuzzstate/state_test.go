package fuzzstate_test

import (
	"bytes"
	"testing"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/feedback"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// buildState assembles a State wired exactly the way cmd/emberfuzz's
// buildClient does: both feedbacks' states registered into the Store before
// anything is serialized or deserialized.
func buildState(seed int64) (*fuzzstate.State, *feedback.MapFeedback, *feedback.SimilarityFeedback) {
	state := fuzzstate.New(seed, "", "")
	mapFeedback := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	simFeedback := feedback.NewSimilarityFeedback("similarity_feedback", "response", 16)
	state.Store().Put(mapFeedback.State())
	state.Store().Put(simFeedback.State())
	return state, mapFeedback, simFeedback
}

// recordCoverage drives mapFeedback through one IsInteresting/AppendMetadata
// cycle against a MapObserver carrying the given edge, so its novelty state
// holds real content before a round trip.
func recordCoverage(t *testing.T, mapFeedback *feedback.MapFeedback, tc *corpus.Testcase, from, to uint32) {
	t.Helper()
	mo := observer.NewMapObserver("map", 1024)
	mo.Map().RecordEdge(from, to)
	set := observer.NewSet(mo)
	interesting, err := mapFeedback.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if !interesting {
		t.Fatal("expected a fresh edge to be interesting")
	}
	if err := mapFeedback.AppendMetadata(tc); err != nil {
		t.Fatalf("AppendMetadata: %v", err)
	}
}

// recordResponse drives simFeedback through one IsInteresting/AppendMetadata
// cycle against a ResponseObserver carrying body, so its retained SimHash
// set holds real content before a round trip.
func recordResponse(t *testing.T, simFeedback *feedback.SimilarityFeedback, tc *corpus.Testcase, body string) {
	t.Helper()
	ro := observer.NewResponseObserver("response")
	ro.Record(200, []byte(body))
	set := observer.NewSet(ro)
	if _, err := simFeedback.IsInteresting(set, executor.Ok); err != nil {
		t.Fatalf("IsInteresting: %v", err)
	}
	if err := simFeedback.AppendMetadata(tc); err != nil {
		t.Fatalf("AppendMetadata: %v", err)
	}
}

// TestStateRoundTrip exercises the scenario spec.md describes: a running
// State with 37 corpus entries and 3 solutions serializes, a freshly built
// State (with the same feedback pipeline registered) deserializes it, and
// every count matches so fuzzing can resume.
func TestStateRoundTrip(t *testing.T) {
	state, mapFeedback, simFeedback := buildState(7)

	const corpusSize = 37
	const solutionsSize = 3
	for i := 0; i < corpusSize; i++ {
		tc := corpus.NewTestcase(input.NewBytes([]byte{byte(i)}))
		recordCoverage(t, mapFeedback, tc, 0, uint32(i+1))
		recordResponse(t, simFeedback, tc, string(rune('a'+i%26)))
		state.Corpus.Add(tc)
	}
	for i := 0; i < solutionsSize; i++ {
		tc := corpus.NewTestcase(input.NewBytes([]byte{0xff, byte(i)}))
		state.Solutions.Add(tc)
	}
	for i := 0; i < 100; i++ {
		state.IncExecutions()
	}

	var buf bytes.Buffer
	if err := state.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored, restoredMap, restoredSim := buildState(0)
	if err := restored.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got := restored.Corpus.Count(); got != corpusSize {
		t.Fatalf("corpus count = %d, want %d", got, corpusSize)
	}
	if got := restored.Solutions.Count(); got != solutionsSize {
		t.Fatalf("solutions count = %d, want %d", got, solutionsSize)
	}
	if got := restored.Executions(); got != 100 {
		t.Fatalf("executions = %d, want 100", got)
	}
	if restored.Rng == nil {
		t.Fatal("expected a seeded rng after deserialize")
	}

	// A new edge the original state already marked novel must not be
	// interesting again — proof the novelty mask itself round-tripped, not
	// just the corpus it produced.
	mo := observer.NewMapObserver("map", 1024)
	mo.Map().RecordEdge(0, 1)
	set := observer.NewSet(mo)
	interesting, err := restoredMap.IsInteresting(set, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting after restore: %v", err)
	}
	if interesting {
		t.Fatal("expected the restored novelty state to already know edge 0->1")
	}

	// Likewise a response identical to one already retained must not read as
	// structurally novel after restore.
	ro := observer.NewResponseObserver("response")
	ro.Record(200, []byte("a"))
	respSet := observer.NewSet(ro)
	interesting, err = restoredSim.IsInteresting(respSet, executor.Ok)
	if err != nil {
		t.Fatalf("IsInteresting after restore: %v", err)
	}
	if interesting {
		t.Fatal("expected the restored similarity state to already know this response")
	}

	// Every restored corpus entry must carry back its raw bytes.
	tc0, err := restored.Corpus.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if !bytes.Equal(tc0.Input.Bytes(), []byte{0}) {
		t.Fatalf("corpus entry 0 bytes = %v, want [0]", tc0.Input.Bytes())
	}
}

// TestStateDeserializeSkipsUnregisteredFeedbackState confirms a persisted
// feedback state with no matching registration in the target Store is
// skipped rather than erroring, e.g. resuming with a different feedback
// pipeline than the one that was serialized.
func TestStateDeserializeSkipsUnregisteredFeedbackState(t *testing.T) {
	state, mapFeedback, _ := buildState(1)
	tc := corpus.NewTestcase(input.NewBytes([]byte("seed")))
	recordCoverage(t, mapFeedback, tc, 1, 2)
	state.Corpus.Add(tc)

	var buf bytes.Buffer
	if err := state.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	bare := fuzzstate.New(0, "", "")
	if err := bare.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize into a State with no registered feedback states: %v", err)
	}
	if got := bare.Corpus.Count(); got != 1 {
		t.Fatalf("corpus count = %d, want 1", got)
	}
}

func TestStateSerializeEmptyState(t *testing.T) {
	state, _, _ := buildState(3)

	var buf bytes.Buffer
	if err := state.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored, _, _ := buildState(0)
	if err := restored.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if restored.Corpus.Count() != 0 || restored.Solutions.Count() != 0 {
		t.Fatal("expected empty corpora to round-trip as empty")
	}
}

package coverage

import "testing"

func TestCoverageMap(t *testing.T) {
	cm := NewCoverageMap(1024)

	// Test RecordEdge
	isNew := cm.RecordEdge(100, 200)
	if !isNew {
		t.Error("First edge should be new")
	}

	// Same edge again - may or may not be new depending on bucket change
	_ = cm.RecordEdge(100, 200)

	stats := cm.GetStats()
	if stats.EdgesCovered < 1 {
		t.Errorf("Expected at least 1 edge, got %d", stats.EdgesCovered)
	}
}

func TestCoverageMap_Merge(t *testing.T) {
	cm1 := NewCoverageMap(1024)
	cm2 := NewCoverageMap(1024)

	cm1.RecordEdge(100, 200)
	cm2.RecordEdge(300, 400)

	newEdges := cm1.Merge(cm2)
	if newEdges < 1 {
		t.Errorf("Expected at least 1 new edge, got %d", newEdges)
	}

	stats := cm1.GetStats()
	if stats.EdgesCovered < 2 {
		t.Errorf("Expected at least 2 edges after merge, got %d", stats.EdgesCovered)
	}
}

func TestCoverageMap_Clone(t *testing.T) {
	cm := NewCoverageMap(1024)
	cm.RecordEdge(100, 200)

	clone := cm.Clone()

	// Original and clone should have same stats
	origStats := cm.GetStats()
	cloneStats := clone.GetStats()

	if origStats.EdgesCovered != cloneStats.EdgesCovered {
		t.Error("Clone should have same coverage")
	}

	// Modifying clone shouldn't affect original
	clone.RecordEdge(300, 400)
	origStatsAfter := cm.GetStats()

	if origStatsAfter.EdgesCovered != origStats.EdgesCovered {
		t.Error("Modifying clone affected original")
	}
}

func TestCoverageTracker(t *testing.T) {
	tracker := NewCoverageTracker(1024)

	// Record some executions
	cm1 := NewCoverageMap(1024)
	cm1.RecordEdge(100, 200)
	isInteresting := tracker.RecordExecution(cm1, "hash1")
	if !isInteresting {
		t.Error("First execution should be interesting")
	}

	cm2 := NewCoverageMap(1024)
	cm2.RecordEdge(100, 200) // Same edge
	isInteresting = tracker.RecordExecution(cm2, "hash2")
	if isInteresting {
		t.Error("Same coverage should not be interesting")
	}

	cm3 := NewCoverageMap(1024)
	cm3.RecordEdge(300, 400) // New edge
	isInteresting = tracker.RecordExecution(cm3, "hash3")
	if !isInteresting {
		t.Error("New edge should be interesting")
	}

	if tracker.GetExecutionCount() != 3 {
		t.Errorf("Expected 3 executions, got %d", tracker.GetExecutionCount())
	}
}

func TestEdgeHasher(t *testing.T) {
	eh := NewEdgeHasher()

	// Hash some edges
	edge1 := eh.HashEdge(100)
	edge2 := eh.HashEdge(200)
	edge3 := eh.HashEdge(100) // Back to 100

	// Edges should be different
	if edge1 == edge2 {
		t.Error("Different blocks should produce different edges")
	}

	// Reset and re-hash
	eh.Reset()
	edge1Again := eh.HashEdge(100)
	if edge1 != edge1Again {
		t.Error("Same block from same state should produce same edge")
	}

	_ = edge3 // Used
}

func TestBlockID(t *testing.T) {
	id1 := BlockID("file1.go", 10)
	id2 := BlockID("file1.go", 20)
	id3 := BlockID("file2.go", 10)

	// Same file, different lines should produce different IDs
	if id1 == id2 {
		t.Error("Different lines should produce different block IDs")
	}

	// Different files should produce different IDs
	if id1 == id3 {
		t.Error("Different files should produce different block IDs")
	}
}

func TestHitCountBucket(t *testing.T) {
	testCases := []struct {
		count    byte
		expected byte
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 4},
		{7, 4},
		{8, 5},
		{15, 5},
		{16, 6},
		{31, 6},
		{32, 7},
		{127, 7},
		{128, 8},
		{255, 8},
	}

	for _, tc := range testCases {
		result := hitCountBucket(tc.count)
		if result != tc.expected {
			t.Errorf("hitCountBucket(%d) = %d, expected %d", tc.count, result, tc.expected)
		}
	}
}

func BenchmarkCoverageMap(b *testing.B) {
	cm := NewCoverageMap(65536)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cm.RecordEdge(uint32(i), uint32(i+1))
	}
}

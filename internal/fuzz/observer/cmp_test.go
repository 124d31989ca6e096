package observer

import "testing"

func TestCmpObserverFiltersLoopIndex(t *testing.T) {
	cm := NewMemCmpMap(2, 64)
	o := NewCmpObserver("cmp", cm)
	if err := o.PreExec(); err != nil {
		t.Fatalf("PreExec: %v", err)
	}

	// site 0: a classic `for (i = 0; i < 50; i++) if (i == needle)` loop index.
	for i := uint64(0); i < 50; i++ {
		cm.RecordU64(0, i, 42)
	}
	// site 1: a single meaningful magic-number comparison.
	cm.RecordU64(1, 7, 1337)

	if err := o.PostExec(); err != nil {
		t.Fatalf("PostExec: %v", err)
	}

	meta := o.Metadata()
	for _, v := range meta.List {
		_, rhs, ok := v.ToU64Pair()
		if ok && rhs == 42 {
			t.Fatalf("loop-index site leaked into metadata: %v", v)
		}
	}

	found := false
	for _, v := range meta.List {
		lhs, rhs, ok := v.ToU64Pair()
		if ok && lhs == 7 && rhs == 1337 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the magic-number comparison to survive filtering")
	}
}

func TestCmpObserverResetClearsMetadata(t *testing.T) {
	cm := NewMemCmpMap(1, 8)
	o := NewCmpObserver("cmp", cm)
	o.PreExec()
	cm.RecordU64(0, 1, 2)
	o.PostExec()
	if len(o.Metadata().List) == 0 {
		t.Fatal("expected metadata after first PostExec")
	}

	o.PreExec()
	if len(o.Metadata().List) != 0 {
		t.Fatal("PreExec should clear prior metadata")
	}
}

func TestMemCmpMapBytes(t *testing.T) {
	cm := NewMemCmpMap(1, 8)
	cm.RecordBytes(0, []byte("magic"), []byte("input"))

	v, ok := cm.ValuesOf(0, 0)
	if !ok {
		t.Fatal("expected a recorded value")
	}
	if v.IsNumeric() {
		t.Fatal("bytes comparison should not be numeric")
	}
	if _, _, ok := v.ToU64Pair(); ok {
		t.Fatal("ToU64Pair should fail for bytes comparisons")
	}
}

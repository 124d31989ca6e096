package corpus

import (
	"time"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// TestcaseSnapshot is the YAML-serializable form of one Testcase. It carries
// the input's raw bytes rather than an input.Input value, since Input is an
// interface with a single concrete implementation (input.Bytes) in this
// tree; Restore rebuilds each entry via input.NewBytes.
type TestcaseSnapshot struct {
	Data       []byte                 `yaml:"data"`
	Metadata   map[string]interface{} `yaml:"metadata,omitempty"`
	FuzzLevel  int                    `yaml:"fuzz_level"`
	ExecTimeNs int64                  `yaml:"exec_time_ns,omitempty"`
}

// Snapshot exports every testcase currently held, in insertion order, for
// inclusion in a larger self-contained stream (see fuzzstate.State.Serialize).
// It does not touch c.dir or Filename — a snapshot round-trip is an
// in-memory transfer, independent of the on-disk queue/ layout Save/Load use.
func (c *Corpus) Snapshot() []TestcaseSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TestcaseSnapshot, len(c.entries))
	for i, tc := range c.entries {
		out[i] = TestcaseSnapshot{
			Data:      tc.Input.Bytes(),
			Metadata:  tc.Metadata,
			FuzzLevel: tc.FuzzLevel,
		}
		if tc.ExecTime != nil {
			out[i].ExecTimeNs = tc.ExecTime.Nanoseconds()
		}
	}
	return out
}

// Restore replaces c's entries with the testcases snap describes, rebuilding
// the content-hash dedup set from scratch. Existing entries are discarded.
func (c *Corpus) Restore(snap []TestcaseSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make([]*Testcase, 0, len(snap))
	c.seen = make(map[string]struct{}, len(snap))
	for _, s := range snap {
		tc := NewTestcase(input.NewBytes(s.Data))
		if s.Metadata != nil {
			tc.Metadata = s.Metadata
		}
		tc.FuzzLevel = s.FuzzLevel
		if s.ExecTimeNs != 0 {
			d := time.Duration(s.ExecTimeNs)
			tc.ExecTime = &d
		}
		c.entries = append(c.entries, tc)
		c.seen[tc.Input.Hash()] = struct{}{}
	}
}

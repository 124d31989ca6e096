// Package corpus implements the retained test-case store and its pluggable
// scheduler, generalized from a disk-backed AFL-style corpus into a
// generic, input-type-agnostic shape the fuzzer core requires.
package corpus

import (
	"sync"
	"time"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// Testcase wraps an Input with a metadata bag keyed by type tag (the name a
// feedback uses to stamp its own annotation), an optional exec time, an
// optional on-disk filename, and a fuzz level (how many mutation rounds
// produced it, starting at 0 for seeds).
type Testcase struct {
	Input     input.Input
	Metadata  map[string]interface{}
	ExecTime  *time.Duration
	Filename  string
	FuzzLevel int
}

// NewTestcase wraps in as a fresh, unmutated testcase.
func NewTestcase(in input.Input) *Testcase {
	return &Testcase{Input: in, Metadata: make(map[string]interface{})}
}

// Corpus is a dense-indexed, insertion-ordered sequence of testcases.
// Indices are NOT stable across Remove: removing shifts every later index
// down by one. Callers must not retain indices across a remove on the same
// corpus.
type Corpus struct {
	mu      sync.RWMutex
	entries []*Testcase
	dir     string
	seen    map[string]struct{}
}

// New creates an empty corpus. dir is the on-disk root used by Save/Load;
// an empty dir means the corpus is in-memory only.
func New(dir string) *Corpus {
	return &Corpus{dir: dir, seen: make(map[string]struct{})}
}

// Add appends tc and returns its new index.
func (c *Corpus) Add(tc *Testcase) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, tc)
	c.seen[tc.Input.Hash()] = struct{}{}
	return len(c.entries) - 1
}

// Contains reports whether a testcase with the same content hash as in is
// already held, letting a caller skip re-adding a byte-identical mutation
// the scheduler has already queued once.
func (c *Corpus) Contains(in input.Input) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[in.Hash()]
	return ok
}

// Replace overwrites the testcase at idx.
func (c *Corpus) Replace(idx int, tc *Testcase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.entries) {
		return ferr.New(ferr.KeyNotFound, "corpus index %d out of range", idx)
	}
	oldHash := c.entries[idx].Input.Hash()
	c.entries[idx] = tc
	c.seen[tc.Input.Hash()] = struct{}{}
	for _, e := range c.entries {
		if e.Input.Hash() == oldHash {
			return nil
		}
	}
	delete(c.seen, oldHash)
	return nil
}

// Remove deletes the testcase at idx, shifting later indices down by one.
func (c *Corpus) Remove(idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.entries) {
		return ferr.New(ferr.KeyNotFound, "corpus index %d out of range", idx)
	}
	removedHash := c.entries[idx].Input.Hash()
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	for _, e := range c.entries {
		if e.Input.Hash() == removedHash {
			return nil
		}
	}
	delete(c.seen, removedHash)
	return nil
}

// Get returns the testcase at idx.
func (c *Corpus) Get(idx int) (*Testcase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx < 0 || idx >= len(c.entries) {
		return nil, ferr.New(ferr.KeyNotFound, "corpus index %d out of range", idx)
	}
	return c.entries[idx], nil
}

// Count returns the number of testcases currently held.
func (c *Corpus) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Dir returns the on-disk root this corpus persists under, or "" if it is
// in-memory only.
func (c *Corpus) Dir() string { return c.dir }

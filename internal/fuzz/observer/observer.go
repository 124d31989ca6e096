// Package observer implements the observer set: the harness-side hooks that
// record signals (coverage, timing, comparison operands) during a single
// execution, independent of how those signals later get judged interesting.
package observer

import (
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
)

// Observer is attached to an Executor and instrumented around every run of
// the target. PreExec/PostExec bracket one execution; both may mutate the
// observer's own state but must never touch another observer directly.
type Observer interface {
	Name() string
	PreExec() error
	PostExec() error
}

// Set is an ordered, named collection of observers. Order matters: observers
// run PreExec in registration order and PostExec in the same order.
type Set struct {
	order  []string
	byName map[string]Observer
}

// NewSet builds a Set from the given observers, preserving argument order.
func NewSet(observers ...Observer) *Set {
	s := &Set{byName: make(map[string]Observer, len(observers))}
	for _, o := range observers {
		s.Add(o)
	}
	return s
}

// Add appends an observer, replacing any existing observer of the same name.
func (s *Set) Add(o Observer) {
	if _, exists := s.byName[o.Name()]; !exists {
		s.order = append(s.order, o.Name())
	}
	s.byName[o.Name()] = o
}

// Match looks up an observer by name, the way a feedback locates the
// observer it depends on (e.g. TimeFeedback finding its TimeObserver).
func (s *Set) Match(name string) (Observer, bool) {
	o, ok := s.byName[name]
	return o, ok
}

// MustMatch is Match but returns a KeyNotFound ferr.Error instead of ok=false,
// for call sites that treat a missing observer as a programming error.
func (s *Set) MustMatch(name string) (Observer, error) {
	o, ok := s.byName[name]
	if !ok {
		return nil, ferr.New(ferr.KeyNotFound, "observer %q not registered in set", name)
	}
	return o, nil
}

// PreExecAll runs PreExec on every observer in registration order, stopping
// at the first error.
func (s *Set) PreExecAll() error {
	for _, name := range s.order {
		if err := s.byName[name].PreExec(); err != nil {
			return ferr.Wrap(ferr.IllegalState, err, "observer %q PreExec failed", name)
		}
	}
	return nil
}

// PostExecAll runs PostExec on every observer in registration order,
// stopping at the first error.
func (s *Set) PostExecAll() error {
	for _, name := range s.order {
		if err := s.byName[name].PostExec(); err != nil {
			return ferr.Wrap(ferr.IllegalState, err, "observer %q PostExec failed", name)
		}
	}
	return nil
}

// Names returns the registration order, mainly for diagnostics and tests.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

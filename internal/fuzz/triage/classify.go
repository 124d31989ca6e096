// Package triage stamps Severity/Evidence annotations onto solution
// testcases produced by a network-facing target, reusing the OWASP
// response-pattern classifier against the captured response body.
package triage

import (
	"regexp"
	"strings"

	"github.com/emberfuzz/emberfuzz/internal/analyzer"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// Severity mirrors the OWASP detector's five-level scale, narrowed to the
// subset Classify can assign from pattern matches alone (no CVSS scoring,
// no remediation text — this is an additive annotation, not a full scan).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Metadata keys Classify stamps onto a solution Testcase.
const (
	SeverityKey    = "triage_severity"
	EvidenceKey    = "triage_evidence"
	CategoryKey    = "triage_category"
	FingerprintKey = "triage_fingerprint"
)

// category groups a set of patterns under a name and default severity,
// the same shape the OWASP response analyzer keys per-vulnerability-type
// pattern lists by, narrowed to the categories a fuzzed HTTP response can
// plausibly surface without a full multi-request scan.
type category struct {
	name     string
	severity Severity
	patterns []*regexp.Regexp
}

var categories = []category{
	{
		name:     "sql_injection",
		severity: SeverityHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)sql\s*syntax`),
			regexp.MustCompile(`(?i)mysql.*error`),
			regexp.MustCompile(`(?i)postgresql.*error`),
			regexp.MustCompile(`(?i)sqlite.*error`),
			regexp.MustCompile(`(?i)ORA-\d{5}`),
			regexp.MustCompile(`(?i)SQLSTATE\[`),
			regexp.MustCompile(`(?i)unclosed quotation`),
		},
	},
	{
		name:     "os_command",
		severity: SeverityCritical,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`uid=\d+\(.*?\)\s+gid=\d+`),
			regexp.MustCompile(`root:.*:0:0:`),
			regexp.MustCompile(`(?i)volume\s+serial\s+number`),
		},
	},
	{
		name:     "path_traversal",
		severity: SeverityHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`root:x:0:0:`),
			regexp.MustCompile(`\[extensions\]`),
			regexp.MustCompile(`(?i)failed to open stream`),
		},
	},
	{
		name:     "xxe",
		severity: SeverityHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)external entity`),
			regexp.MustCompile(`(?i)entity.*not defined`),
			regexp.MustCompile(`SYSTEM.*file:`),
		},
	},
	{
		name:     "ssrf",
		severity: SeverityMedium,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`169\.254\.169\.254`),
			regexp.MustCompile(`(?i)ami-[a-z0-9]+`),
			regexp.MustCompile(`(?i)instance-id`),
		},
	},
	{
		name:     "sensitive_data_exposure",
		severity: SeverityMedium,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)api[_-]?key\s*[:=]`),
			regexp.MustCompile(`(?i)secret[_-]?key\s*[:=]`),
			regexp.MustCompile(`-----BEGIN.*PRIVATE KEY-----`),
			regexp.MustCompile(`(?i)aws[_-]?secret`),
		},
	},
	{
		name:     "verbose_error",
		severity: SeverityLow,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)stack\s*trace`),
			regexp.MustCompile(`(?i)traceback\s+\(most recent`),
			regexp.MustCompile(`(?i)Fatal\s+error:`),
		},
	},
}

// Classify inspects the response body a NetworkExecutor run recorded into
// resp and, on a match, stamps tc.Metadata with a severity, a category
// name, and the literal evidence matched. It never returns an error and
// never changes whether a run is a solution — it only enriches one after
// the fuzzer loop has already decided it is.
//
// It also stamps a TLSH structural fingerprint of the response body
// whenever the body is long enough for TLSH to hash (short bodies return
// an error, which Classify ignores — no fingerprint beats a wrong one).
// The fingerprint lets a later pass cluster solutions whose responses are
// structurally similar even when their categories differ or no pattern
// matched at all.
func Classify(tc *corpus.Testcase, resp *observer.ResponseObserver) {
	if resp == nil || len(resp.Body) == 0 {
		return
	}
	body := string(resp.Body)

	if hash, err := analyzer.ComputeTLSH(resp.Body); err == nil {
		tc.Metadata[FingerprintKey] = hash.String()
	}

	best, ok := highestSeverityMatch(body)
	if !ok {
		return
	}

	tc.Metadata[SeverityKey] = string(best.severity)
	tc.Metadata[CategoryKey] = best.name
	tc.Metadata[EvidenceKey] = best.evidence
}

type match struct {
	category
	evidence string
}

// severityRank orders Severity from least to most urgent so callers with
// multiple candidate matches can pick the worst one.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func highestSeverityMatch(body string) (match, bool) {
	var best match
	found := false

	for _, cat := range categories {
		for _, pattern := range cat.patterns {
			hit := pattern.FindString(body)
			if hit == "" {
				continue
			}
			if !found || severityRank[cat.severity] > severityRank[best.severity] {
				best = match{category: cat, evidence: strings.TrimSpace(hit)}
				found = true
			}
			break
		}
	}

	return best, found
}

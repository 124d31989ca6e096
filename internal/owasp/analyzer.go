// Package owasp provides response analysis for vulnerability detection.
package owasp

import (
	"regexp"
	"strings"
)

// ResponseAnalyzer matches a response body against per-category regexes,
// independent of the checkers: a checker decides which parameters/bodies
// are worth probing, ResponseAnalyzer decides whether a response that came
// back actually shows the category's fingerprint.
type ResponseAnalyzer struct {
	patterns map[VulnerabilityType][]*regexp.Regexp
}

func NewResponseAnalyzer() *ResponseAnalyzer {
	ra := &ResponseAnalyzer{
		patterns: make(map[VulnerabilityType][]*regexp.Regexp),
	}
	ra.initPatterns()
	return ra
}

func (ra *ResponseAnalyzer) initPatterns() {
	ra.patterns[SQLInjection] = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sql\s*syntax`),
		regexp.MustCompile(`(?i)mysql.*error`),
		regexp.MustCompile(`(?i)postgresql.*error`),
		regexp.MustCompile(`(?i)sqlite.*error`),
		regexp.MustCompile(`(?i)ORA-\d{5}`),
		regexp.MustCompile(`(?i)SQLSTATE\[`),
		regexp.MustCompile(`(?i)unclosed quotation`),
	}

	ra.patterns[OSCommand] = []*regexp.Regexp{
		regexp.MustCompile(`uid=\d+\(.*?\)\s+gid=\d+`),
		regexp.MustCompile(`root:.*:0:0:`),
		regexp.MustCompile(`(?i)volume\s+serial\s+number`),
	}

	ra.patterns[PathTraversal] = []*regexp.Regexp{
		regexp.MustCompile(`root:x:0:0:`),
		regexp.MustCompile(`\[fonts\]`),
		regexp.MustCompile(`\[extensions\]`),
		regexp.MustCompile(`(?i)failed to open stream`),
	}

	ra.patterns[XXE] = []*regexp.Regexp{
		regexp.MustCompile(`(?i)external entity`),
		regexp.MustCompile(`(?i)entity.*not defined`),
		regexp.MustCompile(`SYSTEM.*file:`),
	}

	ra.patterns[SSRF] = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ami-[a-z0-9]+`),
		regexp.MustCompile(`(?i)instance-id`),
		regexp.MustCompile(`169\.254\.169\.254`),
	}

	ra.patterns[SensitiveDataExposure] = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key\s*[:=]`),
		regexp.MustCompile(`(?i)secret[_-]?key\s*[:=]`),
		regexp.MustCompile(`-----BEGIN.*PRIVATE KEY-----`),
		regexp.MustCompile(`(?i)aws[_-]?secret`),
	}

	ra.patterns[VerboseErrors] = []*regexp.Regexp{
		regexp.MustCompile(`(?i)stack\s*trace`),
		regexp.MustCompile(`(?i)at\s+\w+\.\w+\(.*:\d+\)`),
		regexp.MustCompile(`(?i)traceback\s+\(most recent`),
		regexp.MustCompile(`(?i)Fatal\s+error:`),
	}
}

// Analyze returns every match of vulnType's patterns against body.
func (ra *ResponseAnalyzer) Analyze(body []byte, vulnType VulnerabilityType) []AnalysisResult {
	var results []AnalysisResult
	bodyStr := string(body)

	patterns, ok := ra.patterns[vulnType]
	if !ok {
		return results
	}

	for _, pattern := range patterns {
		matches := pattern.FindAllString(bodyStr, -1)
		for _, match := range matches {
			results = append(results, AnalysisResult{
				Type:     vulnType,
				Pattern:  pattern.String(),
				Match:    match,
				Position: strings.Index(bodyStr, match),
			})
		}
	}

	return results
}

// AnalyzeAll runs Analyze across every registered category.
func (ra *ResponseAnalyzer) AnalyzeAll(body []byte) []AnalysisResult {
	var results []AnalysisResult

	for vulnType := range ra.patterns {
		results = append(results, ra.Analyze(body, vulnType)...)
	}

	return results
}

// AnalysisResult is one pattern match found in a response body.
type AnalysisResult struct {
	Type     VulnerabilityType
	Pattern  string
	Match    string
	Position int
}

// HeaderAnalyzer checks HTTP response headers against a small table of
// expected security headers, surfaced by the scan subcommand alongside the
// body-pattern findings.
type HeaderAnalyzer struct{}

func NewHeaderAnalyzer() *HeaderAnalyzer {
	return &HeaderAnalyzer{}
}

// SecurityHeader is one expected security header and what's missing it.
type SecurityHeader struct {
	Name        string
	Required    bool
	Recommended string
	Severity    Severity
	CWE         string
}

var RequiredSecurityHeaders = []SecurityHeader{
	{Name: "Strict-Transport-Security", Required: true, Recommended: "max-age=31536000; includeSubDomains", Severity: Medium, CWE: "CWE-319"},
	{Name: "X-Content-Type-Options", Required: true, Recommended: "nosniff", Severity: Low, CWE: "CWE-16"},
	{Name: "X-Frame-Options", Required: true, Recommended: "DENY", Severity: Medium, CWE: "CWE-1021"},
	{Name: "Content-Security-Policy", Required: true, Recommended: "default-src 'self'", Severity: Medium, CWE: "CWE-79"},
}

// AnalyzeHeaders flags missing, empty, or information-disclosing headers.
func (ha *HeaderAnalyzer) AnalyzeHeaders(headers map[string]string) []HeaderFinding {
	var findings []HeaderFinding

	for _, required := range RequiredSecurityHeaders {
		value, exists := headers[required.Name]
		if !exists {
			findings = append(findings, HeaderFinding{
				Header:      required.Name,
				Issue:       "missing security header",
				Severity:    required.Severity,
				Recommended: required.Recommended,
				CWE:         required.CWE,
			})
		} else if required.Required && value == "" {
			findings = append(findings, HeaderFinding{
				Header:      required.Name,
				Issue:       "empty security header",
				Severity:    required.Severity,
				Recommended: required.Recommended,
				CWE:         required.CWE,
			})
		}
	}

	if server, ok := headers["Server"]; ok && server != "" {
		findings = append(findings, HeaderFinding{
			Header:      "Server",
			Issue:       "server version disclosed: " + server,
			Severity:    Low,
			Recommended: "remove or obfuscate the Server header",
			CWE:         "CWE-200",
		})
	}

	if powered, ok := headers["X-Powered-By"]; ok && powered != "" {
		findings = append(findings, HeaderFinding{
			Header:      "X-Powered-By",
			Issue:       "technology stack disclosed: " + powered,
			Severity:    Low,
			Recommended: "remove the X-Powered-By header",
			CWE:         "CWE-200",
		})
	}

	return findings
}

// HeaderFinding is one header-level security finding.
type HeaderFinding struct {
	Header      string
	Issue       string
	Severity    Severity
	Recommended string
	CWE         string
}

// TimingAnalyzer flags a response time that's disproportionately slower
// than a baseline, a coarse signal for a blind SQL injection or ReDoS-style
// sink the executor's status/body comparison alone wouldn't catch.
type TimingAnalyzer struct {
	baselineMs int64
	threshold  float64
}

func NewTimingAnalyzer(baselineMs int64) *TimingAnalyzer {
	return &TimingAnalyzer{
		baselineMs: baselineMs,
		threshold:  2.0,
	}
}

// Analyze reports whether responseTimeMs is threshold-times the baseline.
func (ta *TimingAnalyzer) Analyze(responseTimeMs int64) *TimingResult {
	if ta.baselineMs == 0 {
		return nil
	}

	ratio := float64(responseTimeMs) / float64(ta.baselineMs)

	return &TimingResult{
		BaselineMs:   ta.baselineMs,
		ResponseMs:   responseTimeMs,
		Ratio:        ratio,
		IsSuspicious: ratio >= ta.threshold,
	}
}

// TimingResult is the outcome of one TimingAnalyzer.Analyze call.
type TimingResult struct {
	BaselineMs   int64
	ResponseMs   int64
	Ratio        float64
	IsSuspicious bool
}

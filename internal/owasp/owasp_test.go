package owasp

import (
	"context"
	"testing"
)

func TestDetectorScansEveryRegisteredChecker(t *testing.T) {
	detector := NewDetector(nil)

	if got := detector.GetCheckerCount(); got != 7 {
		t.Fatalf("expected 7 registered checkers, got %d", got)
	}

	target := &Target{
		URL:    "http://example.com/api",
		Method: "GET",
		Parameters: map[string]string{
			"id":    "1",
			"query": "test",
		},
	}

	findings, err := detector.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	t.Logf("found %d findings", len(findings))

	stats := detector.GetStats()
	if stats.TotalChecks != 1 {
		t.Errorf("expected 1 check recorded, got %d", stats.TotalChecks)
	}
}

func TestDetectorEnabledChecksFilter(t *testing.T) {
	detector := NewDetector(&DetectorConfig{
		EnabledChecks:  []VulnerabilityType{SQLInjection},
		MaxConcurrency: 4,
	})

	target := &Target{
		URL:        "http://example.com/api",
		Method:     "GET",
		Parameters: map[string]string{"id": "1"},
	}

	findings, err := detector.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, f := range findings {
		if f.Type != SQLInjection {
			t.Errorf("expected only sql_injection findings, got %s", f.Type)
		}
	}
}

func TestSQLInjectionCheckerFlagsEveryParameter(t *testing.T) {
	checker := NewSQLInjectionChecker()
	target := &Target{
		URL:        "http://example.com/api",
		Method:     "GET",
		Parameters: map[string]string{"id": "1"},
	}

	findings, err := checker.Check(context.Background(), target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) != len(SQLInjectionPayloads) {
		t.Fatalf("expected %d findings, got %d", len(SQLInjectionPayloads), len(findings))
	}
	for _, f := range findings {
		if f.Parameter != "id" {
			t.Errorf("expected parameter %q, got %q", "id", f.Parameter)
		}
		if f.Severity != Critical {
			t.Error("SQL injection should be critical severity")
		}
	}
}

func TestCommandInjectionCheckerRequiresShellLikeParam(t *testing.T) {
	checker := NewCommandInjectionChecker()

	noHit := &Target{URL: "http://example.com", Method: "GET", Parameters: map[string]string{"name": "bob"}}
	findings, _ := checker.Check(context.Background(), noHit)
	if len(findings) != 0 {
		t.Errorf("expected no findings for an unrelated parameter name, got %d", len(findings))
	}

	hit := &Target{URL: "http://example.com/ping", Method: "GET", Parameters: map[string]string{"host": "localhost"}}
	findings, _ = checker.Check(context.Background(), hit)
	if len(findings) == 0 {
		t.Error("expected findings for a host parameter")
	}
}

func TestPathTraversalCheckerRequiresPathLikeParam(t *testing.T) {
	checker := NewPathTraversalChecker()
	target := &Target{URL: "http://example.com/view", Method: "GET", Parameters: map[string]string{"file": "report.pdf"}}

	findings, err := checker.Check(context.Background(), target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) == 0 {
		t.Error("expected findings for a file parameter")
	}
}

func TestXXECheckerRequiresXMLLikeBody(t *testing.T) {
	checker := NewXXEChecker()

	noBody := &Target{URL: "http://example.com/api", Method: "POST"}
	findings, _ := checker.Check(context.Background(), noBody)
	if len(findings) != 0 {
		t.Errorf("expected no findings without a body, got %d", len(findings))
	}

	xmlBody := &Target{
		URL:    "http://example.com/api",
		Method: "POST",
		Body:   []byte(`<?xml version="1.0"?><root><data>test</data></root>`),
	}
	findings, _ = checker.Check(context.Background(), xmlBody)
	if len(findings) == 0 {
		t.Error("expected findings for an XML body")
	}
}

func TestSSRFCheckerRequiresURLLikeParam(t *testing.T) {
	checker := NewSSRFChecker()
	target := &Target{
		URL:        "http://example.com/fetch",
		Method:     "POST",
		Parameters: map[string]string{"url": "http://example.org"},
	}

	findings, err := checker.Check(context.Background(), target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) == 0 {
		t.Error("expected findings for a url parameter")
	}
}

func TestSensitiveDataCheckerMatchesBodyIndicators(t *testing.T) {
	checker := NewSensitiveDataChecker()
	target := &Target{
		URL:    "http://example.com/debug",
		Method: "GET",
		Body:   []byte("config dump: aws_secret=AKIA... api_key=deadbeef"),
	}

	findings, err := checker.Check(context.Background(), target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) == 0 {
		t.Error("expected findings for a body containing leaked secrets")
	}
}

func TestVerboseErrorCheckerMatchesStackTraces(t *testing.T) {
	checker := NewVerboseErrorChecker()
	target := &Target{
		URL:    "http://example.com/api",
		Method: "POST",
		Body:   []byte("Traceback (most recent call last):\n  File \"app.py\", line 10"),
	}

	findings, err := checker.Check(context.Background(), target)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(findings) == 0 {
		t.Error("expected findings for a response containing a traceback")
	}
}

func TestResponseAnalyzerMatchesKnownCategories(t *testing.T) {
	analyzer := NewResponseAnalyzer()

	cases := []struct {
		name string
		body []byte
		typ  VulnerabilityType
	}{
		{"sql error", []byte(`Error: You have an error in your SQL syntax near`), SQLInjection},
		{"command output", []byte(`uid=1000(user) gid=1000(user)`), OSCommand},
		{"stack trace", []byte(`Fatal error: Uncaught Exception`), VerboseErrors},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if results := analyzer.Analyze(tc.body, tc.typ); len(results) == 0 {
				t.Errorf("expected a match for %s", tc.name)
			}
		})
	}
}

func TestResponseAnalyzerAnalyzeAllAggregatesCategories(t *testing.T) {
	analyzer := NewResponseAnalyzer()
	body := []byte(`
		Error: SQL syntax error near 'test'
		uid=0(root) gid=0(root)
		Fatal error: Uncaught Exception
	`)

	results := analyzer.AnalyzeAll(body)
	if len(results) < 3 {
		t.Errorf("expected at least 3 matches across categories, got %d", len(results))
	}
}

func TestHeaderAnalyzerFlagsMissingHeaders(t *testing.T) {
	analyzer := NewHeaderAnalyzer()
	findings := analyzer.AnalyzeHeaders(map[string]string{"Content-Type": "text/html"})

	var foundHSTS, foundCSP bool
	for _, f := range findings {
		switch f.Header {
		case "Strict-Transport-Security":
			foundHSTS = true
		case "Content-Security-Policy":
			foundCSP = true
		}
	}
	if !foundHSTS || !foundCSP {
		t.Error("expected missing HSTS and CSP findings")
	}
}

func TestHeaderAnalyzerFlagsServerDisclosure(t *testing.T) {
	analyzer := NewHeaderAnalyzer()
	findings := analyzer.AnalyzeHeaders(map[string]string{
		"Server":       "Apache/2.4.41 (Ubuntu)",
		"X-Powered-By": "PHP/7.4.3",
	})

	var foundServer, foundPoweredBy bool
	for _, f := range findings {
		switch f.Header {
		case "Server":
			foundServer = true
		case "X-Powered-By":
			foundPoweredBy = true
		}
	}
	if !foundServer || !foundPoweredBy {
		t.Error("expected Server and X-Powered-By disclosure findings")
	}
}

func TestTimingAnalyzerThreshold(t *testing.T) {
	analyzer := NewTimingAnalyzer(100)

	if result := analyzer.Analyze(150); result.IsSuspicious {
		t.Error("1.5x baseline should not be suspicious")
	}

	result := analyzer.Analyze(500)
	if !result.IsSuspicious {
		t.Error("5x baseline should be suspicious")
	}
	if result.Ratio != 5.0 {
		t.Errorf("expected ratio 5.0, got %f", result.Ratio)
	}
}

func TestVulnerabilityTypesAreNonEmpty(t *testing.T) {
	types := []VulnerabilityType{
		SQLInjection, OSCommand, PathTraversal, XXE, SSRF,
		SensitiveDataExposure, VerboseErrors,
	}
	for _, vt := range types {
		if vt == "" {
			t.Error("empty vulnerability type")
		}
	}
}

func TestSeverityLevelsAreNonEmpty(t *testing.T) {
	for _, s := range []Severity{Critical, High, Medium, Low, Info} {
		if s == "" {
			t.Error("empty severity")
		}
	}
}

func BenchmarkResponseAnalyzerAnalyzeAll(b *testing.B) {
	analyzer := NewResponseAnalyzer()
	body := []byte(`
		Error: You have an error in your SQL syntax near 'test'
		at line 1 in /var/www/html/index.php
	`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.AnalyzeAll(body)
	}
}

func BenchmarkDetectorScan(b *testing.B) {
	detector := NewDetector(nil)
	target := &Target{
		URL:    "http://example.com/api",
		Method: "GET",
		Parameters: map[string]string{
			"id":    "1",
			"query": "test",
		},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Scan(ctx, target)
	}
}

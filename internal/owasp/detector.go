// Package owasp classifies HTTP response bodies against a small table of
// known vulnerability-disclosure patterns, narrowed from a general OWASP
// Top 10 scanner down to the categories a mutated-HTTP-response fuzzer can
// actually surface: errors and leaks a target emits in the body it sends
// back, not multi-step flaws like broken auth or IDOR that need a stateful
// client to exercise. triage.Classify keeps its own separate table of the
// same seven categories; the scan subcommand runs this package standalone
// against a live target.
package owasp

import (
	"context"
	"sync"
	"time"
)

// VulnerabilityType names a category of response-disclosed weakness.
type VulnerabilityType string

const (
	SQLInjection          VulnerabilityType = "sql_injection"
	OSCommand             VulnerabilityType = "os_command"
	PathTraversal         VulnerabilityType = "path_traversal"
	XXE                   VulnerabilityType = "xxe"
	SSRF                  VulnerabilityType = "ssrf"
	SensitiveDataExposure VulnerabilityType = "sensitive_data_exposure"
	VerboseErrors         VulnerabilityType = "verbose_error"
)

// Severity levels, listed most to least urgent.
type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
	Info     Severity = "info"
)

// Finding represents a detected vulnerability indicator.
type Finding struct {
	Type        VulnerabilityType `json:"type"`
	Severity    Severity          `json:"severity"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Parameter   string            `json:"parameter"`
	Payload     string            `json:"payload"`
	Evidence    string            `json:"evidence"`
	Description string            `json:"description"`
	Remediation string            `json:"remediation"`
	CWE         string            `json:"cwe"`
	CVSS        float64           `json:"cvss"`
	Confidence  float64           `json:"confidence"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Detector runs every registered VulnerabilityChecker against a Target.
type Detector struct {
	checkers []VulnerabilityChecker
	findings []*Finding
	config   *DetectorConfig
	stats    *DetectorStats
	mu       sync.RWMutex
}

// DetectorConfig holds detector configuration.
type DetectorConfig struct {
	EnabledChecks  []VulnerabilityType
	MaxConcurrency int
	Timeout        time.Duration
	UserAgent      string
}

// DefaultDetectorConfig returns default configuration.
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		EnabledChecks:  nil, // All enabled
		MaxConcurrency: 10,
		Timeout:        30 * time.Second,
		UserAgent:      "emberfuzz/1.0",
	}
}

// DetectorStats holds detection statistics.
type DetectorStats struct {
	TotalChecks int64                       `json:"total_checks"`
	Findings    int64                       `json:"findings"`
	BySeverity  map[Severity]int64          `json:"by_severity"`
	ByType      map[VulnerabilityType]int64 `json:"by_type"`
	Duration    time.Duration               `json:"duration"`
}

// VulnerabilityChecker checks a Target for one category of vulnerability.
type VulnerabilityChecker interface {
	Check(ctx context.Context, target *Target) ([]*Finding, error)
	Type() VulnerabilityType
	Name() string
}

// Target represents a scan target: a URL plus the request shape a checker
// inspects for that category's indicators.
type Target struct {
	URL        string
	Method     string
	Headers    map[string]string
	Parameters map[string]string
	Body       []byte
}

// NewDetector creates a Detector with every narrowed checker registered.
func NewDetector(config *DetectorConfig) *Detector {
	if config == nil {
		config = DefaultDetectorConfig()
	}

	d := &Detector{
		checkers: make([]VulnerabilityChecker, 0),
		findings: make([]*Finding, 0),
		config:   config,
		stats: &DetectorStats{
			BySeverity: make(map[Severity]int64),
			ByType:     make(map[VulnerabilityType]int64),
		},
	}

	d.registerDefaultCheckers()

	return d
}

func (d *Detector) registerDefaultCheckers() {
	d.RegisterChecker(NewSQLInjectionChecker())
	d.RegisterChecker(NewCommandInjectionChecker())
	d.RegisterChecker(NewPathTraversalChecker())
	d.RegisterChecker(NewXXEChecker())
	d.RegisterChecker(NewSSRFChecker())
	d.RegisterChecker(NewSensitiveDataChecker())
	d.RegisterChecker(NewVerboseErrorChecker())
}

// RegisterChecker registers a vulnerability checker.
func (d *Detector) RegisterChecker(checker VulnerabilityChecker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkers = append(d.checkers, checker)
}

// Scan runs every enabled checker against target concurrently.
func (d *Detector) Scan(ctx context.Context, target *Target) ([]*Finding, error) {
	startTime := time.Now()
	var allFindings []*Finding
	var wg sync.WaitGroup
	findingsChan := make(chan []*Finding, len(d.checkers))
	sem := make(chan struct{}, d.config.MaxConcurrency)

	for _, checker := range d.checkers {
		if !d.isCheckerEnabled(checker.Type()) {
			continue
		}

		wg.Add(1)
		go func(c VulnerabilityChecker) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			findings, err := c.Check(ctx, target)
			if err == nil && len(findings) > 0 {
				findingsChan <- findings
			}
		}(checker)
	}

	go func() {
		wg.Wait()
		close(findingsChan)
	}()

	for findings := range findingsChan {
		allFindings = append(allFindings, findings...)
	}

	d.mu.Lock()
	d.findings = append(d.findings, allFindings...)
	d.stats.TotalChecks++
	d.stats.Duration = time.Since(startTime)

	for _, f := range allFindings {
		d.stats.Findings++
		d.stats.BySeverity[f.Severity]++
		d.stats.ByType[f.Type]++
	}
	d.mu.Unlock()

	return allFindings, nil
}

func (d *Detector) isCheckerEnabled(t VulnerabilityType) bool {
	if len(d.config.EnabledChecks) == 0 {
		return true
	}

	for _, enabled := range d.config.EnabledChecks {
		if enabled == t {
			return true
		}
	}
	return false
}

// GetFindings returns all findings accumulated across every Scan call.
func (d *Detector) GetFindings() []*Finding {
	d.mu.RLock()
	defer d.mu.RUnlock()

	findings := make([]*Finding, len(d.findings))
	copy(findings, d.findings)
	return findings
}

// GetStats returns detection statistics.
func (d *Detector) GetStats() DetectorStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := DetectorStats{
		TotalChecks: d.stats.TotalChecks,
		Findings:    d.stats.Findings,
		Duration:    d.stats.Duration,
		BySeverity:  make(map[Severity]int64),
		ByType:      make(map[VulnerabilityType]int64),
	}

	for k, v := range d.stats.BySeverity {
		stats.BySeverity[k] = v
	}
	for k, v := range d.stats.ByType {
		stats.ByType[k] = v
	}

	return stats
}

// ClearFindings clears all accumulated findings.
func (d *Detector) ClearFindings() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findings = make([]*Finding, 0)
}

// GetCheckerCount returns the number of registered checkers.
func (d *Detector) GetCheckerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.checkers)
}

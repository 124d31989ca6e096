// Package report renders the solutions a fuzzing run collected, and the
// triage annotations stamped onto them, as a JSON, HTML, or Markdown
// artifact for offline review.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/event"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/triage"
)

// Severity mirrors triage.Severity's five-level scale; kept as its own type
// so report consumers don't need to import the triage package just to read
// a report back.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Finding is one triaged solution testcase.
type Finding struct {
	Hash        string   `json:"hash"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Evidence    string   `json:"evidence,omitempty"`
	Payload     string   `json:"payload"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Statistics holds the aggregate counters a report summarizes, mirroring
// event.Stats's fields.
type Statistics struct {
	Executions    int64         `json:"executions"`
	CorpusSize    int64         `json:"corpus_size"`
	SolutionCount int64         `json:"solution_count"`
	CrashCount    int64         `json:"crash_count"`
	Duration      time.Duration `json:"duration"`
	ExecsPerSec   float64       `json:"execs_per_sec"`
}

// MarshalJSON renders Duration as a human-readable string rather than a
// raw nanosecond count.
func (s Statistics) MarshalJSON() ([]byte, error) {
	type Alias Statistics
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{Alias: Alias(s), Duration: s.Duration.String()})
}

// Report is a fuzzing run's findings plus run statistics.
type Report struct {
	// RunID identifies this report uniquely across every run against every
	// target, so reports from concurrent or repeated runs against the same
	// TargetURL never collide once collected into a shared findings store.
	RunID       string    `json:"run_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	TargetURL   string    `json:"target_url"`

	Statistics Statistics `json:"statistics"`
	Findings   []Finding  `json:"findings"`

	SeverityCounts map[Severity]int `json:"severity_counts"`
	CategoryCounts map[string]int   `json:"category_counts"`
}

// NewReport builds an empty report shell.
func NewReport(title, targetURL string) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		Title:          title,
		Version:        "1.0",
		GeneratedAt:    time.Now(),
		TargetURL:      targetURL,
		Findings:       make([]Finding, 0),
		SeverityCounts: make(map[Severity]int),
		CategoryCounts: make(map[string]int),
	}
}

// AddFinding appends f and updates the summary counts.
func (r *Report) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
	r.SeverityCounts[f.Severity]++
	r.CategoryCounts[f.Category]++
}

// SetStatistics sets the run statistics from a supervisor/event snapshot.
func (r *Report) SetStatistics(s Statistics) {
	r.Statistics = s
}

// FromSolutions builds a Report from every entry in a solutions corpus,
// reading the triage.Classify annotations off each testcase's metadata —
// entries triage never classified (no ResponseObserver, or a clean
// response) are reported with an empty category and SeverityInfo.
func FromSolutions(title, targetURL string, solutions *corpus.Corpus, stats event.Stats) *Report {
	r := NewReport(title, targetURL)
	r.SetStatistics(Statistics{
		Executions:    stats.Executions,
		CorpusSize:    stats.CorpusSize,
		SolutionCount: stats.SolutionCount,
		CrashCount:    stats.CrashCount,
		Duration:      time.Since(stats.StartTime),
		ExecsPerSec:   stats.ExecsPerSec(),
	})

	for i := 0; i < solutions.Count(); i++ {
		tc, err := solutions.Get(i)
		if err != nil {
			continue
		}
		r.AddFinding(findingOf(tc))
	}
	return r
}

func findingOf(tc *corpus.Testcase) Finding {
	category, _ := tc.Metadata[triage.CategoryKey].(string)
	evidence, _ := tc.Metadata[triage.EvidenceKey].(string)
	fingerprint, _ := tc.Metadata[triage.FingerprintKey].(string)
	sev := SeverityInfo
	if raw, ok := tc.Metadata[triage.SeverityKey].(string); ok && raw != "" {
		sev = Severity(raw)
	}
	return Finding{
		Hash:        tc.Input.Hash(),
		Category:    category,
		Severity:    sev,
		Evidence:    evidence,
		Payload:     string(tc.Input.Bytes()),
		Fingerprint: fingerprint,
	}
}

// Generator renders a Report to w in one concrete format.
type Generator interface {
	Generate(report *Report, w io.Writer) error
	Extension() string
}

// Manager dispatches to a named set of Generators and writes their output
// under outputDir.
type Manager struct {
	generators map[string]Generator
	outputDir  string
}

// NewManager builds a Manager with the JSON, HTML, and Markdown generators
// registered under their conventional format names.
func NewManager(outputDir string) *Manager {
	m := &Manager{
		generators: make(map[string]Generator),
		outputDir:  outputDir,
	}
	m.RegisterGenerator("json", &JSONGenerator{Indent: true})
	m.RegisterGenerator("html", NewHTMLGenerator())
	m.RegisterGenerator("markdown", &MarkdownGenerator{})
	m.RegisterGenerator("md", &MarkdownGenerator{})
	return m
}

// RegisterGenerator registers gen under format.
func (m *Manager) RegisterGenerator(format string, gen Generator) {
	m.generators[format] = gen
}

// GetGenerator returns the generator registered under format, if any.
func (m *Manager) GetGenerator(format string) (Generator, bool) {
	gen, ok := m.generators[format]
	return gen, ok
}

// Generate writes report in format to a timestamped file under outputDir
// and returns its path.
func (m *Manager) Generate(report *Report, format string) (string, error) {
	gen, ok := m.generators[format]
	if !ok {
		return "", fmt.Errorf("unknown report format: %s", format)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	timestamp := report.GeneratedAt.Format("20060102_150405")
	name := fmt.Sprintf("report_%s.%s", timestamp, gen.Extension())
	path := filepath.Join(m.outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := gen.Generate(report, f); err != nil {
		return "", fmt.Errorf("generating report: %w", err)
	}
	return path, nil
}

// GenerateAll generates a report in every registered format, skipping
// duplicate extensions ("md" and "markdown" both produce .md).
func (m *Manager) GenerateAll(report *Report) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	for format, gen := range m.generators {
		ext := gen.Extension()
		if seen[ext] {
			continue
		}
		seen[ext] = true

		path, err := m.Generate(report, format)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

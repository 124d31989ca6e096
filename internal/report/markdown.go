package report

import (
	"fmt"
	"io"
)

// MarkdownGenerator renders a Report as GitHub-flavored Markdown, for
// pasting into an issue or a CI job summary.
type MarkdownGenerator struct{}

// Generate writes report to w as Markdown.
func (g *MarkdownGenerator) Generate(report *Report, w io.Writer) error {
	bw := &errWriter{w: w}

	bw.printf("# %s\n\n", report.Title)
	bw.printf("- Target: `%s`\n", report.TargetURL)
	bw.printf("- Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	bw.printf("- Version: %s\n\n", report.Version)

	bw.printf("## Statistics\n\n")
	bw.printf("| Metric | Value |\n")
	bw.printf("|---|---|\n")
	bw.printf("| Executions | %d |\n", report.Statistics.Executions)
	bw.printf("| Corpus size | %d |\n", report.Statistics.CorpusSize)
	bw.printf("| Solutions | %d |\n", report.Statistics.SolutionCount)
	bw.printf("| Crashes | %d |\n", report.Statistics.CrashCount)
	bw.printf("| Execs/sec | %.1f |\n", report.Statistics.ExecsPerSec)
	bw.printf("| Duration | %s |\n\n", report.Statistics.Duration)

	bw.printf("## Findings (%d)\n\n", len(report.Findings))
	if len(report.Findings) == 0 {
		bw.printf("No findings.\n")
		return bw.err
	}

	for _, f := range report.Findings {
		bw.printf("### [%s] %s\n\n", f.Severity, f.Category)
		bw.printf("- Hash: `%s`\n", f.Hash)
		if f.Evidence != "" {
			bw.printf("- Evidence: %s\n", f.Evidence)
		}
		if f.Payload != "" {
			bw.printf("- Payload: `%s`\n", truncateMarkdown(f.Payload, 200))
		}
		bw.printf("\n")
	}
	return bw.err
}

// Extension returns the file extension.
func (g *MarkdownGenerator) Extension() string {
	return "md"
}

func truncateMarkdown(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// errWriter lets Generate chain printf calls without checking every error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/brokerscan/internal/model"
)

// SimpleWriter outputs a human-readable text report for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds titles, snippets and every matched URL.
	verbose bool

	// checklist appends the opt-out checklist.
	checklist bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithChecklist appends the opt-out checklist to the report.
func WithChecklist(include bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.checklist = include
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		checklist:  true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.DiscoveryRun) (int, error) {
	if run == nil {
		return 0, ErrNilRun
	}

	var sb strings.Builder
	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeResults(&sb, run)
	if w.verbose {
		w.writeDetails(&sb, run)
	}
	if w.checklist {
		sb.WriteString(Checklist(run))
		sb.WriteString("\n")
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.DiscoveryRun) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        BROKERSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Subject:   %s\n", subjectLine(run.Profile))
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Scan Date: %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:  %s\n", d.Round(100*time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *model.DiscoveryRun) {
	s := run.Summary()
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nSUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	fmt.Fprintf(sb, "  Brokers searched: %d\n", s.Total)
	fmt.Fprintf(sb, "  Likely listings:  %d\n", s.Found)
	fmt.Fprintf(sb, "  Not found:        %d\n", s.NotFound-s.Errored)
	fmt.Fprintf(sb, "  Errors:           %d\n", s.Errored)
	sb.WriteString("\n")
}

// writeResults renders one GitHub-style table row per broker.
func (w *SimpleWriter) writeResults(sb *strings.Builder, run *model.DiscoveryRun) {
	if len(run.Results) == 0 {
		sb.WriteString("No results.\n\n")
		return
	}

	rows := make([][]string, 0, len(run.Results))
	for _, r := range run.Results {
		rows = append(rows, []string{
			r.Broker,
			statusLabel(r),
			truncateString(r.URL, 60),
			truncateString(r.Notes, 60),
		})
	}

	md := markdown.NewMarkdown(sb)
	md.Table(markdown.TableSet{
		Header: []string{"Broker", "Status", "URL", "Notes"},
		Rows:   rows,
	})
	_ = md.Build() //nolint:errcheck // strings.Builder never fails
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDetails(sb *strings.Builder, run *model.DiscoveryRun) {
	found := run.FoundResults()
	if len(found) == 0 {
		return
	}
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nDETAILS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range found {
		fmt.Fprintf(sb, "  [+] %s\n", r.Broker)
		if r.Title != "" {
			fmt.Fprintf(sb, "      Title:   %s\n", r.Title)
		}
		if r.Snippet != "" && r.Snippet != r.Title {
			fmt.Fprintf(sb, "      Snippet: %s\n", r.Snippet)
		}
		urls := r.URLs
		if len(urls) == 0 {
			urls = []string{r.URL}
		}
		for _, u := range urls {
			fmt.Fprintf(sb, "      URL:     %s\n", u)
		}
		sb.WriteString("\n")
	}
}

package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/brokerscan/internal/model"
)

// MarkdownWriter outputs a shareable Markdown report that ends with the
// opt-out checklist.
type MarkdownWriter struct {
	baseWriter
	version string
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownVersion sets the version shown in the footer.
func WithMarkdownVersion(version string) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.version = version
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.DiscoveryRun) (int, error) {
	if run == nil {
		return 0, ErrNilRun
	}
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeResults(md, run)
	w.writeChecklist(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.DiscoveryRun) {
	md.H1("Broker Discovery Report")
	md.PlainText("")

	rows := [][]string{{"Subject", subjectLine(run.Profile)}}
	if !run.StartedAt.IsZero() {
		rows = append(rows, []string{"Scan Date", run.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if d := run.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	rows = append(rows, []string{"Brokers Searched", strconv.Itoa(len(run.Results))})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.DiscoveryRun) {
	s := run.Summary()
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🔴 Likely listing", strconv.Itoa(s.Found)},
			{"🟢 Not found", strconv.Itoa(s.NotFound - s.Errored)},
			{"⚠️ Error", strconv.Itoa(s.Errored)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case s.Found > 0:
		md.Warningf("%d broker(s) appear to list this person. Submit the opt-out requests below.", s.Found)
	case s.Errored > 0:
		md.Cautionf("%d broker(s) could not be searched. Check them manually.", s.Errored)
	default:
		md.Tip("No listings detected in the automated scan.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Broker Outcomes"),
		piechart.WithShowData(true),
	)
	if s.Found > 0 {
		chart.LabelAndIntValue("Likely listing", uint64(s.Found))
	}
	if n := s.NotFound - s.Errored; n > 0 {
		chart.LabelAndIntValue("Not found", uint64(n))
	}
	if s.Errored > 0 {
		chart.LabelAndIntValue("Error", uint64(s.Errored))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, run *model.DiscoveryRun) {
	md.H2("Results")
	md.PlainText("")

	if len(run.Results) == 0 {
		md.PlainText("No brokers were searched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(run.Results))
	for i, r := range run.Results {
		url := r.URL
		if url == "" {
			url = "-"
		}
		notes := r.Notes
		if notes == "" {
			notes = "-"
		}
		rows[i] = []string{r.Broker, statusLabel(r), truncateString(url, 80), truncateString(notes, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Broker", "Status", "URL", "Notes"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range run.FoundResults() {
		if len(r.URLs) > 1 {
			md.Details(r.Broker+" matches", strings.Join(r.URLs, "\n"))
		}
	}
}

func (w *MarkdownWriter) writeChecklist(md *markdown.Markdown, run *model.DiscoveryRun) {
	name := ""
	if run.Profile != nil {
		name = run.Profile.Name()
	}
	md.H2("Opt-out Checklist for " + name)
	md.PlainText("")
	md.PlainText("Sites with likely listings:")
	md.PlainText("")

	found := run.FoundResults()
	if len(found) == 0 {
		md.BulletList("None detected in automated scan.")
	} else {
		items := make([]string, 0, len(found))
		for _, r := range found {
			item := "**" + r.Broker + "**: " + r.URL
			if r.Notes != "" {
				item += " (" + r.Notes + ")"
			}
			items = append(items, item)
		}
		md.BulletList(items...)
	}
	md.PlainText("")

	md.PlainText("Recommended attachments (if requested):")
	md.PlainText("")
	md.BulletList(Attachments...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	footer := "*Report generated by brokerscan"
	if w.version != "" {
		footer += " " + w.version
	}
	md.PlainText(footer + ". Matches are heuristic; confirm each listing before filing an opt-out.*")
}

package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/brokerscan/internal/model"
)

// ProviderStatus is the per-broker status record of a run.
type ProviderStatus struct {
	DisplayName     string   `json:"display_name"`
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	RecordsFound    int      `json:"records_found"`
	OptOutSubmitted bool     `json:"opt_out_submitted"`
	URLs            []string `json:"urls"`
	StartedAt       string   `json:"started_at,omitempty"`
	FinishedAt      string   `json:"finished_at,omitempty"`
}

// Provider messages.
const (
	MessageMatchesFound = "Matches found"
	MessageNoResults    = "No results detected"
)

// NewProviderStatus summarizes one result. The message is "Matches found",
// the error notes of an errored result, or "No results detected".
func NewProviderStatus(r *model.BrokerResult) ProviderStatus {
	urls := make([]string, 0, r.MatchCount())
	if r.Found {
		if len(r.URLs) > 0 {
			urls = append(urls, r.URLs...)
		} else {
			urls = append(urls, r.URL)
		}
	}

	ps := ProviderStatus{
		DisplayName:  r.Broker,
		Status:       "not_found",
		Message:      MessageNoResults,
		RecordsFound: len(urls),
		URLs:         urls,
		StartedAt:    formatTime(r.StartedAt),
		FinishedAt:   formatTime(r.FinishedAt),
	}
	switch {
	case r.Found:
		ps.Status = "found"
		ps.Message = MessageMatchesFound
	case r.Status == model.StatusErrored:
		ps.Status = "error"
		ps.Message = r.Notes
	}
	return ps
}

// JSONReport is the structured form of a run. Version is the brokerscan
// version that generated it.
type JSONReport struct {
	Version    string                `json:"version,omitempty"`
	Name       string                `json:"name"`
	City       string                `json:"city,omitempty"`
	State      string                `json:"state,omitempty"`
	Status     string                `json:"status"`
	StartedAt  string                `json:"started_at,omitempty"`
	FinishedAt string                `json:"finished_at,omitempty"`
	Summary    model.RunSummary      `json:"summary"`
	Providers  []ProviderStatus      `json:"providers"`
	Results    []*model.BrokerResult `json:"results"`
}

// NewJSONReport builds the structured report of run.
func NewJSONReport(run *model.DiscoveryRun, version string) *JSONReport {
	rep := &JSONReport{
		Version:    version,
		Status:     "completed",
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		Summary:    run.Summary(),
		Providers:  make([]ProviderStatus, 0, len(run.Results)),
		Results:    run.Results,
	}
	if run.Profile != nil {
		rep.Name = run.Profile.Name()
		rep.City = run.Profile.City()
		rep.State = run.Profile.State()
	}
	for _, r := range run.Results {
		rep.Providers = append(rep.Providers, NewProviderStatus(r))
	}
	return rep
}

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	version      string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the generating version in the report.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run as a JSONReport.
func (w *JSONWriter) Write(run *model.DiscoveryRun) (int, error) {
	if run == nil {
		return 0, ErrNilRun
	}
	return w.writeJSON(NewJSONReport(run, w.version))
}

// WriteResults outputs only the flat result mappings, the layout of the
// saved results file.
func (w *JSONWriter) WriteResults(results []*model.BrokerResult) (int, error) {
	rows := make([]map[string]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.ToMap())
	}
	return w.writeJSON(rows)
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/brokerscan/internal/model"
)

// Writer renders a discovery run to its destination.
type Writer interface {
	// Write outputs the run and returns the number of bytes written.
	Write(run *model.DiscoveryRun) (int, error)
}

// Format names an output format.
type Format string

const (
	// FormatText is the human-readable terminal report.
	FormatText Format = "text"
	// FormatJSON is the structured report.
	FormatJSON Format = "json"
	// FormatCSV is one row per broker.
	FormatCSV Format = "csv"
	// FormatMarkdown is the shareable report with the checklist.
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat resolves a format name. "txt" and "md" are accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// NewWriter returns the writer of format f on output.
func NewWriter(f Format, output io.Writer, version string) (Writer, error) {
	switch f {
	case FormatText:
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, WithMarkdownVersion(version)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to every writer, stopping at the first error.
// It returns the total bytes written.
func (m *MultiWriter) Write(run *model.DiscoveryRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// subjectLine is "Name, City, ST" with the empty parts left out.
func subjectLine(p *model.ClientProfile) string {
	if p == nil {
		return "N/A"
	}
	parts := []string{p.Name()}
	if p.City() != "" {
		parts = append(parts, p.City())
	}
	if p.State() != "" {
		parts = append(parts, p.State())
	}
	return strings.Join(parts, ", ")
}

// statusLabel is the short outcome text of a result.
func statusLabel(r *model.BrokerResult) string {
	switch {
	case r.Found:
		return "FOUND"
	case r.Status == model.StatusErrored:
		return "ERROR"
	default:
		return "not found"
	}
}

// truncateString cuts s to maxLen runes, ending with "..." when cut.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

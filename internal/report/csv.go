package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/nao1215/brokerscan/internal/model"
)

// CSVWriter writes one row per broker with a header of model.ResultFields.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the results of run as CSV.
func (w *CSVWriter) Write(run *model.DiscoveryRun) (int, error) {
	if run == nil {
		return 0, ErrNilRun
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(model.ResultFields); err != nil {
		return 0, fmt.Errorf("write CSV header: %w", err)
	}
	for _, r := range run.Results {
		m := r.ToMap()
		row := make([]string, len(model.ResultFields))
		for i, field := range model.ResultFields {
			row[i] = m[field]
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("write CSV row for %s: %w", r.Broker, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush CSV: %w", err)
	}

	return w.output.Write(buf.Bytes())
}

// ReadCSV parses results written by CSVWriter.
func ReadCSV(r io.Reader) ([]*model.BrokerResult, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	results := make([]*model.BrokerResult, 0, len(records)-1)
	for _, rec := range records[1:] {
		m := make(map[string]string, len(header))
		for i, field := range header {
			if i < len(rec) {
				m[field] = rec[i]
			}
		}
		res, err := model.BrokerResultFromMap(m)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

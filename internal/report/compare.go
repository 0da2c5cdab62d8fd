package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/brokerscan/internal/model"
)

// Exposure directions of a comparison.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// RunSnapshot is the part of a run shown in a comparison.
type RunSnapshot struct {
	StartedAt time.Time        `json:"started_at"`
	Summary   model.RunSummary `json:"summary"`
}

// BrokerChange is one broker whose listing state differs between runs.
type BrokerChange struct {
	Broker string `json:"broker"`
	URL    string `json:"url,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// Comparison is the difference between two runs for the same person.
type Comparison struct {
	Subject  string      `json:"subject"`
	Previous RunSnapshot `json:"previous"`
	Current  RunSnapshot `json:"current"`

	// NewlyFound lists brokers that list the person now but did not before.
	NewlyFound []BrokerChange `json:"newly_found"`

	// NoLongerFound lists brokers whose listing disappeared, typically after
	// an opt-out was processed.
	NoLongerFound []BrokerChange `json:"no_longer_found"`

	// StillFound lists brokers that list the person in both runs.
	StillFound []BrokerChange `json:"still_found"`

	// Direction is DirectionImproved when fewer brokers list the person.
	Direction string `json:"direction"`
}

// CompareRuns diffs previous against current. Brokers are matched by folded
// display name; errored results count as not found in either run.
func CompareRuns(previous, current *model.DiscoveryRun) (*Comparison, error) {
	if previous == nil || current == nil {
		return nil, ErrNilRun
	}

	c := &Comparison{
		Previous:      RunSnapshot{StartedAt: previous.StartedAt, Summary: previous.Summary()},
		Current:       RunSnapshot{StartedAt: current.StartedAt, Summary: current.Summary()},
		NewlyFound:    make([]BrokerChange, 0),
		NoLongerFound: make([]BrokerChange, 0),
		StillFound:    make([]BrokerChange, 0),
	}
	if current.Profile != nil {
		c.Subject = current.Profile.String()
	}

	before := foundByBroker(previous)
	after := foundByBroker(current)

	for _, r := range current.FoundResults() {
		change := BrokerChange{Broker: r.Broker, URL: r.URL, Notes: r.Notes}
		if _, ok := before[model.FoldText(r.Broker)]; ok {
			c.StillFound = append(c.StillFound, change)
		} else {
			c.NewlyFound = append(c.NewlyFound, change)
		}
	}
	for _, r := range previous.FoundResults() {
		if _, ok := after[model.FoldText(r.Broker)]; !ok {
			c.NoLongerFound = append(c.NoLongerFound, BrokerChange{Broker: r.Broker, URL: r.URL, Notes: r.Notes})
		}
	}

	switch delta := c.Current.Summary.Found - c.Previous.Summary.Found; {
	case delta < 0:
		c.Direction = DirectionImproved
	case delta > 0:
		c.Direction = DirectionWorsened
	default:
		c.Direction = DirectionUnchanged
	}
	return c, nil
}

func foundByBroker(run *model.DiscoveryRun) map[string]*model.BrokerResult {
	m := make(map[string]*model.BrokerResult)
	for _, r := range run.FoundResults() {
		m[model.FoldText(r.Broker)] = r
	}
	return m
}

// WriteComparison renders c in format f. CSV is not supported for
// comparisons.
func WriteComparison(output io.Writer, c *Comparison, f Format) error {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		_, err = output.Write(append(data, '\n'))
		return err
	case FormatMarkdown:
		return writeComparisonMarkdown(output, c)
	case FormatText:
		_, err := io.WriteString(output, comparisonText(c))
		return err
	default:
		return fmt.Errorf("%w: %q for comparison", ErrUnknownFormat, string(f))
	}
}

func comparisonText(c *Comparison) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n                        RUN COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Subject:  %s\n", c.Subject)
	fmt.Fprintf(&sb, "Previous: %s (%d likely listings)\n", formatScanDate(c.Previous.StartedAt), c.Previous.Summary.Found)
	fmt.Fprintf(&sb, "Current:  %s (%d likely listings)\n", formatScanDate(c.Current.StartedAt), c.Current.Summary.Found)
	fmt.Fprintf(&sb, "Exposure: %s (%s)\n\n", formatDirection(c.Direction), formatDelta(c.Current.Summary.Found-c.Previous.Summary.Found))

	writeChangeSection(&sb, "NEWLY FOUND", "+", c.NewlyFound)
	writeChangeSection(&sb, "NO LONGER FOUND", "-", c.NoLongerFound)
	writeChangeSection(&sb, "STILL FOUND", "=", c.StillFound)

	return sb.String()
}

func writeChangeSection(sb *strings.Builder, title, marker string, changes []BrokerChange) {
	fmt.Fprintf(sb, "%s (%d)\n", title, len(changes))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	if len(changes) == 0 {
		sb.WriteString("  none\n\n")
		return
	}
	for _, ch := range changes {
		fmt.Fprintf(sb, "  [%s] %s", marker, ch.Broker)
		if ch.URL != "" {
			fmt.Fprintf(sb, ": %s", ch.URL)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func writeComparisonMarkdown(output io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(output)
	md.H1("Run Comparison: " + c.Subject)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Run", "Date", "Likely listings", "Errors"},
		Rows: [][]string{
			{"Previous", formatScanDate(c.Previous.StartedAt), strconv.Itoa(c.Previous.Summary.Found), strconv.Itoa(c.Previous.Summary.Errored)},
			{"Current", formatScanDate(c.Current.StartedAt), strconv.Itoa(c.Current.Summary.Found), strconv.Itoa(c.Current.Summary.Errored)},
		},
	})
	md.PlainText("")

	switch c.Direction {
	case DirectionWorsened:
		md.Warningf("Exposure worsened: %d new listing(s) since the previous run.", len(c.NewlyFound))
	case DirectionImproved:
		md.Tip("Exposure improved: fewer brokers list this person than in the previous run.")
	default:
		md.Note("Exposure unchanged since the previous run.")
	}
	md.PlainText("")

	for _, section := range []struct {
		title   string
		changes []BrokerChange
	}{
		{"Newly Found", c.NewlyFound},
		{"No Longer Found", c.NoLongerFound},
		{"Still Found", c.StillFound},
	} {
		md.H2(fmt.Sprintf("%s (%d)", section.title, len(section.changes)))
		md.PlainText("")
		if len(section.changes) == 0 {
			md.PlainText("None.")
			md.PlainText("")
			continue
		}
		items := make([]string, 0, len(section.changes))
		for _, ch := range section.changes {
			item := "**" + ch.Broker + "**"
			if ch.URL != "" {
				item += ": " + ch.URL
			}
			items = append(items, item)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	return md.Build()
}

func formatScanDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDirection(direction string) string {
	switch direction {
	case DirectionImproved:
		return "IMPROVED"
	case DirectionWorsened:
		return "WORSENED"
	default:
		return "UNCHANGED"
	}
}

func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

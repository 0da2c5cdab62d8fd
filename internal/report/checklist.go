package report

import (
	"strings"

	"github.com/nao1215/brokerscan/internal/model"
)

// Attachments are the documents brokers commonly ask for with a removal request.
var Attachments = []string{
	"Redacted government ID (show name & address only)",
	"Proof of address (utility bill)",
}

// Checklist renders the plain-text opt-out checklist of run.
func Checklist(run *model.DiscoveryRun) string {
	if run == nil {
		return ChecklistFor("", nil)
	}
	name := ""
	if run.Profile != nil {
		name = run.Profile.Name()
	}
	return ChecklistFor(name, run.Results)
}

// ChecklistFor renders the opt-out checklist for name: every broker with a
// likely listing followed by the recommended attachments.
func ChecklistFor(name string, results []*model.BrokerResult) string {
	lines := []string{"Opt-out Checklist for " + name, "", "Sites with likely listings:"}

	found := 0
	for _, r := range results {
		if r == nil || !r.Found {
			continue
		}
		found++
		lines = append(lines, "- "+r.Broker+": "+r.URL, "  Notes: "+r.Notes)
	}
	if found == 0 {
		lines = append(lines, "- None detected in automated scan.")
	}

	lines = append(lines, "", "Recommended attachments (if requested):")
	for _, a := range Attachments {
		lines = append(lines, "- "+a)
	}
	return strings.Join(lines, "\n")
}

package model

import "time"

// DiscoveryRun is the full outcome of one discovery: the profile that was
// searched and one result per broker in broker iteration order.
type DiscoveryRun struct {
	// Profile is the searched identity.
	Profile *ClientProfile `json:"profile"`

	// Results is ordered like the broker list.
	Results []*BrokerResult `json:"results"`

	// StartedAt and FinishedAt bracket the whole run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewDiscoveryRun creates an empty run for the profile.
func NewDiscoveryRun(profile *ClientProfile) *DiscoveryRun {
	return &DiscoveryRun{
		Profile: profile,
		Results: make([]*BrokerResult, 0),
	}
}

// Duration returns the wall time of the run, or zero if it has not finished.
func (r *DiscoveryRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FoundResults returns the results with Found set, in run order.
func (r *DiscoveryRun) FoundResults() []*BrokerResult {
	found := make([]*BrokerResult, 0)
	for _, res := range r.Results {
		if res.Found {
			found = append(found, res)
		}
	}
	return found
}

// RunSummary counts results by outcome.
type RunSummary struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errored  int `json:"errored"`
}

// Summary counts the run's results by outcome. Errored results are also
// counted as not found.
func (r *DiscoveryRun) Summary() RunSummary {
	s := RunSummary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch {
		case res.Found:
			s.Found++
		case res.Status == StatusErrored:
			s.Errored++
			s.NotFound++
		default:
			s.NotFound++
		}
	}
	return s
}

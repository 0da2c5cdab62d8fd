package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResultStatus is the terminal (or in-flight) state of one broker evaluation.
type ResultStatus string

const (
	// StatusPending means the broker has not been processed yet.
	StatusPending ResultStatus = "pending"

	// StatusFetching means the matcher is running.
	StatusFetching ResultStatus = "fetching"

	// StatusMatched means the matcher found a listing.
	StatusMatched ResultStatus = "matched"

	// StatusNotMatched means no listing was found or the result is inconclusive.
	StatusNotMatched ResultStatus = "not_matched"

	// StatusErrored means the matcher failed; Notes carries the cause.
	StatusErrored ResultStatus = "errored"
)

// IsTerminal reports whether the status ends a broker evaluation.
func (s ResultStatus) IsTerminal() bool {
	return s == StatusMatched || s == StatusNotMatched || s == StatusErrored
}

// BrokerResult is the outcome of searching one broker.
// Exactly one result is produced per broker per run.
type BrokerResult struct {
	// Broker is the display name of the site.
	Broker string `json:"broker"`

	// Found is true when the matcher saw evidence of a listing.
	// Found implies URL is not empty (see Normalize).
	Found bool `json:"found"`

	// URL is the query or match URL.
	URL string `json:"url,omitempty"`

	// URLs holds every matched URL for matchers that return several.
	URLs []string `json:"urls,omitempty"`

	// Title is corroborating evidence such as the page heading.
	Title string `json:"title,omitempty"`

	// Snippet is a short excerpt around the match.
	Snippet string `json:"raw_snippet,omitempty"`

	// Notes carries opt-out instructions or error text.
	Notes string `json:"notes,omitempty"`

	// Status is the terminal state of the evaluation.
	Status ResultStatus `json:"status,omitempty"`

	// StartedAt and FinishedAt bracket the evaluation.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewBrokerResult creates a pending result for the named broker.
func NewBrokerResult(broker string) *BrokerResult {
	return &BrokerResult{
		Broker: broker,
		Status: StatusPending,
	}
}

// Normalize enforces the Found implies URL invariant. A found result without
// a URL borrows the first entry of URLs, or is downgraded to not found.
// Status is derived from Found unless the result errored.
func (r *BrokerResult) Normalize() {
	if r.Found && r.URL == "" {
		if len(r.URLs) > 0 {
			r.URL = r.URLs[0]
		} else {
			r.Found = false
		}
	}

	if r.Status == StatusErrored {
		r.Found = false
		return
	}
	if r.Found {
		r.Status = StatusMatched
	} else {
		r.Status = StatusNotMatched
	}
}

// MatchCount returns the number of matched URLs.
func (r *BrokerResult) MatchCount() int {
	if !r.Found {
		return 0
	}
	if len(r.URLs) > 0 {
		return len(r.URLs)
	}
	return 1
}

// ResultFields lists the keys of the flat mapping in column order.
var ResultFields = []string{
	"broker",
	"found",
	"url",
	"title",
	"notes",
	"raw_snippet",
	"status",
	"urls",
	"started_at",
	"finished_at",
}

// ToMap converts the result to its flat field mapping.
// URLs are joined with newlines, which never occur in an escaped URL;
// timestamps use RFC 3339 in UTC and are empty when unset.
func (r *BrokerResult) ToMap() map[string]string {
	return map[string]string{
		"broker":      r.Broker,
		"found":       strconv.FormatBool(r.Found),
		"url":         r.URL,
		"title":       r.Title,
		"notes":       r.Notes,
		"raw_snippet": r.Snippet,
		"status":      string(r.Status),
		"urls":        strings.Join(r.URLs, urlSeparator),
		"started_at":  formatTime(r.StartedAt),
		"finished_at": formatTime(r.FinishedAt),
	}
}

const urlSeparator = "\n"

// splitURLs undoes the urls encoding of ToMap. Empty lines are skipped and
// an empty field yields nil.
func splitURLs(v string) []string {
	var urls []string
	for _, u := range strings.Split(v, urlSeparator) {
		if u = strings.TrimSuffix(u, "\r"); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// BrokerResultFromMap rebuilds a result from the mapping produced by ToMap.
// Missing keys leave the zero value.
func BrokerResultFromMap(m map[string]string) (*BrokerResult, error) {
	r := &BrokerResult{
		Broker:  m["broker"],
		URL:     m["url"],
		Title:   m["title"],
		Notes:   m["notes"],
		Snippet: m["raw_snippet"],
		Status:  ResultStatus(m["status"]),
		URLs:    splitURLs(m["urls"]),
	}

	if v := m["found"]; v != "" {
		found, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: found=%q", ErrInvalidResultField, v)
		}
		r.Found = found
	}

	var err error
	if r.StartedAt, err = parseTime(m["started_at"]); err != nil {
		return nil, fmt.Errorf("%w: started_at: %v", ErrInvalidResultField, err)
	}
	if r.FinishedAt, err = parseTime(m["finished_at"]); err != nil {
		return nil, fmt.Errorf("%w: finished_at: %v", ErrInvalidResultField, err)
	}

	return r, nil
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime is the inverse of formatTime.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

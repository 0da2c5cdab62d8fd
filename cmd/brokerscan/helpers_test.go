package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/brokerscan/internal/config"
	"github.com/nao1215/brokerscan/internal/database"
	"github.com/nao1215/brokerscan/internal/model"
)

// rewriteTransport sends every request to target while keeping the original
// Host header, so one httptest server can play several broker sites.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Host = req.URL.Host
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newBrokerServer serves a TruePeopleSearch result page listing Jane Doe and
// an empty FastPeopleSearch page.
func newBrokerServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "www.truepeoplesearch.com":
			_, _ = w.Write([]byte(`<html><body><h1>Results</h1>
<a href="/details?name=jane-doe&amp;rid=1">Jane Doe, 41, Austin TX</a>
<a href="/removal">Remove</a></body></html>`))
		case "www.fastpeoplesearch.com":
			_, _ = w.Write([]byte(`<html><head><title>Search</title></head><body><p>No records matched your search.</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testTransport routes all broker traffic to srv.
func testTransport(t *testing.T, srv *httptest.Server) transportFunc {
	t.Helper()

	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return func(context.Context, *config.Config, *slog.Logger) (*http.Client, io.Closer, error) {
		client := &http.Client{Transport: rewriteTransport{target: target}}
		return client, closerFunc(func() error { return nil }), nil
	}
}

// writeSitesFile writes a broker list served by newBrokerServer.
func writeSitesFile(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "sites.yaml")
	content := "- TruePeopleSearch.com\n- FastPeopleSearch.com\n- TruthFinder.com\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func janeDoe(t *testing.T) *model.ClientProfile {
	t.Helper()

	p, err := model.NewClientProfile("Jane Doe", model.WithCity("Austin"), model.WithState("TX"))
	if err != nil {
		t.Fatalf("NewClientProfile: %v", err)
	}
	return p
}

// storedRun builds a run for profile in which the named brokers list the
// person.
func storedRun(profile *model.ClientProfile, start time.Time, found ...string) *model.DiscoveryRun {
	isFound := make(map[string]bool, len(found))
	for _, f := range found {
		isFound[f] = true
	}

	run := model.NewDiscoveryRun(profile)
	run.StartedAt = start
	for _, broker := range []string{"Spokeo", "Whitepages", "TruePeopleSearch"} {
		r := model.NewBrokerResult(broker)
		r.StartedAt = start
		r.FinishedAt = start.Add(time.Second)
		if isFound[broker] {
			r.Found = true
			r.URL = "https://example.com/" + broker + "/jane-doe"
		}
		r.Normalize()
		run.Results = append(run.Results, r)
	}
	run.FinishedAt = start.Add(3 * time.Second)
	return run
}

// seedRuns stores runs in a new database under dir and returns their IDs.
func seedRuns(t *testing.T, dir string, runs ...*model.DiscoveryRun) []int64 {
	t.Helper()

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ids := make([]int64, 0, len(runs))
	for _, run := range runs {
		id, err := db.SaveRun(context.Background(), run)
		if err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

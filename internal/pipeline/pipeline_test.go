package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/matcher"
	"github.com/nao1215/brokerscan/internal/model"
	"github.com/nao1215/brokerscan/internal/registry"
)

// stubMatcher returns a fixed result or error, or panics.
type stubMatcher struct {
	name   string
	result *model.BrokerResult
	err    error
	panic  any

	mu    sync.Mutex
	calls int
}

func (s *stubMatcher) Name() string { return s.name }

func (s *stubMatcher) Search(context.Context, matcher.Query) (*model.BrokerResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panic != nil {
		panic(s.panic)
	}
	if s.result == nil {
		return nil, s.err
	}
	res := *s.result
	return &res, s.err
}

func (s *stubMatcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// failingSource always fails.
type failingSource struct{}

func (failingSource) Brokers(context.Context) ([]model.BrokerSite, error) {
	return nil, errors.New("disk on fire")
}

// progressLog records progress callbacks.
type progressLog struct {
	values   []int
	messages []string
}

func (p *progressLog) record(percent int, message string) {
	p.values = append(p.values, percent)
	p.messages = append(p.messages, message)
}

func site(display, domain string) model.BrokerSite {
	return model.BrokerSite{Key: registry.Slug(display), Display: display, Domain: domain}
}

func janeDoe(t *testing.T) *model.ClientProfile {
	t.Helper()
	p, err := model.NewClientProfile("Jane Doe", model.WithCity("Austin"), model.WithState("TX"))
	if err != nil {
		t.Fatalf("NewClientProfile: %v", err)
	}
	return p
}

func newOrchestrator(sites []model.BrokerSite, matchers map[string]matcher.Matcher, opts ...Option) *Orchestrator {
	regOpts := make([]matcher.RegistryOption, 0, len(matchers))
	for domain, m := range matchers {
		regOpts = append(regOpts, matcher.WithMatcher(domain, m))
	}
	deps := matcher.Deps{Delay: fetch.NoDelay()}
	reg := matcher.NewRegistry(deps, regOpts...)
	return New(registry.StaticSource(sites), deps, append([]Option{WithRegistry(reg)}, opts...)...)
}

func found(broker, u string) *model.BrokerResult {
	return &model.BrokerResult{Broker: broker, Found: true, URL: u}
}

func TestPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		i, n, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 66},
		{3, 3, 100},
		{0, 1, 0},
		{1, 1, 100},
		{0, 0, 100},
		{7, 8, 87},
	}
	for _, tt := range tests {
		if got := percent(tt.i, tt.n); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestRunDiscovery_Progress(t *testing.T) {
	t.Parallel()

	t.Run("three brokers", func(t *testing.T) {
		t.Parallel()

		sites := []model.BrokerSite{site("A", "a.test"), site("B", "b.test"), site("C", "c.test")}
		o := newOrchestrator(sites, map[string]matcher.Matcher{
			"a.test": &stubMatcher{name: "A", result: found("A", "https://a.test/p")},
			"b.test": &stubMatcher{name: "B", result: &model.BrokerResult{Broker: "B"}},
			"c.test": &stubMatcher{name: "C", err: errors.New("blocked")},
		})

		var log progressLog
		run, err := o.RunDiscovery(context.Background(), janeDoe(t), log.record, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(run.Results))
		}

		want := []int{0, 0, 33, 33, 66, 66, 100, 100}
		if len(log.values) != len(want) {
			t.Fatalf("progress = %v, want %v", log.values, want)
		}
		for i := range want {
			if log.values[i] != want[i] {
				t.Errorf("progress[%d] = %d, want %d", i, log.values[i], want[i])
			}
		}
		if log.messages[1] != "A: searching" || log.messages[2] != "A: matches found" {
			t.Errorf("unexpected messages %q", log.messages[:3])
		}
		if log.messages[4] != "B: no results detected" || log.messages[6] != "C: error" {
			t.Errorf("unexpected messages %q", log.messages)
		}
		if !strings.HasPrefix(log.messages[7], "Completed: 1 of 3") {
			t.Errorf("final message = %q", log.messages[7])
		}
	})

	t.Run("empty broker list still completes", func(t *testing.T) {
		t.Parallel()

		o := newOrchestrator(nil, nil)
		var log progressLog
		run, err := o.RunDiscovery(context.Background(), janeDoe(t), log.record, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Results) != 0 {
			t.Errorf("expected no results, got %d", len(run.Results))
		}
		if len(log.values) != 2 || log.values[0] != 0 || log.values[1] != 100 {
			t.Errorf("progress = %v, want [0 100]", log.values)
		}
	})

	t.Run("nil callback", func(t *testing.T) {
		t.Parallel()

		o := newOrchestrator([]model.BrokerSite{site("A", "a.test")}, map[string]matcher.Matcher{
			"a.test": &stubMatcher{name: "A"},
		})
		if _, err := o.RunDiscovery(context.Background(), janeDoe(t), nil, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRunDiscovery_FailureIsolation(t *testing.T) {
	t.Parallel()

	sites := []model.BrokerSite{
		site("Erroring", "err.test"),
		site("Panicking", "panic.test"),
		site("Good", "good.test"),
		site("Nil", "nil.test"),
	}
	good := &stubMatcher{name: "Good", result: found("Good", "https://good.test/jane")}
	o := newOrchestrator(sites, map[string]matcher.Matcher{
		"err.test":   &stubMatcher{name: "Erroring", err: errors.New("HTTP 503")},
		"panic.test": &stubMatcher{name: "Panicking", panic: "index out of range"},
		"good.test":  good,
		"nil.test":   &stubMatcher{name: "Nil"},
	})

	var log progressLog
	run, err := o.RunDiscovery(context.Background(), janeDoe(t), log.record, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantBrokers := []string{"Erroring", "Panicking", "Good", "Nil"}
	for i, res := range run.Results {
		if res.Broker != wantBrokers[i] {
			t.Errorf("Results[%d].Broker = %q, want %q", i, res.Broker, wantBrokers[i])
		}
		if !res.Status.IsTerminal() {
			t.Errorf("Results[%d].Status = %q is not terminal", i, res.Status)
		}
	}

	if r := run.Results[0]; r.Found || r.Status != model.StatusErrored || r.Notes != "Error during search: HTTP 503" {
		t.Errorf("erroring broker: %+v", r)
	}
	if r := run.Results[1]; r.Found || r.Status != model.StatusErrored || !strings.Contains(r.Notes, "index out of range") {
		t.Errorf("panicking broker: %+v", r)
	}
	if r := run.Results[2]; !r.Found || r.Status != model.StatusMatched || r.URL != "https://good.test/jane" {
		t.Errorf("good broker: %+v", r)
	}
	if r := run.Results[3]; r.Found || r.Status != model.StatusNotMatched {
		t.Errorf("nil broker: %+v", r)
	}
	if good.callCount() != 1 {
		t.Errorf("good matcher called %d times", good.callCount())
	}
	if last := log.values[len(log.values)-1]; last != 100 {
		t.Errorf("final progress = %d", last)
	}

	s := run.Summary()
	if s.Total != 4 || s.Found != 1 || s.Errored != 2 || s.NotFound != 3 {
		t.Errorf("Summary = %+v", s)
	}
}

func TestRunDiscovery_OptOutNotes(t *testing.T) {
	t.Parallel()

	a := site("A", "a.test")
	a.OptOutURL = "https://a.test/optout"
	b := site("B", "b.test")
	b.OptOutURL = "https://b.test/optout"
	c := site("C", "c.test")

	o := newOrchestrator([]model.BrokerSite{a, b, c}, map[string]matcher.Matcher{
		"a.test": &stubMatcher{name: "A", result: &model.BrokerResult{Broker: "A"}},
		"b.test": &stubMatcher{name: "B", result: &model.BrokerResult{Broker: "B", Notes: "Manual check recommended."}},
		"c.test": &stubMatcher{name: "C", result: &model.BrokerResult{Broker: "C"}},
	}, WithOptOutOverrides(map[string]string{"c": " https://c.test/removal "}))

	run, err := o.RunDiscovery(context.Background(), janeDoe(t), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Opt-out: https://a.test/optout", "Manual check recommended.", "Opt-out: https://c.test/removal"}
	for i, res := range run.Results {
		if res.Notes != want[i] {
			t.Errorf("Results[%d].Notes = %q, want %q", i, res.Notes, want[i])
		}
	}
}

func TestRunDiscovery_Disabled(t *testing.T) {
	t.Parallel()

	off := site("Off", "off.test")
	off.Disabled = true
	sites := []model.BrokerSite{site("On", "on.test"), off}
	matchers := map[string]matcher.Matcher{
		"on.test":  &stubMatcher{name: "On"},
		"off.test": &stubMatcher{name: "Off"},
	}

	tests := []struct {
		name            string
		includeDisabled bool
		want            int
	}{
		{"disabled skipped", false, 1},
		{"disabled included", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := newOrchestrator(sites, matchers)
			run, err := o.RunDiscovery(context.Background(), janeDoe(t), nil, tt.includeDisabled)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(run.Results) != tt.want {
				t.Errorf("got %d results, want %d", len(run.Results), tt.want)
			}
		})
	}
}

func TestRunDiscovery_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	first := &stubMatcher{name: "A"}
	second := &stubMatcher{name: "B"}

	sites := []model.BrokerSite{site("A", "a.test"), site("B", "b.test")}
	o := newOrchestrator(sites, map[string]matcher.Matcher{"a.test": first, "b.test": second})

	var log progressLog
	run, err := o.RunDiscovery(ctx, janeDoe(t), func(p int, msg string) {
		log.record(p, msg)
		if msg == "A: no results detected" {
			cancel()
		}
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.callCount() != 1 || second.callCount() != 0 {
		t.Errorf("calls = %d, %d", first.callCount(), second.callCount())
	}
	r := run.Results[1]
	if r.Status != model.StatusErrored || r.Notes != "Error during search: context canceled" {
		t.Errorf("skipped broker: %+v", r)
	}
	if last := log.values[len(log.values)-1]; last != 100 {
		t.Errorf("final progress = %d", last)
	}
}

func TestRunDiscovery_SetupErrors(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(nil, nil)
	if _, err := o.RunDiscovery(context.Background(), nil, nil, false); !errors.Is(err, ErrNilProfile) {
		t.Errorf("expected ErrNilProfile, got %v", err)
	}

	o = New(failingSource{}, matcher.Deps{})
	if _, err := o.RunDiscovery(context.Background(), janeDoe(t), nil, false); !errors.Is(err, ErrLoadBrokers) {
		t.Errorf("expected ErrLoadBrokers, got %v", err)
	}

	o = New(nil, matcher.Deps{})
	if _, err := o.RunDiscovery(context.Background(), janeDoe(t), nil, false); !errors.Is(err, ErrNoBrokerSource) {
		t.Errorf("expected ErrNoBrokerSource, got %v", err)
	}
}

func TestRunDiscovery_Timestamps(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	o := newOrchestrator([]model.BrokerSite{site("A", "a.test")}, map[string]matcher.Matcher{
		"a.test": &stubMatcher{name: "A"},
	}, WithClock(clock))

	run, err := o.RunDiscovery(context.Background(), janeDoe(t), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := run.Results[0]
	if !run.StartedAt.Before(res.StartedAt) || res.FinishedAt.Before(res.StartedAt) || !run.FinishedAt.After(res.FinishedAt) {
		t.Errorf("timestamps out of order: run %v-%v result %v-%v",
			run.StartedAt, run.FinishedAt, res.StartedAt, res.FinishedAt)
	}
	if run.Duration() != 3*time.Second {
		t.Errorf("Duration = %v", run.Duration())
	}
}

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

func TestRunDiscovery_EndToEnd(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	hits := make(map[string]int)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.Host]++
		mu.Unlock()

		switch r.Host {
		case "www.truepeoplesearch.com":
			if r.URL.Path != "/results" || r.URL.Query().Get("name") != "Jane Doe" || r.URL.Query().Get("citystatezip") != "Austin, TX" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`<html><body><h1>Results</h1>
<a href="/details?name=jane-doe&amp;rid=1">Jane Doe, 41, Austin TX</a>
<a href="/removal">Remove</a></body></html>`))
		case "people-finder.test":
			_, _ = w.Write([]byte(`<html><body><p>No listings for this query.</p><a href="/about">About</a></body></html>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	fetcher := fetch.New(
		&http.Client{Transport: rewriteTransport{target: target}},
		fetch.WithSleeper(fetch.SleeperFunc(func(context.Context, time.Duration) error { return nil })),
		fetch.WithHostRateLimit(rate.Inf, 1),
	)
	deps := matcher.Deps{Fetcher: fetcher, Delay: fetch.NoDelay()}
	sites := registry.FromNames([]string{"TruePeopleSearch.com", "people-finder.test", "Spokeo.com"})
	o := New(registry.StaticSource(sites), deps, WithTimeout(5*time.Second))

	var log progressLog
	run, err := o.RunDiscovery(context.Background(), janeDoe(t), log.record, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(run.Results))
	}

	a, b, c := run.Results[0], run.Results[1], run.Results[2]

	if a.Broker != "TruePeopleSearch" || !a.Found || len(a.URLs) != 1 {
		t.Errorf("broker A: %+v", a)
	}
	if a.URL != "https://www.truepeoplesearch.com/details?name=jane-doe&rid=1" {
		t.Errorf("broker A URL = %q", a.URL)
	}

	if b.Broker != "people-finder.test" || b.Found || b.URL != "" || len(b.URLs) != 0 {
		t.Errorf("broker B: %+v", b)
	}
	if b.Status != model.StatusNotMatched {
		t.Errorf("broker B status = %q", b.Status)
	}

	if c.Broker != "Spokeo" || c.Found || !strings.HasPrefix(c.Notes, matcher.ErrorNotePrefix) {
		t.Errorf("broker C: %+v", c)
	}

	if last := log.values[len(log.values)-1]; last != 100 {
		t.Errorf("final progress = %d", last)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["www.spokeo.com"] != fetch.DefaultAttempts {
		t.Errorf("spokeo attempts = %d, want %d", hits["www.spokeo.com"], fetch.DefaultAttempts)
	}
	if hits["www.truepeoplesearch.com"] != 1 {
		t.Errorf("truepeoplesearch requests = %d", hits["www.truepeoplesearch.com"])
	}
}

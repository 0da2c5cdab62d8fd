package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/brokerscan/internal/matcher"
	"github.com/nao1215/brokerscan/internal/model"
	"github.com/nao1215/brokerscan/internal/registry"
)

// BrokerSource supplies the broker list of a run.
// registry.FileSource and registry.StaticSource implement it.
type BrokerSource interface {
	Brokers(ctx context.Context) ([]model.BrokerSite, error)
}

// ProgressFunc observes a run. percent is in [0, 100] and never decreases
// within one run. It is called synchronously from RunDiscovery.
type ProgressFunc func(percent int, message string)

// Orchestrator runs discovery for one profile across the broker list.
// It keeps no per-run state, so one Orchestrator may serve concurrent runs.
type Orchestrator struct {
	source   BrokerSource
	registry *matcher.Registry
	logger   *slog.Logger
	timeout  time.Duration
	limit    int
	attempts int
	optOut   map[string]string
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRegistry replaces the matcher registry.
func WithRegistry(r *matcher.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = r
	}
}

// WithTimeout sets the per-request timeout passed to matchers.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLimit caps the URLs returned by multi-result matchers.
func WithLimit(n int) Option {
	return func(o *Orchestrator) {
		o.limit = n
	}
}

// WithAttempts overrides the retry count of retrying matchers.
func WithAttempts(n int) Option {
	return func(o *Orchestrator) {
		o.attempts = n
	}
}

// WithOptOutOverrides replaces the opt-out URL of brokers by key.
func WithOptOutOverrides(overrides map[string]string) Option {
	return func(o *Orchestrator) {
		o.optOut = overrides
	}
}

// WithClock sets the time source used for run and result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator loading brokers from source. Without
// WithRegistry, matchers use deps.
func New(source BrokerSource, deps matcher.Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = matcher.NewRegistry(deps)
	}
	return o
}

// Registry returns the matcher registry.
func (o *Orchestrator) Registry() *matcher.Registry {
	return o.registry
}

// RunDiscovery searches every enabled broker for profile, in broker order.
// Disabled brokers are searched only when includeDisabled is set.
//
// A failing broker never fails the run: its result has Found=false, status
// errored and an explanatory note. Once ctx is cancelled no further broker
// is started; the remaining ones are reported as errored with the context
// error. An error is returned only when the run cannot start.
func (o *Orchestrator) RunDiscovery(ctx context.Context, profile *model.ClientProfile, progress ProgressFunc, includeDisabled bool) (*model.DiscoveryRun, error) {
	if profile == nil {
		return nil, ErrNilProfile
	}
	if o.source == nil {
		return nil, ErrNoBrokerSource
	}
	report := newProgressReporter(progress)

	run := model.NewDiscoveryRun(profile)
	run.StartedAt = o.now()
	report.set(0, "Loading brokers")

	sites, err := o.source.Brokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadBrokers, err)
	}
	sites = registry.FilterEnabled(sites, includeDisabled)
	n := len(sites)

	o.logger.Info("starting discovery", "brokers", n)

	for i, site := range sites {
		site = o.applyOverrides(site)
		report.set(percent(i, n), site.Name()+": searching")

		res := o.search(ctx, profile, site)
		run.Results = append(run.Results, res)

		report.set(percent(i+1, n), site.Name()+": "+outcomeMessage(res))
	}

	run.FinishedAt = o.now()
	summary := run.Summary()
	o.logger.Info("discovery complete",
		"brokers", summary.Total,
		"found", summary.Found,
		"errored", summary.Errored,
		"elapsed", run.Duration(),
	)
	report.set(100, fmt.Sprintf("Completed: %d of %d brokers with likely listings", summary.Found, summary.Total))

	return run, nil
}

// search runs one broker through its handler. The result is always terminal.
func (o *Orchestrator) search(ctx context.Context, profile *model.ClientProfile, site model.BrokerSite) *model.BrokerResult {
	started := o.now()

	// Check for cancellation before starting the broker
	select {
	case <-ctx.Done():
		o.logger.Warn("broker skipped", "broker", site.Name(), "reason", ctx.Err())
		res := &model.BrokerResult{
			Broker: site.Name(),
			Notes:  matcher.ErrorNotePrefix + ctx.Err().Error(),
			Status: model.StatusErrored,
		}
		res.StartedAt, res.FinishedAt = started, started
		return res
	default:
	}

	h := o.registry.Lookup(site.Domain)
	o.logger.Debug("searching broker",
		"broker", site.Name(),
		"domain", site.Domain,
		"handler", h.Kind.String(),
		"status", model.StatusFetching,
	)

	res := matcher.Guard(ctx, h.Matcher, matcher.Query{
		Profile:  profile,
		Site:     site,
		Timeout:  o.timeout,
		Limit:    o.limit,
		Attempts: o.attempts,
	})
	if res.Notes == "" && site.OptOutURL != "" {
		res.Notes = "Opt-out: " + site.OptOutURL
	}
	res.StartedAt, res.FinishedAt = started, o.now()

	if res.Status == model.StatusErrored {
		o.logger.Warn("broker failed", "broker", res.Broker, "notes", res.Notes)
	} else {
		o.logger.Debug("broker finished", "broker", res.Broker, "status", res.Status, "urls", res.MatchCount())
	}
	return res
}

func (o *Orchestrator) applyOverrides(site model.BrokerSite) model.BrokerSite {
	if u, ok := o.optOut[site.Key]; ok && strings.TrimSpace(u) != "" {
		site.OptOutURL = strings.TrimSpace(u)
	}
	return site
}

// outcomeMessage mirrors the per-provider status line of a run.
func outcomeMessage(res *model.BrokerResult) string {
	switch res.Status {
	case model.StatusMatched:
		return "matches found"
	case model.StatusErrored:
		return "error"
	default:
		return "no results detected"
	}
}

// percent is floor(i/n*100); an empty list is complete.
func percent(i, n int) int {
	if n <= 0 {
		return 100
	}
	return i * 100 / n
}

// progressReporter forwards updates to a ProgressFunc, never letting the
// reported value go down.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn}
}

func (p *progressReporter) set(value int, message string) {
	if p.fn == nil {
		return
	}
	value = max(0, min(100, value))
	if value < p.last {
		value = p.last
	}
	p.last = value
	p.fn(value, message)
}

package matcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/model"
)

const (
	// DefaultTimeout is the per-request timeout when Query.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// DefaultLimit caps the URLs a multi-result matcher returns.
	DefaultLimit = 5

	// titleMaxRunes truncates extracted titles.
	titleMaxRunes = 160
)

// Query is one search request against one broker.
type Query struct {
	// Profile is the searched identity. Required.
	Profile *model.ClientProfile

	// Site is the broker being searched. Generic matchers use its display
	// name for the result; specialized matchers use their own.
	Site model.BrokerSite

	// Timeout bounds each HTTP request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Limit caps the URLs of multi-result matchers. Zero uses DefaultLimit.
	Limit int

	// Attempts overrides the retry count of matchers that retry.
	// Zero keeps each matcher's own count.
	Attempts int
}

func (q Query) timeout() time.Duration {
	if q.Timeout <= 0 {
		return DefaultTimeout
	}
	return q.Timeout
}

func (q Query) attempts(def int) int {
	if q.Attempts <= 0 {
		return def
	}
	return q.Attempts
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Matcher searches one broker for a profile.
type Matcher interface {
	// Name returns the broker name used in results.
	Name() string

	// Search queries the broker. A fetch failure the matcher tolerates
	// yields a not-found result; other failures are returned as errors.
	Search(ctx context.Context, q Query) (*model.BrokerResult, error)
}

// Deps are the collaborators shared by all matchers.
type Deps struct {
	// Fetcher performs HTTP requests.
	Fetcher fetch.Getter

	// Delay is applied after each broker request. nil never waits.
	Delay *fetch.DelayPolicy

	// Logger receives debug output. nil uses slog.Default().
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// pause applies the politeness delay. Its error is dropped: a cancelled
// context is observed by the orchestrator before the next broker starts.
func (d Deps) pause(ctx context.Context) {
	_ = d.Delay.Pause(ctx) //nolint:errcheck
}

// URLs runs m and returns the matched URLs: the result's URLs when set,
// otherwise its URL when found, otherwise none.
func URLs(ctx context.Context, m Matcher, q Query) ([]string, error) {
	res, err := m.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if res == nil || !res.Found {
		return nil, nil
	}
	if len(res.URLs) > 0 {
		return append([]string(nil), res.URLs...), nil
	}
	if res.URL != "" {
		return []string{res.URL}, nil
	}
	return nil, nil
}

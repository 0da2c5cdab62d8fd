package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent mimics a desktop Chrome so brokers serve their normal pages.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// DefaultAccept is sent with every request.
	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// DefaultAcceptLanguage is sent with every request.
	DefaultAcceptLanguage = "en-US,en;q=0.9"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// DefaultBackoff is the unit of the linear retry backoff.
	DefaultBackoff = 2 * time.Second

	// DefaultTimeout is the per-attempt timeout when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// DefaultAttempts is used when Options.Attempts is zero.
	DefaultAttempts = 3

	// DefaultHostRate is the steady request rate allowed per host.
	DefaultHostRate rate.Limit = 2

	// DefaultHostBurst is the token bucket size per host.
	DefaultHostBurst = 2
)

// Options configures a single Get call.
type Options struct {
	// Timeout bounds each attempt. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Attempts is the maximum number of tries. Zero uses DefaultAttempts.
	Attempts int

	// AllowFailure turns exhaustion into a Failed response with a nil error.
	AllowFailure bool

	// Headers are merged over the default headers for this call.
	Headers map[string]string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	return o
}

// Getter is the subset of Fetcher the matchers depend on.
type Getter interface {
	Get(ctx context.Context, rawURL string, opts Options) (Response, error)
}

// Fetcher performs polite GET requests against broker sites.
// It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	backoff     time.Duration
	sleeper     Sleeper
	logger      *slog.Logger

	hostRate  rate.Limit
	hostBurst int
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.headers[key] = value
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithBackoff sets the unit of the linear backoff between attempts.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = d
	}
}

// WithSleeper sets the Sleeper used for retry backoff.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		f.sleeper = s
	}
}

// WithHostRateLimit sets the per-host token bucket. rate.Inf disables limiting.
func WithHostRateLimit(limit rate.Limit, burst int) Option {
	return func(f *Fetcher) {
		f.hostRate = limit
		f.hostBurst = burst
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher around client. A nil client uses a plain
// http.Client; proxying is configured by the caller's transport.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		headers:     map[string]string{"Accept": DefaultAccept, "Accept-Language": DefaultAcceptLanguage},
		maxBodySize: DefaultMaxBodySize,
		backoff:     DefaultBackoff,
		sleeper:     TimerSleeper{},
		hostRate:    DefaultHostRate,
		hostBurst:   DefaultHostBurst,
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Get fetches rawURL. HTTP 200 and 404 end the attempt loop with an Ok
// response; any other status or a transport error is retried after
// backoff*attempt. When all attempts fail, Get returns a Failed response
// and, unless opts.AllowFailure is set, an error wrapping ErrFetchFailed.
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts Options) (Response, error) {
	opts = opts.withDefaults()

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return f.fail(rawURL, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL), opts)
	}
	limiter := f.limiterFor(u.Hostname())

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		resp, err := f.do(ctx, rawURL, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == opts.Attempts {
			break
		}

		wait := f.backoff * time.Duration(attempt)
		f.logger.Debug("request failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if err := f.sleeper.Sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	return f.fail(rawURL, lastErr, opts)
}

func (f *Fetcher) fail(rawURL string, cause error, opts Options) (Response, error) {
	resp := failedResponse(rawURL, cause)
	if opts.AllowFailure {
		return resp, nil
	}
	return resp, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, cause)
}

// do performs one attempt.
func (f *Fetcher) do(ctx context.Context, rawURL string, opts Options) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read body: %w", err)
	}
	return okResponse(rawURL, resp.StatusCode, body), nil
}

// readBody reads at most maxBodySize bytes and decodes them to UTF-8
// according to the Content-Type header or the document's meta tags.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, f.maxBodySize)

	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// charset.NewReader reports io.EOF for an empty body. Any other error
		// has already consumed part of the body.
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// limiterFor returns the token bucket shared by all requests to host.
func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	host = strings.ToLower(host)

	f.mu.Lock()
	defer f.mu.Unlock()

	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(f.hostRate, f.hostBurst)
	f.limiters[host] = lim
	return lim
}

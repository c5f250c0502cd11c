package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/eventscout/internal/cache"
	"github.com/ppiankov/eventscout/internal/logger"
	"github.com/ppiankov/eventscout/internal/metrics"
	"github.com/ppiankov/eventscout/internal/model"
	"github.com/ppiankov/eventscout/internal/util"
	"github.com/ppiankov/eventscout/internal/worker"
)

const maxFetchAttempts = 3

// fetchSleepFunc is overridable in tests
var fetchSleepFunc = worker.Sleep

// ContentFetcher returns the raw content behind an event link
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Fetcher fetches reference pages over HTTP. It honors robots.txt, limits
// requests per domain, caches page bodies and collapses concurrent fetches
// of the same URL.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	timeout    time.Duration

	limiter  *worker.Limiter
	robots   *util.RobotsChecker
	cache    cache.Cache
	cacheTTL time.Duration
	group    singleflight.Group

	log     *logger.Logger
	metrics *metrics.Metrics
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithLimiter sets the per-domain rate limiter
func WithLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithCache sets the page cache and the TTL used for stored pages
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithRobots enables robots.txt checks
func WithRobots(r *util.RobotsChecker) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

func WithLogger(l *logger.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = l }
}

func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(config model.HTTPConfig, opts ...FetcherOption) *Fetcher {
	client := util.NewHTTPClient(&config)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	maxBytes := config.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  config.UserAgent,
		maxBytes:   maxBytes,
		timeout:    config.Timeout,
		cache:      cache.Nop{},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchResult contains the fetched HTML and response metadata
type FetchResult struct {
	HTML        string
	StatusCode  int
	ContentType string
	FinalURL    string
}

// Fetch retrieves content from the given URL in a single attempt
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		HTML:        string(body),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, network errors) with
// exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			if err := fetchSleepFunc(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return nil, fmt.Errorf("fetch: %w (last error: %v)", err, lastErr)
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableFetchError(err) {
			return nil, err
		}
		f.log.Debug("retrying fetch", "url", rawURL, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// StatusError is a non-2xx reply to a page fetch
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

// transientDialErrors are substrings of transport errors worth retrying
var transientDialErrors = []string{"connection refused", "connection reset", "EOF", "timeout", "no such host"}

// isRetryableFetchError reports whether a fetch error is worth retrying:
// timeouts, 5xx, 429 and flaky connections
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	if !strings.HasPrefix(msg, "fetch: ") {
		return false
	}
	for _, transient := range transientDialErrors {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

// FetchContent returns the page body behind rawURL. Failures are wrapped in
// model.ErrFetchTimeout or model.ErrFetchFailure.
func (f *Fetcher) FetchContent(ctx context.Context, rawURL string) (string, error) {
	key := cache.PageKey(rawURL)
	if b, ok := f.cache.Get(key); ok {
		f.metrics.ObserveFetch(metrics.FetchCacheHit)
		return string(b), nil
	}

	v, err, _ := f.group.Do(rawURL, func() (interface{}, error) {
		return f.fetchUncached(ctx, rawURL)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *Fetcher) fetchUncached(ctx context.Context, rawURL string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if f.robots != nil {
		policy, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			f.metrics.ObserveFetch(metrics.FetchFailure)
			return "", fmt.Errorf("%w: %v", model.ErrFetchFailure, err)
		}
		if !policy.Allowed {
			f.metrics.ObserveFetch(metrics.FetchRobotsDisallowed)
			return "", fmt.Errorf("%w: disallowed by robots.txt: %s", model.ErrFetchFailure, rawURL)
		}
		if f.limiter != nil && policy.CrawlDelay > 0 {
			f.limiter.SlowDown(rawURL, policy.CrawlDelay)
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return "", f.classify(ctx, rawURL, err)
		}
	}

	result, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return "", f.classify(ctx, rawURL, err)
	}

	f.metrics.ObserveFetch(metrics.FetchOK)
	if err := f.cache.Set(cache.PageKey(rawURL), []byte(result.HTML), f.cacheTTL); err != nil {
		f.log.Warn("cache write failed", "url", rawURL, "error", err)
	}
	return result.HTML, nil
}

// classify maps a fetch error onto the fetch sentinels and records it
func (f *Fetcher) classify(ctx context.Context, rawURL string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		f.metrics.ObserveFetch(metrics.FetchTimeout)
		return fmt.Errorf("%w: %s: %v", model.ErrFetchTimeout, rawURL, err)
	}
	f.metrics.ObserveFetch(metrics.FetchFailure)
	return fmt.Errorf("%w: %s: %v", model.ErrFetchFailure, rawURL, err)
}

package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests per host. Hosts start at the configured rate and
// can be slowed down individually, e.g. to honor a robots.txt Crawl-delay.
type Limiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewLimiter creates a new rate limiter. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		hosts: make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

// Wait blocks until a request to rawURL may proceed or ctx is done
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostKey(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// Allow reports whether a request to rawURL may proceed now, consuming a
// token if so
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostKey(rawURL)
	if err != nil {
		return false
	}
	return l.forHost(host).Allow()
}

// SlowDown caps the host of rawURL at one request per delay. It never speeds
// a host up; non-positive delays are ignored.
func (l *Limiter) SlowDown(rawURL string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	host, err := hostKey(rawURL)
	if err != nil {
		return
	}

	slower := rate.Every(delay)
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.limit
	if lim, ok := l.hosts[host]; ok {
		current = lim.Limit()
	}
	if current <= slower {
		return
	}
	l.hosts[host] = rate.NewLimiter(slower, 1)
}

// HostLimit returns the current rate for the host of rawURL
func (l *Limiter) HostLimit(rawURL string) rate.Limit {
	host, err := hostKey(rawURL)
	if err != nil {
		return 0
	}
	return l.forHost(host).Limit()
}

// Domains returns the number of hosts seen so far
func (l *Limiter) Domains() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.hosts[host] = lim
	}
	return lim
}

// hostKey returns the lowercased host of a URL, without "www."
func hostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

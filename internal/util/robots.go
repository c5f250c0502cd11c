package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	robotsTTL = time.Hour

	// MaxCrawlDelay caps the Crawl-delay a site may impose on a batch
	MaxCrawlDelay = 10 * time.Second
)

// RobotsPolicy is what robots.txt says about one URL for our agent
type RobotsPolicy struct {
	Allowed    bool
	CrawlDelay time.Duration
}

var allowAll = RobotsPolicy{Allowed: true}

// RobotsChecker evaluates robots.txt rules, keeping parsed files per origin
type RobotsChecker struct {
	rules      *gocache.Cache
	httpClient *http.Client
	userAgent  string
	agentToken string
}

// NewRobotsChecker creates a checker that identifies itself with userAgent
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		rules:      gocache.New(robotsTTL, 10*time.Minute),
		httpClient: client,
		userAgent:  userAgent,
		agentToken: NormalizeUserAgent(userAgent),
	}
}

// Check returns the policy for rawURL. Sites whose robots.txt cannot be
// retrieved are treated as allowing everything; only a malformed URL errors.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (RobotsPolicy, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RobotsPolicy{}, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return RobotsPolicy{}, fmt.Errorf("parse URL: no host in %q", rawURL)
	}

	data, err := r.rulesFor(ctx, u.Scheme, u.Host)
	if err != nil {
		return allowAll, nil
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	policy := RobotsPolicy{Allowed: data.TestAgent(target, r.agentToken)}
	if group := data.FindGroup(r.agentToken); group != nil {
		policy.CrawlDelay = min(group.CrawlDelay, MaxCrawlDelay)
	}
	return policy, nil
}

// Allowed reports only whether rawURL may be fetched
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	p, err := r.Check(ctx, rawURL)
	return err == nil && p.Allowed
}

// Flush forgets every cached robots.txt
func (r *RobotsChecker) Flush() {
	r.rules.Flush()
}

func (r *RobotsChecker) rulesFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	origin := scheme + "://" + host
	if v, ok := r.rules.Get(origin); ok {
		return v.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// 4xx means allow-all and 5xx disallow-all
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}
	r.rules.SetDefault(origin, data)
	return data, nil
}

// NormalizeUserAgent reduces a user agent to its product token
// ("EventScout/0.1 (+url)" -> "EventScout") for robots.txt matching
func NormalizeUserAgent(ua string) string {
	if fields := strings.Fields(ua); len(fields) > 0 {
		token, _, _ := strings.Cut(fields[0], "/")
		return token
	}
	return ua
}

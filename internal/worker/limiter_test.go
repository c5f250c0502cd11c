package worker

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiter_New(t *testing.T) {
	for _, tt := range []struct {
		burst, want int
	}{{5, 5}, {-1, 5}, {0, 5}, {2, 2}} {
		if got := NewLimiter(10, tt.burst).burst; got != tt.want {
			t.Errorf("NewLimiter(10, %d).burst = %d, want %d", tt.burst, got, tt.want)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://sympla.com.br"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if limiter.Domains() != 2 {
		t.Errorf("expected 2 domains, got %d", limiter.Domains())
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "http://example.com"

	if !limiter.Allow(url) {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected wait to fail once context expires")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "http://example.com"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst of 1 is consumed
	if limiter.Allow(url) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// www. shares the bucket
	if limiter.Allow("http://www.example.com/agenda") {
		t.Errorf("expected www host to share the limiter")
	}

	if !limiter.Allow("http://other.com") {
		t.Errorf("expected allow for other domain")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("http://example.com") {
			t.Fatalf("request %d rejected with limiting disabled", i)
		}
	}
}

func TestHostKey(t *testing.T) {
	domain, err := hostKey("http://WWW.Example.com:8080/foo")
	if err != nil {
		t.Fatalf("hostKey failed: %v", err)
	}
	if domain != "example.com" {
		t.Errorf("expected example.com, got %s", domain)
	}

	if _, err = hostKey("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
	if _, err = hostKey("/relative/path"); err == nil {
		t.Errorf("expected error for URL without host")
	}
}

func TestLimiter_SlowDown(t *testing.T) {
	limiter := NewLimiter(10, 5)
	url := "https://www.sympla.com.br/evento/1"

	limiter.SlowDown(url, 2*time.Second)
	if got := limiter.HostLimit("https://sympla.com.br/"); got != rate.Every(2*time.Second) {
		t.Errorf("expected one request per 2s, got %v", got)
	}

	// a shorter delay must not speed the host back up
	limiter.SlowDown(url, 100*time.Millisecond)
	if got := limiter.HostLimit(url); got != rate.Every(2*time.Second) {
		t.Errorf("expected rate to stay at one per 2s, got %v", got)
	}

	limiter.SlowDown(url, 0)
	limiter.SlowDown("::bad", time.Second)
	if got := limiter.HostLimit("http://other.com"); got != 10 {
		t.Errorf("expected other hosts untouched, got %v", got)
	}
}

func TestLimiter_SlowDownUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	limiter.SlowDown("http://example.com", time.Minute)

	if !limiter.Allow("http://example.com") {
		t.Fatal("first request should pass")
	}
	if limiter.Allow("http://example.com") {
		t.Error("expected crawl delay to apply even with limiting disabled")
	}
}

package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/eventscout/internal/model"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3128", "localhost, .internal.net")

	tests := []struct {
		url  string
		want string
	}{
		{"http://venue.com/agenda", "http://proxy:3128"},
		{"https://venue.com/agenda", "http://secure-proxy:3128"},
		{"http://localhost:8080/x", ""},
		{"https://api.internal.net/x", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.url, nil)
		u, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) error: %v", tt.url, err)
		}
		got := ""
		if u != nil {
			got = u.String()
		}
		if got != tt.want {
			t.Errorf("proxy(%s) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(&model.HTTPConfig{Timeout: 3 * time.Second, InsecureTLS: true})
	if client.Timeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", client.Timeout)
	}
	transport := client.Transport.(*http.Transport)
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("Expected insecure TLS to be configured")
	}
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	withKind := &APIError{StatusCode: 401, Kind: "authentication_error", Message: "bad key"}
	if got := withKind.Error(); got != "API error (401): authentication_error - bad key" {
		t.Errorf("Error() = %q", got)
	}
	plain := &APIError{StatusCode: 500, Message: "oops"}
	if got := plain.Error(); got != "API error (500): oops" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&APIError{StatusCode: http.StatusTooManyRequests}, true},
		{&APIError{StatusCode: http.StatusBadGateway}, true},
		{fmt.Errorf("wrapped: %w", &APIError{StatusCode: 500}), true},
		{&APIError{StatusCode: http.StatusBadRequest}, false},
		{errors.New("execute request: connection refused"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsTemporary(tt.err); got != tt.want {
			t.Errorf("IsTemporary(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestEndpoint_SendsHeadersAndDecodesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			t.Errorf("Expected X-Token header, got %q", r.Header.Get("X-Token"))
		}
		if r.Method == http.MethodPost && r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		if r.URL.Path == "/ok" {
			_, _ = w.Write([]byte(`{"value": 3}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("X-Token", "secret")
	api := endpoint{client: server.Client(), baseURL: server.URL, header: header, decodeErr: decodeOllamaError}

	var out struct {
		Value int `json:"value"`
	}
	if err := api.post(context.Background(), "/ok", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if out.Value != 3 {
		t.Errorf("Expected value 3, got %d", out.Value)
	}

	err := api.get(context.Background(), "/busy", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "overloaded" {
		t.Errorf("Unexpected error: %+v", apiErr)
	}
	if !IsTemporary(err) {
		t.Error("Expected 503 to be temporary")
	}
}

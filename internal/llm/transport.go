package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds provider replies; judge answers are a few hundred bytes
const maxResponseBytes = 1 << 20

// APIError is a non-2xx reply from a provider endpoint
type APIError struct {
	StatusCode int
	Kind       string // provider error type, when reported
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (%d): %s - %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed on a later attempt
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTemporary reports whether err is an APIError worth retrying
func IsTemporary(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// errorDecoder extracts the provider error kind and message from a failed reply
type errorDecoder func(body []byte) (kind, message string)

// endpoint is one JSON-over-HTTP API surface of a provider
type endpoint struct {
	client    *http.Client
	baseURL   string
	header    http.Header
	decodeErr errorDecoder
}

// post sends in as JSON to path and decodes a successful reply into out
func (e endpoint) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

// get fetches path and decodes the reply into out, which may be nil
func (e endpoint) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return e.do(req, out)
}

func (e endpoint) do(req *http.Request, out any) error {
	for k, vs := range e.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		if e.decodeErr != nil {
			if kind, msg := e.decodeErr(body); msg != "" {
				apiErr.Kind, apiErr.Message = kind, msg
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

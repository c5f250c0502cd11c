package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OllamaProvider talks to a local Ollama server
type OllamaProvider struct {
	api    endpoint
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func decodeOllamaError(body []byte) (string, string) {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return "", ""
	}
	return "", e.Error
}

// NewOllamaProvider creates a new Ollama provider. A model name is required
// since Ollama has no server-side default.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g. llama3.1:8b)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		api: endpoint{
			client:    newHTTPClient(config, timeoutOf(config, 60*time.Second)),
			baseURL:   strings.TrimSuffix(baseURL, "/"),
			decodeErr: decodeOllamaError,
		},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable lists local models to check the server is up
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.api.get(ctx, "/api/tags", nil) == nil
}

// Complete asks for a non-streamed JSON reply; every caller parses
// structured output
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp ollamaResponse
	err := p.api.post(ctx, "/api/generate", ollamaRequest{
		Model:  p.config.model(req, ""),
		Prompt: req.Prompt,
		System: req.System,
		Format: "json",
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  p.config.maxTokens(req),
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	text := strings.TrimSpace(resp.Response)
	used := resp.PromptEvalCount + resp.EvalCount
	if used == 0 {
		// no counts reported, roughly 4 bytes per token
		used = (len(req.Prompt) + len(text)) / 4
	}
	return &CompletionResponse{Text: text, Model: resp.Model, TokensUsed: used}, nil
}

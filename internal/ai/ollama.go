package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig points at a local or remote Ollama server.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Ollama talks to the /api/chat endpoint. It needs no credential.
type Ollama struct {
	httpClient *http.Client
	model      string
	baseURL    string
}

func NewOllama(cfg OllamaConfig) *Ollama {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "llama3.1"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient(cfg.Timeout)
	}
	return &Ollama{
		httpClient: client,
		model:      model,
		baseURL:    trimBaseURL(cfg.BaseURL, "http://localhost:11434"),
	}
}

func (o *Ollama) Name() string { return string(KindOllama) }

func (o *Ollama) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	payload := map[string]any{
		"model":    firstNonEmpty(req.Model, o.model),
		"messages": messages,
		"stream":   false,
		"options":  options,
	}

	body, err := postJSON(ctx, o.httpClient, o.Name(), o.baseURL+"/api/chat", nil, payload)
	if err != nil {
		return RawResponse{}, err
	}
	return RawResponse{Provider: KindOllama, Body: body}, nil
}

package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicConfig holds Anthropic configuration parameters.
type AnthropicConfig struct {
	Credential Credential
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Anthropic talks to the messages API.
type Anthropic struct {
	httpClient *http.Client
	credential Credential
	model      string
	baseURL    string
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient(cfg.Timeout)
	}
	return &Anthropic{
		httpClient: client,
		credential: cfg.Credential,
		model:      model,
		baseURL:    trimBaseURL(cfg.BaseURL, "https://api.anthropic.com"),
	}
}

func (a *Anthropic) Name() string { return string(KindAnthropic) }

func (a *Anthropic) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	key, err := resolveKey(ctx, a.Name(), a.credential)
	if err != nil {
		return RawResponse{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	payload := map[string]any{
		"model":       firstNonEmpty(req.Model, a.model),
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.System != "" {
		payload["system"] = req.System
	}

	body, err := postJSON(ctx, a.httpClient, a.Name(), a.baseURL+"/v1/messages", map[string]string{
		"X-API-Key":         key,
		"Anthropic-Version": anthropicVersion,
	}, payload)
	if err != nil {
		return RawResponse{}, err
	}
	return RawResponse{Provider: KindAnthropic, Body: body}, nil
}

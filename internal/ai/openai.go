package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig holds OpenAI configuration parameters.
type OpenAIConfig struct {
	Credential Credential
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAI talks to the chat completions API.
type OpenAI struct {
	httpClient *http.Client
	credential Credential
	model      string
	baseURL    string
}

// NewOpenAI constructs the provider. A missing credential is only reported
// when a call is made.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient(cfg.Timeout)
	}
	return &OpenAI{
		httpClient: client,
		credential: cfg.Credential,
		model:      model,
		baseURL:    trimBaseURL(cfg.BaseURL, "https://api.openai.com/v1"),
	}
}

func (c *OpenAI) Name() string { return string(KindOpenAI) }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *OpenAI) Complete(ctx context.Context, req ChatRequest) (RawResponse, error) {
	key, err := resolveKey(ctx, c.Name(), c.credential)
	if err != nil {
		return RawResponse{}, err
	}

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	payload := map[string]any{
		"model":       firstNonEmpty(req.Model, c.model),
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	body, err := postJSON(ctx, c.httpClient, c.Name(), c.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + key,
	}, payload)
	if err != nil {
		return RawResponse{}, err
	}
	return RawResponse{Provider: KindOpenAI, Body: body}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

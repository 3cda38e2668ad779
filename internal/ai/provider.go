package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Kind identifies a provider wire format.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindOllama    Kind = "ollama"
)

// ParseKind maps a configuration value onto a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindOpenAI:
		return KindOpenAI, nil
	case KindAnthropic, "claude":
		return KindAnthropic, nil
	case KindOllama:
		return KindOllama, nil
	default:
		return "", fmt.Errorf("unknown ai provider %q", value)
	}
}

// ChatRequest is the provider-neutral chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// RawResponse is the undecoded provider body tagged with the wire format it
// came from.
type RawResponse struct {
	Provider Kind
	Body     []byte
}

// Provider performs one chat completion round trip.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (RawResponse, error)
}

// Credential yields an API key at call time. Keys are never stored by the
// gateway.
type Credential interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticCredential is a fixed key.
type StaticCredential string

func (s StaticCredential) APIKey(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// EnvCredential reads the named environment variable on every call.
type EnvCredential string

func (e EnvCredential) APIKey(context.Context) (string, error) {
	return strings.TrimSpace(os.Getenv(string(e))), nil
}

func resolveKey(ctx context.Context, provider string, cred Credential) (string, error) {
	if cred == nil {
		return "", fmt.Errorf("%s: %w", provider, ErrProviderUnavailable)
	}
	key, err := cred.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("%s credential: %w", provider, err)
	}
	if key == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrProviderUnavailable)
	}
	return key, nil
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// ExtractText pulls the generated text out of a raw provider body.
func ExtractText(raw RawResponse) (string, error) {
	var text string
	switch raw.Provider {
	case KindOpenAI:
		var decoded openAIResponse
		if err := json.Unmarshal(raw.Body, &decoded); err != nil {
			return "", fmt.Errorf("decode openai response: %w", err)
		}
		if len(decoded.Choices) > 0 {
			text = decoded.Choices[0].Message.Content
		}
	case KindAnthropic:
		var decoded anthropicResponse
		if err := json.Unmarshal(raw.Body, &decoded); err != nil {
			return "", fmt.Errorf("decode anthropic response: %w", err)
		}
		for _, block := range decoded.Content {
			if block.Type == "" || block.Type == "text" {
				text = block.Text
				break
			}
		}
	case KindOllama:
		var decoded ollamaResponse
		if err := json.Unmarshal(raw.Body, &decoded); err != nil {
			return "", fmt.Errorf("decode ollama response: %w", err)
		}
		text = decoded.Message.Content
	default:
		return "", fmt.Errorf("unknown provider kind %q", raw.Provider)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s returned an empty completion: %w", raw.Provider, ErrUnparsableResponse)
	}
	return text, nil
}

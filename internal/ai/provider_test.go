package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Len(t, body["messages"], 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"score\": 3} "}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{Credential: StaticCredential("sk-test"), BaseURL: srv.URL + "/v1/"})
	raw, err := p.Complete(context.Background(), ChatRequest{System: "s", Prompt: "p", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, raw.Provider)

	text, err := ExtractText(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 3}`, text)
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))
		body := decodeBody(t, r)
		assert.Equal(t, "sys", body["system"])
		assert.EqualValues(t, DefaultMaxTokens, body["max_tokens"])
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[1]"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{Credential: StaticCredential("ak-test"), BaseURL: srv.URL})
	raw, err := p.Complete(context.Background(), ChatRequest{System: "sys", Prompt: "p"})
	require.NoError(t, err)
	text, err := ExtractText(raw)
	require.NoError(t, err)
	assert.Equal(t, "[1]", text)
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "llama3.1", body["model"])
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hello"}}`))
	}))
	defer srv.Close()

	raw, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Complete(context.Background(), ChatRequest{Prompt: "p"})
	require.NoError(t, err)
	text, err := ExtractText(raw)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestProviderWithoutCredentialIsUnavailable(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	t.Setenv("DM_TEST_EMPTY_KEY", "")
	_, err := NewOpenAI(OpenAIConfig{Credential: EnvCredential("DM_TEST_EMPTY_KEY"), BaseURL: srv.URL}).
		Complete(context.Background(), ChatRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = NewAnthropic(AnthropicConfig{BaseURL: srv.URL}).Complete(context.Background(), ChatRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, called)
}

func TestProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(OpenAIConfig{Credential: StaticCredential("k"), BaseURL: srv.URL}).
		Complete(context.Background(), ChatRequest{Prompt: "p"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Equal(t, "slow down", httpErr.Message)
	assert.True(t, httpErr.Retryable())
}

func TestProviderDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Complete(ctx, ChatRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrProviderTimeout)
}

func TestExtractTextRejectsEmptyCompletion(t *testing.T) {
	_, err := ExtractText(RawResponse{Provider: KindOpenAI, Body: []byte(`{"choices":[]}`)})
	require.ErrorIs(t, err, ErrUnparsableResponse)

	_, err = ExtractText(RawResponse{Provider: "other", Body: []byte(`{}`)})
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]Kind{"OpenAI": KindOpenAI, "claude": KindAnthropic, " ollama ": KindOllama} {
		got, err := ParseKind(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("bard")
	require.Error(t, err)
}

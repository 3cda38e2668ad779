package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "2000", cfg.Port)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 3, cfg.AI.Concurrency)
	assert.InDelta(t, 50.0/60.0, cfg.AI.RateLimit, 1e-9)
	assert.Equal(t, []string{"http://localhost:1000", "http://127.0.0.1:1000"}, cfg.AllowedOrigins)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("AI_FALLBACK_PROVIDER", "ollama")
	t.Setenv("AI_TIMEOUT", "10s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "ollama", cfg.AI.Fallback)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "PORT: \"9000\"\nAI_CONCURRENCY: 5\nLOG_FORMAT: json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.AI.Concurrency)
	assert.Equal(t, "json", cfg.LogFormat)

	t.Setenv("PORT", "9100")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "cache backend", env: map[string]string{"CACHE_BACKEND": "disk"}, want: "CACHE_BACKEND"},
		{name: "provider", env: map[string]string{"AI_PROVIDER": "gemini"}, want: "AI_PROVIDER"},
		{name: "fallback", env: map[string]string{"AI_FALLBACK_PROVIDER": "gemini"}, want: "AI_FALLBACK_PROVIDER"},
		{name: "concurrency", env: map[string]string{"AI_CONCURRENCY": "0"}, want: "AI_CONCURRENCY"},
		{name: "temperature", env: map[string]string{"AI_TEMPERATURE": "3"}, want: "AI_TEMPERATURE"},
		{name: "log format", env: map[string]string{"LOG_FORMAT": "xml"}, want: "LOG_FORMAT"},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "loud"}, want: "LOG_LEVEL"},
		{name: "redis addr", env: map[string]string{"CACHE_BACKEND": "redis", "REDIS_ADDR": " "}, want: "REDIS_ADDR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromViper(viper.New())
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestDisabledAISkipsProviderChecks(t *testing.T) {
	t.Setenv("DISABLE_AI", "true")
	t.Setenv("AI_PROVIDER", "gemini")
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.True(t, cfg.AI.Disabled)
}

func TestHasKey(t *testing.T) {
	t.Setenv(OpenAIKeyEnv, "")
	t.Setenv(AnthropicKeyEnv, "sk-ant")
	assert.False(t, HasKey("openai"))
	assert.True(t, HasKey("anthropic"))
	assert.True(t, HasKey("ollama"))
	assert.False(t, HasKey("gemini"))
}

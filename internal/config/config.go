package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CacheDisabled = "disabled"
)

// Environment variables holding provider API keys. The keys are read when a
// call is made and never copied into Config.
const (
	OpenAIKeyEnv    = "OPENAI_API_KEY"
	AnthropicKeyEnv = "ANTHROPIC_API_KEY"
)

// Config is the runtime configuration shared by the server and the CLI.
type Config struct {
	Port           string
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
	LogFile   string

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AI AIConfig

	CatalogPath     string
	PublishEndpoint string
	PublishToken    string
}

// AIConfig selects and tunes the AI providers.
type AIConfig struct {
	Disabled    bool
	Provider    string
	Fallback    string
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   float64
	Burst       int
	Concurrency int
	Temperature float64
	MaxTokens   int

	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicModel   string
	AnthropicBaseURL string
	OllamaURL        string
	OllamaModel      string
}

var defaults = map[string]any{
	"PORT":                 "2000",
	"DB_PATH":              "data/decisions.db",
	"SILENT_DB":            true,
	"ALLOWED_ORIGINS":      "http://localhost:1000,http://127.0.0.1:1000",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "text",
	"LOG_FILE":             "",
	"CACHE_BACKEND":        CacheMemory,
	"CACHE_TTL":            "24h",
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"AI_PROVIDER":          "openai",
	"AI_FALLBACK_PROVIDER": "",
	"AI_TIMEOUT":           "45s",
	"AI_MAX_RETRIES":       2,
	"AI_RATE_LIMIT":        50.0 / 60.0,
	"AI_BURST":             5,
	"AI_CONCURRENCY":       3,
	"AI_TEMPERATURE":       0.3,
	"AI_MAX_TOKENS":        1500,
	"OPENAI_MODEL":         "gpt-4o-mini",
	"OPENAI_BASE_URL":      "",
	"ANTHROPIC_MODEL":      "claude-3-5-haiku-latest",
	"ANTHROPIC_BASE_URL":   "",
	"OLLAMA_URL":           "",
	"OLLAMA_MODEL":         "llama3.1",
	"CATALOG_PATH":         "",
	"PUBLISH_ENDPOINT":     "",
	"PUBLISH_TOKEN":        "",
	"DISABLE_AI":           false,
}

// Load reads .env (when present), an optional config.yaml and the
// environment, in increasing order of precedence.
func Load(configPaths ...string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not parse .env file")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{".", "./configs"}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance, adding
// defaults and environment overrides.
func FromViper(v *viper.Viper) (Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Port:           strings.TrimSpace(v.GetString("PORT")),
		DBPath:         strings.TrimSpace(v.GetString("DB_PATH")),
		SilentDB:       v.GetBool("SILENT_DB"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		LogFile:        strings.TrimSpace(v.GetString("LOG_FILE")),
		CacheBackend:   strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
		CacheTTL:       v.GetDuration("CACHE_TTL"),
		RedisAddr:      strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisDB:        v.GetInt("REDIS_DB"),
		AI: AIConfig{
			Disabled:         v.GetBool("DISABLE_AI"),
			Provider:         strings.ToLower(strings.TrimSpace(v.GetString("AI_PROVIDER"))),
			Fallback:         strings.ToLower(strings.TrimSpace(v.GetString("AI_FALLBACK_PROVIDER"))),
			Timeout:          v.GetDuration("AI_TIMEOUT"),
			MaxRetries:       v.GetInt("AI_MAX_RETRIES"),
			RateLimit:        v.GetFloat64("AI_RATE_LIMIT"),
			Burst:            v.GetInt("AI_BURST"),
			Concurrency:      v.GetInt("AI_CONCURRENCY"),
			Temperature:      v.GetFloat64("AI_TEMPERATURE"),
			MaxTokens:        v.GetInt("AI_MAX_TOKENS"),
			OpenAIModel:      strings.TrimSpace(v.GetString("OPENAI_MODEL")),
			OpenAIBaseURL:    strings.TrimSpace(v.GetString("OPENAI_BASE_URL")),
			AnthropicModel:   strings.TrimSpace(v.GetString("ANTHROPIC_MODEL")),
			AnthropicBaseURL: strings.TrimSpace(v.GetString("ANTHROPIC_BASE_URL")),
			OllamaURL:        strings.TrimSpace(v.GetString("OLLAMA_URL")),
			OllamaModel:      strings.TrimSpace(v.GetString("OLLAMA_MODEL")),
		},
		CatalogPath:     strings.TrimSpace(v.GetString("CATALOG_PATH")),
		PublishEndpoint: strings.TrimSpace(v.GetString("PUBLISH_ENDPOINT")),
		PublishToken:    strings.TrimSpace(v.GetString("PUBLISH_TOKEN")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	switch c.CacheBackend {
	case CacheMemory, CacheDisabled:
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory, redis or disabled, got %q", c.CacheBackend))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if !c.AI.Disabled {
		if !knownProvider(c.AI.Provider) {
			errs = append(errs, fmt.Errorf("AI_PROVIDER %q is not supported", c.AI.Provider))
		}
		if c.AI.Fallback != "" && !knownProvider(c.AI.Fallback) {
			errs = append(errs, fmt.Errorf("AI_FALLBACK_PROVIDER %q is not supported", c.AI.Fallback))
		}
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}
	if c.AI.MaxRetries < 0 || c.AI.MaxRetries > 10 {
		errs = append(errs, errors.New("AI_MAX_RETRIES must be between 0 and 10"))
	}
	if c.AI.RateLimit < 0 {
		errs = append(errs, errors.New("AI_RATE_LIMIT must not be negative"))
	}
	if c.AI.Concurrency < 1 || c.AI.Concurrency > 32 {
		errs = append(errs, errors.New("AI_CONCURRENCY must be between 1 and 32"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, errors.New("AI_TEMPERATURE must be between 0 and 2"))
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, errors.New("AI_MAX_TOKENS must be positive"))
	}
	return errors.Join(errs...)
}

// HasKey reports whether the API key for provider is present in the
// environment. Ollama needs none.
func HasKey(provider string) bool {
	switch provider {
	case "openai":
		return strings.TrimSpace(os.Getenv(OpenAIKeyEnv)) != ""
	case "anthropic", "claude":
		return strings.TrimSpace(os.Getenv(AnthropicKeyEnv)) != ""
	case "ollama":
		return true
	default:
		return false
	}
}

func knownProvider(name string) bool {
	switch name {
	case "openai", "anthropic", "claude", "ollama":
		return true
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package app builds the runtime components shared by the server and the CLI
// from a loaded Config.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/cache"
	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/config"
	"decision-matrix/backend/internal/publish"
	"decision-matrix/backend/internal/store"
)

// OpenStore opens the sqlite store, creating its directory when needed.
func OpenStore(cfg config.Config) (*store.Database, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return store.Open(cfg.DBPath, cfg.SilentDB)
}

// NewCache returns the configured AI response cache.
func NewCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheDisabled:
		return cache.Noop{}, nil
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		logrus.WithField("addr", cfg.RedisAddr).Info("ai cache backed by redis")
		return r, nil
	default:
		return cache.NewMemory(cfg.CacheTTL), nil
	}
}

// NewProvider builds one provider by name. Keys are resolved from the
// environment on every call.
func NewProvider(name string, cfg config.AIConfig) (ai.Provider, error) {
	kind, err := ai.ParseKind(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ai.KindOpenAI:
		return ai.NewOpenAI(ai.OpenAIConfig{
			Credential: ai.EnvCredential(config.OpenAIKeyEnv),
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			Timeout:    cfg.Timeout,
		}), nil
	case ai.KindAnthropic:
		return ai.NewAnthropic(ai.AnthropicConfig{
			Credential: ai.EnvCredential(config.AnthropicKeyEnv),
			Model:      cfg.AnthropicModel,
			BaseURL:    cfg.AnthropicBaseURL,
			Timeout:    cfg.Timeout,
		}), nil
	default:
		return ai.NewOllama(ai.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.Timeout,
		}), nil
	}
}

// NewAssistant wires the gateway with the primary and fallback providers. It
// returns nil when AI is disabled.
func NewAssistant(cfg config.AIConfig, c cache.Cache) (*ai.Assistant, error) {
	if cfg.Disabled {
		logrus.Info("ai assistant disabled via configuration")
		return nil, nil
	}

	opts := []ai.GatewayOption{
		ai.WithTimeout(cfg.Timeout),
		ai.WithRetry(cfg.MaxRetries, 0, 0),
		ai.WithRateLimit(cfg.RateLimit, cfg.Burst),
		ai.WithSampling(cfg.Temperature, cfg.MaxTokens),
	}
	names := []string{cfg.Provider}
	if cfg.Fallback != "" && cfg.Fallback != cfg.Provider {
		names = append(names, cfg.Fallback)
	}
	for i, name := range names {
		p, err := NewProvider(name, cfg)
		if err != nil {
			return nil, err
		}
		if !config.HasKey(name) {
			logrus.WithField("provider", name).Warn("no api key in environment; calls will fail until one is set")
		}
		opts = append(opts, ai.WithProvider(p))
		if i == 0 {
			opts = append(opts, ai.WithDefaultProvider(p.Name()))
		} else {
			opts = append(opts, ai.WithFallbackProvider(p.Name()))
		}
	}
	return ai.NewAssistant(ai.NewGateway(c, opts...)), nil
}

// OpenCatalog loads the catalog file, or the built-in catalog when none is
// configured.
func OpenCatalog(cfg config.Config) (*catalog.Index, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default()
	}
	idx, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"path": cfg.CatalogPath, "products": idx.Len()}).Info("product catalog loaded")
	return idx, nil
}

// NewPublisher returns nil when no publish endpoint is configured.
func NewPublisher(cfg config.Config) (publish.Publisher, error) {
	if cfg.PublishEndpoint == "" {
		return nil, nil
	}
	client, err := publish.NewHTTPClient(publish.Config{
		Endpoint: cfg.PublishEndpoint,
		Token:    cfg.PublishToken,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

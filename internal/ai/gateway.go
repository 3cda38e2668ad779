package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"decision-matrix/backend/internal/cache"
	"decision-matrix/backend/internal/metrics"
)

// Gateway defaults.
const (
	DefaultTimeout        = 45 * time.Second
	DefaultMaxTokens      = 1500
	DefaultTemperature    = 0.3
	defaultMaxRetries     = 2
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultRateLimit      = 50.0 / 60.0
	defaultBurst          = 5
)

// CallOptions tune a single Gateway call. Zero values use gateway defaults.
type CallOptions struct {
	Provider    string
	System      string
	Model       string
	Temperature *float64
	MaxTokens   int
	BypassCache bool
}

// Gateway is the single entry point for AI calls: cache, rate limit,
// timeout, retry and provider fallback.
type Gateway struct {
	chain          *providerChain
	cache          cache.Cache
	limiter        *rate.Limiter
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	temperature    float64
	maxTokens      int
	system         string
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithProvider registers a provider. The first registered provider is the
// default.
func WithProvider(p Provider) GatewayOption {
	return func(g *Gateway) { g.chain.add(p) }
}

// WithDefaultProvider selects the provider used when a call names none.
func WithDefaultProvider(name string) GatewayOption {
	return func(g *Gateway) {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			g.chain.primary = name
		}
	}
}

// WithFallbackProvider names a provider tried when the primary is
// unavailable, times out or fails upstream.
func WithFallbackProvider(name string) GatewayOption {
	return func(g *Gateway) { g.chain.fallback = strings.ToLower(strings.TrimSpace(name)) }
}

// WithTimeout bounds each provider attempt.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetry sets retry count and backoff bounds for 429/5xx responses.
func WithRetry(maxRetries int, initial, max time.Duration) GatewayOption {
	return func(g *Gateway) {
		if maxRetries >= 0 {
			g.maxRetries = maxRetries
		}
		if initial > 0 {
			g.initialBackoff = initial
		}
		if max > 0 {
			g.maxBackoff = max
		}
	}
}

// WithRateLimit sets the outbound request rate. A non-positive rps disables
// limiting.
func WithRateLimit(rps float64, burst int) GatewayOption {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSampling sets default temperature and token budget.
func WithSampling(temperature float64, maxTokens int) GatewayOption {
	return func(g *Gateway) {
		if temperature >= 0 {
			g.temperature = temperature
		}
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
	}
}

// WithSystemPrompt sets the system message used when a call supplies none.
func WithSystemPrompt(system string) GatewayOption {
	return func(g *Gateway) { g.system = system }
}

// NewGateway builds a gateway. A nil cache disables caching.
func NewGateway(c cache.Cache, opts ...GatewayOption) *Gateway {
	if c == nil {
		c = cache.Noop{}
	}
	g := &Gateway{
		chain:          newProviderChain(),
		cache:          c,
		limiter:        rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		timeout:        DefaultTimeout,
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		temperature:    DefaultTemperature,
		maxTokens:      DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether any provider is registered.
func (g *Gateway) Enabled() bool {
	return g != nil && g.chain.enabled()
}

// Providers lists registered provider names, sorted.
func (g *Gateway) Providers() []string {
	if g == nil {
		return nil
	}
	names := g.chain.names()
	sort.Strings(names)
	return names
}

// DefaultProvider returns the provider used when a call names none.
func (g *Gateway) DefaultProvider() string {
	if g == nil {
		return ""
	}
	return g.chain.primary
}

// Call returns the completion text for prompt. The cache is consulted per
// provider before any request is built.
func (g *Gateway) Call(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	text, _, err := g.call(ctx, prompt, opts)
	return text, err
}

// CallJSON calls and decodes the completion into v. An unparsable cached
// completion is evicted so the next call refetches.
func (g *Gateway) CallJSON(ctx context.Context, prompt string, opts CallOptions, v any) error {
	text, key, err := g.call(ctx, prompt, opts)
	if err != nil {
		return err
	}
	if err := DecodeJSON(text, v); err != nil {
		if delErr := g.cache.Delete(ctx, key); delErr != nil {
			logrus.WithError(delErr).Warn("evict unparsable ai response")
		}
		return err
	}
	return nil
}

func (g *Gateway) call(ctx context.Context, prompt string, opts CallOptions) (string, string, error) {
	if g == nil || !g.chain.enabled() {
		return "", "", ErrProviderUnavailable
	}
	candidates := g.chain.candidates(opts.Provider)
	if len(candidates) == 0 {
		return "", "", fmt.Errorf("provider %q: %w", opts.Provider, ErrProviderUnavailable)
	}

	var lastErr error
	for i, provider := range candidates {
		key := cache.Key(prompt, provider.Name())
		if !opts.BypassCache {
			if cached, ok := g.lookup(ctx, key); ok {
				return cached, key, nil
			}
		}

		text, err := g.callWithRetry(ctx, provider, g.request(prompt, opts))
		if err == nil {
			if setErr := g.cache.Set(ctx, key, text); setErr != nil {
				logrus.WithError(setErr).Warn("store ai response in cache")
			}
			return text, key, nil
		}
		lastErr = err
		if ctx.Err() != nil || !shouldFallback(err) || i == len(candidates)-1 {
			break
		}
		logrus.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"fallback": candidates[i+1].Name(),
		}).WithError(err).Warn("ai provider failed; trying fallback")
	}
	return "", "", lastErr
}

func (g *Gateway) lookup(ctx context.Context, key string) (string, bool) {
	cached, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).Warn("ai cache lookup failed")
		metrics.CacheMiss()
		return "", false
	}
	if ok {
		metrics.CacheHit()
		return cached, true
	}
	metrics.CacheMiss()
	return "", false
}

func (g *Gateway) request(prompt string, opts CallOptions) ChatRequest {
	req := ChatRequest{
		Model:       opts.Model,
		System:      opts.System,
		Prompt:      prompt,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	if req.System == "" {
		req.System = g.system
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return req
}

func (g *Gateway) callWithRetry(ctx context.Context, provider Provider, req ChatRequest) (string, error) {
	delay := g.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		text, err := g.attempt(ctx, provider, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !shouldRetry(err) || attempt == g.maxRetries {
			break
		}
		logrus.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"attempt":  attempt + 1,
			"delay":    delay.String(),
		}).WithError(err).Debug("retrying ai call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > g.maxBackoff {
			delay = g.maxBackoff
		}
	}
	return "", lastErr
}

func (g *Gateway) attempt(ctx context.Context, provider Provider, req ChatRequest) (text string, err error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	started := time.Now()
	defer func() { metrics.ObserveAICall(provider.Name(), started, err) }()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := provider.Complete(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, ErrProviderTimeout) {
			err = fmt.Errorf("%s: %w", provider.Name(), ErrProviderTimeout)
		}
		return "", err
	}
	return ExtractText(raw)
}

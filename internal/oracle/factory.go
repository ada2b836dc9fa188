package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/transmatch/internal/config"
)

// HealthChecker is implemented by oracles that can verify their credentials.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ErrNoAPIKey is returned when no API key is configured or found in the environment.
var ErrNoAPIKey = errors.New("no oracle API key configured")

// New builds the configured backend wrapped in a rate limiter.
func New(cfg config.AIConfig) (*RateLimited, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, ErrNoAPIKey
	}
	models := Models{
		Indexing:     cfg.IndexingModel,
		Matching:     cfg.MatchingModel,
		Verification: cfg.VerificationModel,
	}

	var backend Oracle
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		backend = NewOpenAIClient(OpenAIConfig{
			APIKey:         key,
			BaseURL:        cfg.BaseURL,
			Models:         models,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, WithRetryMaxAttempts(cfg.RetryAttempts))
	case config.ProviderCohere:
		c, err := NewCohereClient(CohereConfig{APIKey: key, Models: models, TimeoutSeconds: cfg.TimeoutSeconds})
		if err != nil {
			return nil, err
		}
		backend = c
	default:
		return nil, fmt.Errorf("unsupported oracle provider %q", cfg.Provider)
	}
	return NewRateLimited(backend, cfg.RatePerSecond, cfg.Burst), nil
}

// ping asks o for a trivial JSON answer.
func ping(ctx context.Context, o Oracle) error {
	content, err := o.Invoke(ctx, TaskVerifyMatch, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(content, &parsed); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if !parsed.OK {
		return errors.New("health check: unexpected response")
	}
	return nil
}

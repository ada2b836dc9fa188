package oracle

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Oracle so calls never exceed the configured rate.
type RateLimited struct {
	next    Oracle
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with the given burst.
// A non-positive rate disables limiting.
func NewRateLimited(next Oracle, perSecond float64, burst int) *RateLimited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Invoke waits for a token and forwards the call.
func (r *RateLimited) Invoke(ctx context.Context, kind TaskKind, systemRole, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &CallError{Kind: kind, Err: err}
	}
	return r.next.Invoke(ctx, kind, systemRole, prompt)
}

// HealthCheck forwards to the wrapped oracle when it supports health checks.
func (r *RateLimited) HealthCheck(ctx context.Context) error {
	if hc, ok := r.next.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

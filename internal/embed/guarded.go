package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
)

// GuardConfig configures GuardedEmbedder.
type GuardConfig struct {
	// Timeout bounds each attempt. Default: DefaultTimeout.
	Timeout time.Duration

	// RatePerSecond limits provider calls; 0 disables the limit.
	RatePerSecond float64

	// Burst is the limiter's bucket size. Default: 1.
	Burst int

	// Retry controls backoff for retryable failures.
	Retry verrors.RetryConfig

	// MaxFailures opens the circuit. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open. Default: 30s.
	ResetTimeout time.Duration
}

// DefaultGuardConfig returns the defaults used by the factory.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:      DefaultTimeout,
		Burst:        1,
		Retry:        verrors.DefaultRetryConfig(),
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	}
}

// GuardedEmbedder protects a provider: calls wait for the rate limiter,
// each attempt gets its own timeout, retryable failures are retried with
// backoff, and a circuit breaker fails fast while the provider is down.
type GuardedEmbedder struct {
	inner   Embedder
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *verrors.CircuitBreaker
}

var _ Embedder = (*GuardedEmbedder)(nil)

// NewGuardedEmbedder wraps inner. Zero fields in cfg take defaults.
func NewGuardedEmbedder(inner Embedder, cfg GuardConfig) *GuardedEmbedder {
	def := DefaultGuardConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &GuardedEmbedder{
		inner:   inner,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: verrors.NewCircuitBreaker("embedder:"+inner.ModelName(),
			verrors.WithMaxFailures(cfg.MaxFailures),
			verrors.WithResetTimeout(cfg.ResetTimeout)),
	}
}

func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return guard(ctx, g, func(ctx context.Context) ([]float32, error) {
		return g.inner.Embed(ctx, text)
	})
}

func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return guard(ctx, g, func(ctx context.Context) ([][]float32, error) {
		return g.inner.EmbedBatch(ctx, texts)
	})
}

// guard runs fn under the limiter, timeout, retry and breaker. Only
// transient failures count against the breaker; a rejected input says
// nothing about the provider's health.
func guard[T any](ctx context.Context, g *GuardedEmbedder, fn func(context.Context) (T, error)) (T, error) {
	return verrors.RetryWithResult(ctx, g.cfg.Retry, func() (T, error) {
		var permanent error
		out, err := verrors.CircuitExecute(g.breaker, func() (T, error) {
			var zero T
			if err := g.limiter.Wait(ctx); err != nil {
				permanent = err
				return zero, nil
			}
			attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()

			out, err := fn(attemptCtx)
			if err == nil {
				return out, nil
			}
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return zero, verrors.New(verrors.ErrCodeEmbedderTimeout,
					fmt.Sprintf("embedding exceeded %s", g.cfg.Timeout), err)
			}
			if !verrors.IsRetryable(err) {
				permanent = err
				return zero, nil
			}
			return zero, err
		})
		if permanent != nil {
			var zero T
			return zero, permanent
		}
		return out, err
	})
}

// BreakerState reports the circuit state, for status output.
func (g *GuardedEmbedder) BreakerState() verrors.State { return g.breaker.State() }

func (g *GuardedEmbedder) Dimensions() int { return g.inner.Dimensions() }

func (g *GuardedEmbedder) ModelName() string { return g.inner.ModelName() }

func (g *GuardedEmbedder) Available(ctx context.Context) bool {
	if g.breaker.State() == verrors.StateOpen {
		return false
	}
	return g.inner.Available(ctx)
}

func (g *GuardedEmbedder) Close() error { return g.inner.Close() }

// Inner returns the wrapped embedder.
func (g *GuardedEmbedder) Inner() Embedder { return g.inner }

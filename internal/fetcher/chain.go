package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steinik-group/rentscout/internal/resilience"
)

// Chain tries fetchers in priority order, returning the first success.
// Each fetcher gets the full retry budget for transient failures before the
// chain moves on. A politeness limiter paces every outbound request.
type Chain struct {
	fetchers []Fetcher
	retry    resilience.RetryConfig
	limiter  *rate.Limiter
}

// NewChain creates a Chain. Fetchers are tried in the given order.
func NewChain(retry resilience.RetryConfig, limiter *rate.Limiter, fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers, retry: retry, limiter: limiter}
}

// Fetch retrieves one target. ErrEmpty short-circuits the chain: a page that
// parsed cleanly with zero listings is an answer, not a failure.
func (c *Chain) Fetch(ctx context.Context, target Target) (*Result, error) {
	var lastErr error
	for _, f := range c.fetchers {
		if !f.Supports(target) {
			continue
		}

		result, err := c.fetchOne(ctx, f, target)
		if err == nil {
			return result, nil
		}
		if IsEmpty(err) || ctx.Err() != nil {
			return nil, err
		}

		zap.L().Debug("fetcher failed, trying next",
			zap.String("fetcher", f.Name()),
			zap.Int("page", target.Page),
			zap.String("url", target.URL),
			zap.Error(err),
		)
		lastErr = err
	}

	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "fetch: all fetchers failed")
	}
	return nil, eris.New("fetch: no suitable fetcher for target")
}

func (c *Chain) fetchOne(ctx context.Context, f Fetcher, target Target) (*Result, error) {
	cfg := c.retry
	cfg.ShouldRetry = IsRetryable
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("fetch", f.Name())
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetch: politeness limiter")
			}
		}
		return f.Fetch(ctx, target)
	})
}

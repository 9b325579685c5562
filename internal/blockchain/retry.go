package blockchain

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultTimeout           = 30 * time.Second
	DefaultRetryCount        = 3
	DefaultRetryDelay        = 2 * time.Second
	DefaultPollInterval      = 2 * time.Second
	DefaultRequestsPerSecond = 5
	DefaultDropAfter         = 30
	DefaultCacheTTL          = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryCount == 0 {
		c.RetryCount = DefaultRetryCount
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.DropAfter == 0 {
		c.DropAfter = DefaultDropAfter
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// the attempts run out. Delays grow linearly with the attempt number.
func withRetry[T any](ctx context.Context, cfg Config, logger *log.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt < cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if classified := ClassifyError(err); !classified.IsRetryable() {
			break
		}
		logger.Debug("retrying node request", "op", op, "attempt", attempt+1, "err", err)
	}

	return zero, ClassifyError(lastErr)
}

// Package retry wraps external calls in bounded retries with a fixed delay
// schedule. The last error is propagated unchanged so callers can branch on
// it; attempt counts are logged so a success after retry stays visible.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Config names an operation and bounds its attempts. When attempts outrun
// the schedule, the last schedule entry is reused.
type Config struct {
	Name        string
	MaxAttempts int
	Delays      []time.Duration
}

// Presets used by the pipeline. Configuration constants, not inline values.
var (
	Scrape   = Config{Name: "scrape", MaxAttempts: 3, Delays: []time.Duration{500 * time.Millisecond, 2 * time.Second}}
	Generate = Config{Name: "generate", MaxAttempts: 3, Delays: []time.Duration{time.Second, 3 * time.Second}}
	Publish  = Config{Name: "publish", MaxAttempts: 3, Delays: []time.Duration{time.Second, 3 * time.Second}}
)

// Do runs fn up to cfg.MaxAttempts times. Between failed attempts it sleeps
// the scheduled delay, honoring context cancellation. The error of the final
// failed attempt is returned as-is, without wrapping.
func Do[T any](ctx context.Context, cfg Config, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 && logger != nil {
				logger.Info("operation succeeded after retry", "operation", cfg.Name, "attempt", attempt)
			}
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			if logger != nil {
				logger.Error("operation failed after all retries", "operation", cfg.Name, "attempts", attempt, "error", err)
			}
			break
		}

		delay := delayFor(cfg, attempt)
		if logger != nil {
			logger.Warn("operation failed, retrying", "operation", cfg.Name, "attempt", attempt, "delay", delay, "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func delayFor(cfg Config, attempt int) time.Duration {
	if len(cfg.Delays) == 0 {
		return 0
	}
	if attempt-1 < len(cfg.Delays) {
		return cfg.Delays[attempt-1]
	}
	return cfg.Delays[len(cfg.Delays)-1]
}

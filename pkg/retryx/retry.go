package retryx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"boxradar/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// Config holds the parameters for the retry strategy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do executes fn with exponential back-off, doubling the delay after each
// failed attempt. The context cancels both the waits and further attempts.
func (c Config) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	delay := c.BaseDelay

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == c.MaxAttempts {
			break
		}

		logger(ctx).Warn(
			"retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Int("max-attempts", c.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
	}

	return fmt.Errorf("%s: all %d attempts failed: %w", operation, c.MaxAttempts, lastErr)
}

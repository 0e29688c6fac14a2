package retryx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxradar/pkg/retryx"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	rq := require.New(t)

	cfg := retryx.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}

	attempts := 0
	err := cfg.Do(context.Background(), "lookup", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("boom")
		}
		return nil
	})

	rq.NoError(err)
	rq.Equal(3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	rq := require.New(t)

	cfg := retryx.Config{MaxAttempts: 2, BaseDelay: time.Millisecond}

	testErr := errors.New("boom")
	attempts := 0
	err := cfg.Do(context.Background(), "lookup", func(context.Context) error {
		attempts++
		return testErr
	})

	rq.ErrorIs(err, testErr)
	rq.Equal(2, attempts)
}

func TestDoStopsOnCancel(t *testing.T) {
	rq := require.New(t)

	cfg := retryx.Config{MaxAttempts: 5, BaseDelay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := cfg.Do(ctx, "lookup", func(context.Context) error {
		attempts++
		return errors.New("boom")
	})

	rq.ErrorIs(err, context.Canceled)
	rq.Equal(1, attempts)
}

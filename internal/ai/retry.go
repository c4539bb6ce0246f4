package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/utils"
)

var wait = utils.WaitFor

// TemporaryError marks a backend failure worth retrying.
type TemporaryError struct {
	Err error
	// RetryAfter is the delay requested by the backend, zero when unknown.
	RetryAfter time.Duration
}

func (e *TemporaryError) Error() string { return e.Err.Error() }

func (e *TemporaryError) Unwrap() error { return e.Err }

// RetryPolicy bounds retries of temporary failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// MaxDelay stops retrying when the backend asks to wait longer than this.
	MaxDelay time.Duration
}

// Retry calls fn until it succeeds, fails permanently, or the attempts run out.
func Retry(ctx context.Context, policy RetryPolicy, log *zap.Logger, fn func(ctx context.Context) (string, error)) (string, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var tmp *TemporaryError
		if !errors.As(err, &tmp) || attempt == attempts {
			return "", err
		}

		delay := tmp.RetryAfter
		if delay <= 0 {
			delay = policy.Backoff * time.Duration(1<<(attempt-1))
		}
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			log.Warn("not retrying, requested delay is too long",
				zap.Duration("delay", delay), zap.Duration("max_delay", policy.MaxDelay), zap.Error(err))
			return "", err
		}

		log.Warn("temporary model error, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

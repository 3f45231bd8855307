package football

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/model"
)

const (
	defaultRetryAttempts = 3
	defaultBackoff       = 250 * time.Millisecond
	// Longest X-RequestCounter-Reset worth waiting for inside a request.
	defaultMaxRateLimitWait = 10 * time.Second
)

type backoffFunc func(attempt int) time.Duration

// retryingProvider wraps a Provider with retry/backoff behavior.
type retryingProvider struct {
	inner       Provider
	logger      *slog.Logger
	metrics     *metrics.Recorder
	name        string
	maxAttempts int
	backoffFn   backoffFunc
	maxWait     time.Duration
}

// NewRetryingProvider retries transport errors, 429s and 5xx responses with
// linear backoff. A 429 waits at least until the quota resets, and gives up
// at once when that is too far away. Other HTTP errors are returned
// immediately. If
// maxAttempts/backoff are <= 0, defaults are used.
func NewRetryingProvider(inner Provider, logger *slog.Logger, rec *metrics.Recorder, name string, maxAttempts int, backoff time.Duration) Provider {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingProvider{
		inner:       inner,
		logger:      logger,
		metrics:     rec,
		name:        name,
		maxAttempts: maxAttempts,
		backoffFn: func(attempt int) time.Duration {
			return time.Duration(attempt) * backoff
		},
		maxWait: defaultMaxRateLimitWait,
	}
}

func (r *retryingProvider) FetchMatches(ctx context.Context, q Query) ([]model.Match, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		start := time.Now()
		matches, err := r.inner.FetchMatches(ctx, q)
		r.metrics.RecordProviderAttempt(r.name, time.Since(start), err)
		if err == nil {
			return matches, nil
		}
		lastErr = err

		if se, ok := AsStatusError(err); ok && se.StatusCode == 429 {
			r.metrics.RecordRateLimit(r.name)
		}
		if !retryable(ctx, err) || attempt == r.maxAttempts {
			break
		}

		delay := r.backoffFn(attempt)
		if se, ok := AsStatusError(err); ok && se.StatusCode == 429 && se.RetryAfter > delay {
			if se.RetryAfter > r.maxWait {
				r.logger.Warn("provider rate limited", "provider", r.name, "reset_in", se.RetryAfter)
				break
			}
			delay = se.RetryAfter
		}

		r.logger.Warn("provider fetch retry", "provider", r.name, "attempt", attempt, "max_attempts", r.maxAttempts, "delay", delay, "error", err)

		// backoff with context awareness
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if se, ok := AsStatusError(err); ok {
		return se.Temporary()
	}
	return true
}

package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go/v2"
	log "github.com/sirupsen/logrus"

	"github.com/tinfoilsh/confidential-planner/pipeline"
)

// RetryPolicy is applied uniformly to every backend call
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	IsRetryable func(err error) bool
}

// LinearBackoff waits attempt × step after the given failed attempt
func LinearBackoff(step time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// DefaultRetryPolicy allows 3 attempts with a linear 3s backoff, retrying
// only transient errors
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(3 * time.Second),
		IsRetryable: IsTransient,
	}
}

// pacedBackOff performs each policy delay through the injected sleep and
// reports zero to backoff.Retry. A failed sleep stops the retries.
type pacedBackOff struct {
	ctx     context.Context
	delay   func(attempt int) time.Duration
	sleep   pipeline.SleepFunc
	attempt int
	err     error
}

func (b *pacedBackOff) Reset() {
	b.attempt = 0
	b.err = nil
}

func (b *pacedBackOff) NextBackOff() time.Duration {
	b.attempt++
	var d time.Duration
	if b.delay != nil {
		d = b.delay(b.attempt)
	}
	if b.err = b.sleep(b.ctx, d); b.err != nil {
		return backoff.Stop
	}
	return 0
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Exhaustion yields *pipeline.BackendExhaustedError
// wrapping the last transient failure.
func Do[T any](ctx context.Context, p RetryPolicy, sleep pipeline.SleepFunc, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)
	if sleep == nil {
		sleep = pipeline.Sleep
	}
	paced := &pacedBackOff{ctx: ctx, delay: p.Backoff, sleep: sleep}

	attempt := 0
	var last error
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || p.IsRetryable == nil || !p.IsRetryable(err) {
			return zero, backoff.Permanent(err)
		}

		last = &pipeline.TransientBackendError{Attempt: attempt, Err: err}
		if attempt < attempts {
			log.WithFields(log.Fields{
				"attempt": attempt,
				"of":      attempts,
			}).Warnf("Backend call failed, retrying: %v", err)
		}
		return zero, last
	},
		backoff.WithBackOff(paced),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return v, nil
	}

	var permanent *backoff.PermanentError
	switch {
	case errors.As(err, &permanent):
		return zero, permanent.Unwrap()
	case paced.err != nil:
		return zero, paced.err
	case last != nil && err == last:
		return zero, &pipeline.BackendExhaustedError{Attempts: attempts, Err: last}
	}
	return zero, err
}

// IsTransient classifies timeouts, connection failures, rate limiting and
// upstream 5xx responses as retryable. Caller cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// TLS, DNS and bad-URL failures are net.Errors too; only timeouts retry
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET)
}

// Package retrylimit runs remote calls behind an adaptive rate limit and
// retries transient failures with exponential backoff.
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// recoveryWindow is how long the limiter holds a lowered rate after a failure.
const recoveryWindow = 10 * time.Second

// AdaptiveLimiter raises its rate by stepUp after quiet successes and
// multiplies it by stepDown on overload, staying within [min, max].
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

func NewAdaptiveLimiter(initial, lo, hi, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	initial = max(initial, 1)
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burst(initial)),
		min:      max(lo, 1),
		max:      hi,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > recoveryWindow {
		a.set(a.limiter.Limit() + a.stepUp)
	}
}

func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.set(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// Limit is the current rate in requests per second.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	return a.limiter.Limit()
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	l = min(max(l, a.min), a.max)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burst(l))
	}
}

func burst(l rate.Limit) int { return max(1, int(l)) }

// HTTPError is implemented by errors that carry a response status.
type HTTPError interface {
	error
	StatusCode() int
}

// FatalError stops retrying at once.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Policy shapes the backoff between attempts.
type Policy struct {
	Attempts       int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration // pause after a 429 instead of backing off
}

var DefaultPolicy = Policy{
	Attempts:       3,
	InitialDelay:   500 * time.Millisecond,
	MaxDelay:       10 * time.Second,
	RateLimitDelay: 100 * time.Millisecond,
}

// WithRetryLog runs fn up to attempts times under DefaultPolicy, logging
// failed attempts to log.
func WithRetryLog(ctx context.Context, fn func() error, lim *AdaptiveLimiter, attempts int, log zerolog.Logger) error {
	p := DefaultPolicy
	p.Attempts = attempts
	return Do(ctx, p, lim, log, fn)
}

// Do runs fn until it succeeds, returns a FatalError, ctx ends or the
// policy runs out of attempts. 429 and 5xx responses slow lim down.
func Do(ctx context.Context, p Policy, lim *AdaptiveLimiter, log zerolog.Logger, fn func() error) error {
	attempts := max(1, p.Attempts)
	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Msg("retry succeeded")
			}
			return nil
		}
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		code := statusCode(err)
		if lim != nil && (code == http.StatusTooManyRequests || code >= 500) {
			lim.RateLimited()
		}

		wait := jitter(delay)
		if code == http.StatusTooManyRequests {
			wait = p.RateLimitDelay
		} else {
			delay = min(delay*2, p.MaxDelay)
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("status", code).Dur("sleep", wait).Msg("request failed")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("max attempts (%d) exceeded: %w", attempts, lastErr)
}

func statusCode(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return 0
}

// jitter adds up to a quarter of d.
func jitter(d time.Duration) time.Duration {
	if q := int64(d / 4); q > 0 {
		return d + time.Duration(rand.Int64N(q))
	}
	return d
}

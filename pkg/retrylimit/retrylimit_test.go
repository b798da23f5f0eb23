package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type statusErr int

func (e statusErr) Error() string   { return http.StatusText(int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

var fast = Policy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, RateLimitDelay: time.Millisecond}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, nil, zerolog.Nop(), func() error {
		calls++
		if calls < 3 {
			return statusErr(http.StatusBadGateway)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnFatal(t *testing.T) {
	calls := 0
	boom := errors.New("bad request")
	err := Do(context.Background(), fast, nil, zerolog.Nop(), func() error {
		calls++
		return &FatalError{Err: boom}
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, nil, zerolog.Nop(), func() error {
		calls++
		return statusErr(http.StatusServiceUnavailable)
	})
	require.ErrorContains(t, err, "max attempts (3) exceeded")
	require.Equal(t, 3, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fast, nil, zerolog.Nop(), func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestLimiterSlowsDownOnOverload(t *testing.T) {
	lim := NewAdaptiveLimiter(8, 1, 10, 1, 0.5)
	_ = Do(context.Background(), Policy{Attempts: 2, RateLimitDelay: time.Millisecond}, lim, zerolog.Nop(), func() error {
		return statusErr(http.StatusTooManyRequests)
	})
	require.Equal(t, rate.Limit(4), lim.Limit())

	lim.RateLimited()
	lim.RateLimited()
	lim.RateLimited()
	require.Equal(t, rate.Limit(1), lim.Limit())
}

func TestLimiterRecoversAfterQuietSuccess(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 3, 1, 0.5)
	lim.Success()
	lim.Success()
	require.Equal(t, rate.Limit(3), lim.Limit())

	lim.RateLimited()
	lim.Success()
	require.Equal(t, rate.Limit(1.5), lim.Limit())
}

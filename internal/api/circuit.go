package api

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned when the breaker is open and its recovery
// window has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker open: concert backend is unavailable, backing off")

const breakerName = "concert-backend"

// newLimiter builds the outbound token bucket. A non-positive rate
// disables limiting.
func newLimiter(ratePerSec float64, burst int) *rate.Limiter {
	if ratePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(ratePerSec), max(burst, 1))
}

// waitLimiter blocks for a token and reports how long that took.
func waitLimiter(ctx context.Context, l *rate.Limiter) (time.Duration, error) {
	start := time.Now()
	err := l.Wait(ctx)
	return time.Since(start), err
}

// newBreaker trips after threshold consecutive 429/5xx answers, stays open
// for resetTimeout and then lets a single request through half-open.
// Transport errors are not counted against the backend.
func newBreaker(threshold int, resetTimeout time.Duration, reqLog *requestLog) *gobreaker.CircuitBreaker {
	limit := uint32(max(threshold, 1))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			return !errors.As(err, &se)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			reqLog.circuitChange(name, from, to)
		},
	})
}

// breakerRejected reports whether err is the breaker refusing a request.
func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

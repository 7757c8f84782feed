// Package resilience wraps calls to remote collaborators (Google Sheets, the
// message broker) with a circuit breaker and bounded retries.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while a breaker refuses calls.
var ErrUnavailable = errors.New("remote dependency unavailable")

// Retry holds backoff parameters for Do.
type Retry struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// NewCircuitBreaker creates a breaker that opens once at least five calls in
// a 30s window have failed at a 60% ratio, and lets a trial request through after 10s.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Execute runs fn through cb and returns its typed result. Breaker refusals
// are reported as ErrUnavailable.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.Join(ErrUnavailable, err)
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Do runs fn with exponential backoff plus jitter, stopping early on context
// cancellation or when fn returns an error marked permanent.
func Do(ctx context.Context, r Retry, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var p permanent
		if errors.As(lastErr, &p) {
			return p.err
		}
		if attempt < r.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Backoff(r.InitialBackoff, attempt)):
			}
		}
	}
	return lastErr
}

// Backoff returns the wait before retry number attempt (0-based).
func Backoff(initial time.Duration, attempt int) time.Duration {
	if initial <= 0 {
		return 0
	}
	backoff := time.Duration(math.Pow(2, float64(attempt))) * initial
	if half := int64(backoff / 2); half > 0 {
		backoff += time.Duration(rand.Int63n(half))
	}
	return backoff
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

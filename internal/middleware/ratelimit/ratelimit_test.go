package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = c.now
	t.Cleanup(rl.Stop)
	return rl, c
}

func TestLimiterWindow(t *testing.T) {
	rl, c := newTestLimiter(t, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are limited independently")

	// Requests inside the window do not extend it.
	c.advance(30 * time.Second)
	assert.False(t, rl.Allow("a"))
	c.advance(30 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestLimiterCleanup(t *testing.T) {
	rl, c := newTestLimiter(t, 5)
	rl.Allow("a")
	c.advance(5 * time.Minute)
	rl.Allow("b")
	c.advance(6 * time.Minute)

	rl.cleanupStaleEntries()
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiterMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "a" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/deposits", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/deposits", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestStopTwice(t *testing.T) {
	rl := NewLimiter(Config{})
	require.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}

func TestLockout(t *testing.T) {
	c := &clock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	l := NewLockout(3, 15*time.Minute)
	l.now = c.now

	assert.False(t, l.Failure("a"))
	assert.False(t, l.Failure("a"))
	locked, _ := l.Locked("a")
	assert.False(t, locked)

	assert.True(t, l.Failure("a"))
	locked, wait := l.Locked("a")
	assert.True(t, locked)
	assert.Equal(t, 15*time.Minute, wait)

	c.advance(10 * time.Minute)
	_, wait = l.Locked("a")
	assert.Equal(t, 5*time.Minute, wait)

	c.advance(5 * time.Minute)
	locked, _ = l.Locked("a")
	assert.False(t, locked)
	assert.False(t, l.Failure("a"), "count restarts after the lockout")
}

func TestLockoutForgetsOldFailures(t *testing.T) {
	c := &clock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	l := NewLockout(3, 15*time.Minute)
	l.now = c.now

	assert.False(t, l.Failure("a"))
	assert.False(t, l.Failure("b"))
	c.advance(10 * time.Minute)
	assert.False(t, l.Failure("a"))

	c.advance(20 * time.Minute)
	assert.False(t, l.Failure("a"), "failures outside the window do not add up")
	assert.False(t, l.Failure("a"))
	assert.Len(t, l.failures, 1, "idle clients are evicted")

	assert.True(t, l.Failure("a"))
}

func TestLockoutReset(t *testing.T) {
	l := NewLockout(2, time.Minute)
	l.Failure("a")
	l.Reset("a")
	assert.False(t, l.Failure("a"))
}

func TestRetryAfterHeader(t *testing.T) {
	assert.Equal(t, "1", RetryAfterHeader(0))
	assert.Equal(t, "2", RetryAfterHeader(1500*time.Millisecond))
	assert.Equal(t, "900", RetryAfterHeader(15*time.Minute))
}

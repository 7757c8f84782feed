package ratelimit

import (
	"sync"
	"time"
)

// Lockout counts failed PIN attempts per client. Once a client reaches
// maxFailures it is locked out for the lockout duration, after which its
// count starts again from zero. Failures older than the lockout duration are
// forgotten.
type Lockout struct {
	mu          sync.Mutex
	failures    map[string]*failureInfo
	now         func() time.Time
	maxFailures int
	lockout     time.Duration
}

type failureInfo struct {
	count       int
	lastFailure time.Time
	lockedUntil time.Time
}

func NewLockout(maxFailures int, lockout time.Duration) *Lockout {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Lockout{
		failures:    make(map[string]*failureInfo),
		now:         time.Now,
		maxFailures: maxFailures,
		lockout:     lockout,
	}
}

// Locked reports whether client is locked out and for how much longer.
func (l *Lockout) Locked(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.failures[client]
	if !ok || info.lockedUntil.IsZero() {
		return false, 0
	}
	now := l.now()
	if !now.Before(info.lockedUntil) {
		delete(l.failures, client)
		return false, 0
	}
	return true, info.lockedUntil.Sub(now)
}

// Failure records one wrong PIN and reports whether the client is now locked.
func (l *Lockout) Failure(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	info, ok := l.failures[client]
	if !ok {
		info = &failureInfo{}
		l.failures[client] = info
	}
	info.count++
	info.lastFailure = now
	if info.count >= l.maxFailures {
		info.lockedUntil = now.Add(l.lockout)
		return true
	}
	return false
}

// prune drops expired lockouts and counts with no failure inside the window.
// Callers hold l.mu.
func (l *Lockout) prune(now time.Time) {
	for client, info := range l.failures {
		if !info.lockedUntil.IsZero() {
			if !now.Before(info.lockedUntil) {
				delete(l.failures, client)
			}
			continue
		}
		if now.Sub(info.lastFailure) >= l.lockout {
			delete(l.failures, client)
		}
	}
}

// Reset forgets the failures of client after a correct PIN.
func (l *Lockout) Reset(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, client)
}

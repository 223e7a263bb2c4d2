// Package ratelimit bounds how many actions of a given class a key may
// perform per sliding time window.
package ratelimit

import (
	"sync"
	"time"
)

type Class string

const (
	// ClassAPICall is the long-window ceiling for outbound API calls.
	ClassAPICall Class = "api_calls"
	// ClassCommand is the short-window ceiling for executed commands.
	ClassCommand Class = "commands"
)

// Limit is a ceiling of Count events per Window.
type Limit struct {
	Count  int
	Window time.Duration
}

var defaultLimits = map[Class]Limit{
	ClassAPICall: {Count: 100, Window: time.Hour},
	ClassCommand: {Count: 50, Window: 5 * time.Minute},
}

// Limiter keeps one ordered timestamp sequence per (key, class) pair and
// prunes it lazily on each check.
type Limiter struct {
	mu     sync.Mutex
	limits map[Class]Limit
	events map[string][]time.Time
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit overrides the ceiling for a class.
func WithLimit(class Class, limit Limit) Option {
	return func(l *Limiter) { l.limits[class] = limit }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		limits: make(map[Class]Limit, len(defaultLimits)),
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
	for class, limit := range defaultLimits {
		l.limits[class] = limit
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecord prunes expired events for (key, class), then either records
// the current time and returns true, or returns false when the ceiling is
// reached. Recording happens only on success, so callers must not invoke it
// speculatively. Unknown classes deny.
func (l *Limiter) CheckAndRecord(key string, class Class) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[class]
	if !ok {
		return false
	}

	now := l.now()
	cutoff := now.Add(-limit.Window)
	seqKey := key + "/" + string(class)

	seq := l.events[seqKey]
	// Timestamps are appended in order, so expired entries sit at the front.
	start := 0
	for start < len(seq) && !seq[start].After(cutoff) {
		start++
	}
	seq = seq[start:]

	if len(seq) >= limit.Count {
		l.events[seqKey] = seq
		return false
	}

	l.events[seqKey] = append(seq, now)
	return true
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Local is an in-process fixed window limiter for single-instance deployments.
type Local struct {
	mu      sync.Mutex
	rule    Rule
	windows map[string]*window
	now     func() time.Time
}

// NewLocal creates an in-memory limiter. A non-positive limit allows everything.
func NewLocal(rule Rule) *Local {
	return &Local{
		rule:    rule,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts one request for key. It never fails.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	if l.rule.Limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.rule.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.rule.Limit, nil
}

// Sweep forgets windows that have expired.
func (l *Local) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.rule.Window {
			delete(l.windows, key)
		}
	}
}

// StartSweeper runs Sweep every window until stop is closed.
func (l *Local) StartSweeper(stop <-chan struct{}) {
	if l.rule.Window <= 0 {
		return
	}
	ticker := time.NewTicker(l.rule.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

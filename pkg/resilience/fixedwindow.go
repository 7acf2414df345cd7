// Package resilience provides request throttling primitives.
package resilience

import (
	"sync"
	"time"
)

// Window is a fixed-window rate limiter: at most Limit requests per Period,
// with the counter resetting at each period boundary.
type Window struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	count  int
	start  time.Time
	now    func() time.Time
}

// NewWindow creates a fixed-window limiter allowing limit requests per period.
func NewWindow(limit int, period time.Duration) *Window {
	if limit <= 0 {
		limit = 1
	}
	if period <= 0 {
		period = time.Second
	}
	return &Window{limit: limit, period: period, now: time.Now}
}

// Allow reports whether a request may proceed. When denied, retryAfter is
// the time remaining until the window resets.
func (w *Window) Allow() (ok bool, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.start.IsZero() || now.Sub(w.start) >= w.period {
		w.start = now
		w.count = 0
	}
	if w.count < w.limit {
		w.count++
		return true, 0
	}
	return false, w.period - now.Sub(w.start)
}

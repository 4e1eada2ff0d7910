package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts hits inside a trailing time window.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return len(w.hits)
}

// AddIfBelow records a hit only while fewer than limit hits are in the
// window. Otherwise it returns false and the wait until the oldest hit expires.
func (w *SlidingWindow) AddIfBelow(now time.Time, limit int) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if len(w.hits) >= limit {
		if len(w.hits) == 0 {
			return false, 0
		}
		return false, w.hits[0].Add(w.window).Sub(now)
	}
	w.hits = append(w.hits, now)
	return true, 0
}

// RetryAfter is how long until the oldest hit leaves the window.
func (w *SlidingWindow) RetryAfter(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if len(w.hits) == 0 {
		return 0
	}
	return w.hits[0].Add(w.window).Sub(now)
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// Cooldown allows each key at most limit hits per window.
type Cooldown struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*SlidingWindow
}

func NewCooldown(limit int, window time.Duration) *Cooldown {
	return &Cooldown{limit: limit, window: window, windows: make(map[string]*SlidingWindow)}
}

// Allow records a hit for key unless the key is already at its limit, in
// which case it returns false and the wait until the next free slot.
func (c *Cooldown) Allow(key string, now time.Time) (bool, time.Duration) {
	if c.limit <= 0 || c.window <= 0 {
		return true, 0
	}

	// Held across the hit so Sweep cannot drop a window mid-update.
	c.mu.Lock()
	defer c.mu.Unlock()
	window := c.windows[key]
	if window == nil {
		window = NewSlidingWindow(c.window)
		c.windows[key] = window
	}
	return window.AddIfBelow(now, c.limit)
}

// Sweep drops keys with no hits left in their window.
func (c *Cooldown) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, window := range c.windows {
		if window.Count(now) == 0 {
			delete(c.windows, key)
		}
	}
}

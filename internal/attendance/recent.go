package attendance

import (
	"sync"
	"time"
)

// RecentCache remembers when identities were last handled so the capture loop can
// skip re-recognizing someone standing in front of the camera. It is a hint only:
// the state machine always decides on persisted state.
type RecentCache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[int64]time.Time
}

// NewRecentCache creates a cache; a zero window disables it.
func NewRecentCache(window time.Duration) *RecentCache {
	return &RecentCache{window: window, seen: make(map[int64]time.Time)}
}

// Seen reports whether identityID was marked within the window before now.
func (c *RecentCache) Seen(identityID int64, now time.Time) bool {
	if c == nil || c.window <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.seen[identityID]
	if !ok {
		return false
	}
	if now.Sub(last) >= c.window {
		delete(c.seen, identityID)
		return false
	}
	return true
}

// Mark records that identityID was handled at now.
func (c *RecentCache) Mark(identityID int64, now time.Time) {
	if c == nil || c.window <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[identityID] = now
}

package scan

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a token is ignored after it was last seen
const DefaultCooldown = time.Second

// Debouncer drops repeats of the same token inside a cool-down window, so a
// badge held in front of a scanning camera is only submitted once.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	lastSeen map[string]time.Time
	now      func() time.Time
}

// NewDebouncer returns a Debouncer with the given window
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Debouncer{window: window, lastSeen: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether token should be submitted and records the sighting
func (d *Debouncer) Allow(token string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	last, seen := d.lastSeen[token]
	d.lastSeen[token] = now
	if seen && now.Sub(last) < d.window {
		return false
	}
	d.prune(now)
	return true
}

// prune forgets tokens whose window has passed, callers hold mu
func (d *Debouncer) prune(now time.Time) {
	for token, at := range d.lastSeen {
		if now.Sub(at) >= d.window {
			delete(d.lastSeen, token)
		}
	}
}

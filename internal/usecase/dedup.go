package usecase

import (
	"sync"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
)

// Dedup suppresses identical webhook payloads redelivered within a short
// window. The signal source retries deliveries; without this guard a retry
// would double-execute an open or close. Safe for concurrent use.
type Dedup struct {
	window time.Duration

	mu       sync.Mutex
	lastSeen time.Time
	lastKey  string

	now func() time.Time
}

func NewDedup(window time.Duration) *Dedup {
	return &Dedup{window: window, now: time.Now}
}

// Accept returns false if an equal payload was accepted inside the window,
// without touching the stored record. Otherwise it records the payload and
// returns true.
func (d *Dedup) Accept(sig domain.Signal) bool {
	key := sig.Canonical()

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.lastKey == key && now.Sub(d.lastSeen) < d.window {
		return false
	}
	d.lastKey = key
	d.lastSeen = now
	return true
}

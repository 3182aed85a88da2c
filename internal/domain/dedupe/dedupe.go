// Package dedupe tracks which device timestamps have already been published.
package dedupe

import (
	"sync"
)

// Deduper records seen sample timestamps so that a frame polled twice from
// the device is only published once.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it
	// if it was not.
	SeenAndRecord(key string) bool

	// Unrecord forgets key so that it can be published again.
	Unrecord(key string)

	Size() int
}

// windowDeduper remembers the most recent keys in a ring. When the ring is
// full the oldest key is forgotten.
type windowDeduper struct {
	mu     sync.Mutex
	seen   map[string]int // key -> ring slot
	ring   []string
	next   int
	window int
}

// NewWindowDeduper creates a deduper that remembers the last window keys.
func NewWindowDeduper(opts ...Option) Deduper {
	d := &windowDeduper{
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.window <= 0 {
		d.window = 1
	}
	d.seen = make(map[string]int, d.window)
	d.ring = make([]string, 0, d.window)
	return d
}

func (d *windowDeduper) SeenAndRecord(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if len(d.ring) < d.window {
		d.seen[key] = len(d.ring)
		d.ring = append(d.ring, key)
		return false
	}

	// evict the oldest slot
	old := d.ring[d.next]
	if slot, ok := d.seen[old]; ok && slot == d.next {
		delete(d.seen, old)
	}
	d.ring[d.next] = key
	d.seen[key] = d.next
	d.next = (d.next + 1) % d.window
	return false
}

func (d *windowDeduper) Unrecord(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.ring[slot] = ""
	}
}

// Size returns the number of keys currently remembered.
func (d *windowDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

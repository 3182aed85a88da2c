// Package current holds the most recently published gaze sample.
package current

import (
	"context"
	"sync"

	"github.com/okian/gazetrack/internal/domain/dedupe"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/pkg/metrics"
)

// Holder is the single-writer, many-reader cell for the current sample.
// Every accepted Publish bumps a sequence number and wakes all readers
// blocked in Next.
type Holder struct {
	mu      sync.RWMutex
	sample  model.Sample
	seq     uint64
	last    string
	changed chan struct{}
	done    chan struct{}
	closed  bool
	deduper dedupe.Deduper
}

// Option configures a Holder.
type Option func(*Holder)

// WithDeduper replaces the default timestamp deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(h *Holder) {
		if d != nil {
			h.deduper = d
		}
	}
}

// New creates an empty Holder.
func New(opts ...Option) *Holder {
	h := &Holder{
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.deduper == nil {
		h.deduper = dedupe.NewWindowDeduper()
	}
	return h
}

// Publish replaces the current sample unless its device timestamp was
// already published. It reports whether the sample was accepted.
//
// A timestamp is rejected when it equals the current one or appears
// anywhere in the deduper's window of recent timestamps, not only when it
// repeats the previous sample. A device whose clock restarts can therefore
// lose samples until its timestamps leave the window; use WithDeduper to
// narrow the window for such devices.
func (h *Holder) Publish(s model.Sample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	if h.seq > 0 && s.Timestamp == h.last {
		metrics.RecordSampleDuplicate()
		return false
	}
	if h.deduper.SeenAndRecord(s.Timestamp) {
		metrics.RecordSampleDuplicate()
		return false
	}

	h.sample = s
	h.last = s.Timestamp
	h.seq++

	close(h.changed)
	h.changed = make(chan struct{})

	metrics.RecordSamplePublished()
	return true
}

// Get returns a copy of the current sample and its sequence number. ok is
// false until the first sample has been published.
func (h *Holder) Get() (s model.Sample, seq uint64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sample, h.seq, h.seq > 0
}

// Seq returns the sequence number of the current sample.
func (h *Holder) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Next blocks until a sample newer than afterSeq is published and returns it.
// It returns ErrClosed once the holder is closed and no newer sample exists.
func (h *Holder) Next(ctx context.Context, afterSeq uint64) (model.Sample, uint64, error) {
	for {
		h.mu.RLock()
		s, seq, wait := h.sample, h.seq, h.changed
		h.mu.RUnlock()

		if seq > afterSeq {
			return s, seq, nil
		}

		select {
		case <-ctx.Done():
			return model.Sample{}, seq, ctx.Err()
		case <-h.done:
			return model.Sample{}, seq, ErrClosed
		case <-wait:
		}
	}
}

// Close stops accepting samples and releases every caller blocked in Next.
// It is safe to call more than once.
func (h *Holder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

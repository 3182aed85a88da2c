// Package queue is the bounded hand-off between the sample producer and
// consumer.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 64
)

// Queue carries samples from the producer to the consumer.
type Queue interface {
	// Enqueue adds a sample. When the queue is full the oldest sample is
	// dropped to make room. Returns false only when the queue is closed or
	// ctx is done.
	Enqueue(ctx context.Context, s model.Sample) bool

	// Pop waits up to wait for the oldest sample. ok is false on timeout,
	// cancellation or a closed and drained queue.
	Pop(ctx context.Context, wait time.Duration) (s model.Sample, ok bool)

	Len() int

	// Close stops further enqueues. Queued samples can still be popped.
	Close() error

	IsClosed() bool
}

// SampleQueue implements Queue with a buffered channel.
type SampleQueue struct {
	samples  chan model.Sample
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewSampleQueue creates a queue.
func NewSampleQueue(opts ...Option) *SampleQueue {
	q := &SampleQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.samples = make(chan model.Sample, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds s, evicting the oldest sample if the queue is full.
func (q *SampleQueue) Enqueue(ctx context.Context, s model.Sample) bool { //nolint:gocritic // hugeParam: samples are passed by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}

	for {
		select {
		case q.samples <- s:
			metrics.UpdateQueueSize(len(q.samples))
			return true
		default:
		}
		// full: drop the oldest and retry
		select {
		case <-q.samples:
			metrics.RecordQueueDropped()
		default:
		}
	}
}

// Pop returns the oldest sample, waiting up to wait for one to arrive.
func (q *SampleQueue) Pop(ctx context.Context, wait time.Duration) (model.Sample, bool) {
	select {
	case s, ok := <-q.samples:
		if ok {
			metrics.UpdateQueueSize(len(q.samples))
		}
		return s, ok
	default:
	}
	if wait <= 0 {
		return model.Sample{}, false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s, ok := <-q.samples:
		if ok {
			metrics.UpdateQueueSize(len(q.samples))
		}
		return s, ok
	case <-timer.C:
		return model.Sample{}, false
	case <-ctx.Done():
		return model.Sample{}, false
	}
}

// Len returns the number of queued samples.
func (q *SampleQueue) Len() int {
	return len(q.samples)
}

// Capacity returns the queue bound.
func (q *SampleQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue. Consumers drain what is left and then see ok=false.
func (q *SampleQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.samples)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *SampleQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

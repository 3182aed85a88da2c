package queue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/okian/gazetrack/internal/domain/model"
)

func sample(i int) model.Sample {
	return model.Sample{Timestamp: strconv.Itoa(i), Avg: model.Position{X: float64(i), Y: 1}}
}

func TestSampleQueue_BasicOperations(t *testing.T) {
	q := NewSampleQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}

	if !q.Enqueue(ctx, sample(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	s, ok := q.Pop(ctx, 0)
	if !ok || s.Timestamp != "1" {
		t.Errorf("expected sample 1, got %v (ok=%v)", s.Timestamp, ok)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestSampleQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewSampleQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if !q.Enqueue(ctx, sample(i)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if l := q.Len(); l != 2 {
		t.Fatalf("expected length 2, got %d", l)
	}

	first, _ := q.Pop(ctx, 0)
	second, _ := q.Pop(ctx, 0)
	if first.Timestamp != "2" || second.Timestamp != "3" {
		t.Errorf("expected samples 2 and 3, got %s and %s", first.Timestamp, second.Timestamp)
	}
}

func TestSampleQueue_PopWaits(t *testing.T) {
	q := NewSampleQueue()
	ctx := context.Background()

	start := time.Now()
	if _, ok := q.Pop(ctx, 20*time.Millisecond); ok {
		t.Fatal("expected timeout on empty queue")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("pop returned too early: %v", elapsed)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(ctx, sample(7))
	}()
	s, ok := q.Pop(ctx, time.Second)
	if !ok || s.Timestamp != "7" {
		t.Errorf("expected sample 7, got %v (ok=%v)", s.Timestamp, ok)
	}
}

func TestSampleQueue_Cancellation(t *testing.T) {
	q := NewSampleQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, sample(1)) {
		t.Error("expected enqueue to fail with cancelled context")
	}
	if _, ok := q.Pop(ctx, time.Second); ok {
		t.Error("expected pop to fail with cancelled context")
	}
}

func TestSampleQueue_Close(t *testing.T) {
	q := NewSampleQueue()
	ctx := context.Background()

	q.Enqueue(ctx, sample(1))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, sample(2)) {
		t.Error("expected enqueue to fail after close")
	}

	if s, ok := q.Pop(ctx, 0); !ok || s.Timestamp != "1" {
		t.Errorf("expected queued sample to drain, got %v (ok=%v)", s.Timestamp, ok)
	}
	if _, ok := q.Pop(ctx, time.Second); ok {
		t.Error("expected drained closed queue to report ok=false")
	}
}

func TestSampleQueue_ConcurrentAccess(t *testing.T) {
	q := NewSampleQueue(WithCapacity(1000))
	ctx := context.Background()

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(ctx, sample(p*perProducer+i))
			}
		}(p)
	}
	wg.Wait()

	got := 0
	for {
		if _, ok := q.Pop(ctx, 0); !ok {
			break
		}
		got++
	}
	if got != producers*perProducer {
		t.Errorf("expected %d samples, got %d", producers*perProducer, got)
	}
}

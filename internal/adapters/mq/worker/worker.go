package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/internal/tracker"
	"github.com/okian/gazetrack/pkg/logger"
	"github.com/okian/gazetrack/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultPopWait      = 10 * time.Millisecond
	minProducerInterval = time.Millisecond
	poolShutdownTimeout = 5 * time.Second
)

// Worker is a background loop.
type Worker interface {
	// Run blocks until Shutdown is called or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown asks the loop to stop and waits for it.
	Shutdown(ctx context.Context) error
}

// Beater is the device side of the heartbeat.
type Beater interface {
	Heartbeat(ctx context.Context) error
	Calibrating() bool
}

// Poller is the device side of the producer.
type Poller interface {
	Poll(ctx context.Context) (model.Sample, error)
}

// Queue is the hand-off between producer and consumer.
type Queue interface {
	Enqueue(ctx context.Context, s model.Sample) bool
	Pop(ctx context.Context, wait time.Duration) (model.Sample, bool)
}

// Publisher receives samples from the consumer. Publish reports whether the
// sample was new.
type Publisher interface {
	Publish(s model.Sample) bool
}

// Sink persists published samples while recording is on.
type Sink interface {
	WriteSample(s model.Sample) error
}

// loop carries the shutdown plumbing shared by all workers.
type loop struct {
	settings
	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once
	started  atomic.Bool
}

func (l *loop) init(s settings) {
	l.settings = s
	l.shutdown = make(chan struct{})
	l.done = make(chan struct{})
}

// begin marks the loop as running. It returns false if Run was already called.
func (l *loop) begin() bool {
	return l.started.CompareAndSwap(false, true)
}

// sleep waits for d, returning false if the loop should stop instead.
func (l *loop) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-l.shutdown:
		return false
	case <-timer.C:
		return true
	}
}

func (l *loop) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.shutdown:
		return true
	default:
		return false
	}
}

// Shutdown signals the loop and waits for it to finish.
func (l *loop) Shutdown(ctx context.Context) error {
	l.once.Do(func() { close(l.shutdown) })
	if !l.started.Load() {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%s shutdown timed out: %w", l.name, ctx.Err())
	}
}

// HeartbeatState is the keeper's state.
type HeartbeatState int32

// Heartbeat keeper states.
const (
	Stopped HeartbeatState = iota
	Beating
)

func (s HeartbeatState) String() string {
	if s == Beating {
		return "beating"
	}
	return "stopped"
}

// HeartbeatStats counts heartbeat attempts.
type HeartbeatStats struct {
	Sent    int64
	Failed  int64
	Skipped int64
}

// Heartbeat keeps the device session alive. A failed beat is logged and
// retried on the next tick; beats are skipped while the device calibrates.
type Heartbeat struct {
	loop
	device   Beater
	interval time.Duration
	state    atomic.Int32

	sent, failed, skipped atomic.Int64
}

// NewHeartbeat creates a keeper beating every interval. An interval of zero
// makes Run return at once.
func NewHeartbeat(device Beater, interval time.Duration, opts ...Option) *Heartbeat {
	h := &Heartbeat{
		device:   device,
		interval: interval,
	}
	h.init(apply("heartbeat", opts))
	return h
}

// Run beats until shutdown.
func (h *Heartbeat) Run(ctx context.Context) {
	if !h.begin() {
		return
	}
	defer close(h.done)

	if h.interval <= 0 {
		h.logger.Debug(ctx, "heartbeat disabled")
		return
	}

	h.state.Store(int32(Beating))
	defer h.state.Store(int32(Stopped))

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if h.device.Calibrating() {
		h.skipped.Add(1)
		metrics.RecordHeartbeat("skipped")
		return
	}
	if err := h.device.Heartbeat(ctx); err != nil {
		n := h.failed.Add(1)
		metrics.RecordHeartbeat("failed")
		h.logger.Warn(ctx, "heartbeat failed", logger.Int64("failures", n), logger.Error(err))
		return
	}
	h.sent.Add(1)
	metrics.RecordHeartbeat("ok")
}

// State returns Beating while Run is looping.
func (h *Heartbeat) State() HeartbeatState { return HeartbeatState(h.state.Load()) }

// Stats returns the attempt counters.
func (h *Heartbeat) Stats() HeartbeatStats {
	return HeartbeatStats{Sent: h.sent.Load(), Failed: h.failed.Load(), Skipped: h.skipped.Load()}
}

// Producer polls the device at twice its sample rate and queues every
// sample. The consumer drops the duplicates.
type Producer struct {
	loop
	device   Poller
	queue    Queue
	interval time.Duration

	polled, errs atomic.Int64
}

// NewProducer creates a producer for a device delivering one sample per
// sampleInterval.
func NewProducer(device Poller, q Queue, sampleInterval time.Duration, opts ...Option) *Producer {
	interval := sampleInterval / 2
	if interval < minProducerInterval {
		interval = minProducerInterval
	}
	p := &Producer{
		device:   device,
		queue:    q,
		interval: interval,
	}
	p.init(apply("producer", opts))
	return p
}

// Run polls until shutdown.
func (p *Producer) Run(ctx context.Context) {
	if !p.begin() {
		return
	}
	defer close(p.done)

	for !p.stopping(ctx) {
		s, err := p.device.Poll(ctx)
		switch {
		case err == nil:
			p.polled.Add(1)
			metrics.RecordSamplePolled()
			p.queue.Enqueue(ctx, s)
		case errors.Is(err, tracker.ErrNoSample):
			p.errs.Add(1)
			metrics.RecordSamplePollError()
			p.logger.Debug(ctx, "no sample", logger.Error(err))
		default:
			p.errs.Add(1)
			metrics.RecordSamplePollError()
			p.logger.Warn(ctx, "poll failed", logger.Error(err))
		}
		if !p.sleep(ctx, p.interval) {
			return
		}
	}
}

// Interval returns the time between polls.
func (p *Producer) Interval() time.Duration { return p.interval }

// Polled returns the number of successful and failed polls.
func (p *Producer) Polled() (ok, failed int64) { return p.polled.Load(), p.errs.Load() }

// Consumer drains the queue into the publisher and, while recording, into
// the sink.
type Consumer struct {
	loop
	queue     Queue
	publisher Publisher
	sink      Sink
	recording atomic.Bool

	published, logged atomic.Int64
}

// NewConsumer creates a consumer. sink may be nil.
func NewConsumer(q Queue, pub Publisher, sink Sink, opts ...Option) *Consumer {
	c := &Consumer{
		queue:     q,
		publisher: pub,
		sink:      sink,
	}
	c.init(apply("consumer", opts))
	return c
}

// SetRecording toggles writing published samples to the sink.
func (c *Consumer) SetRecording(on bool) {
	c.recording.Store(on)
	metrics.UpdateRecording(on)
}

// Recording reports whether samples are written to the sink.
func (c *Consumer) Recording() bool { return c.recording.Load() }

// Run consumes until shutdown.
func (c *Consumer) Run(ctx context.Context) {
	if !c.begin() {
		return
	}
	defer close(c.done)

	for !c.stopping(ctx) {
		s, ok := c.queue.Pop(ctx, c.wait)
		if !ok {
			continue
		}
		c.process(ctx, s)
	}
}

func (c *Consumer) process(ctx context.Context, s model.Sample) { //nolint:gocritic // hugeParam: samples are passed by value
	if !c.publisher.Publish(s) {
		return
	}
	c.published.Add(1)
	if c.clock != nil {
		metrics.RecordPublishLatency(float64(c.clock.Now() - s.Time))
	}

	if c.sink == nil || !c.recording.Load() {
		return
	}
	if err := c.sink.WriteSample(s); err != nil {
		metrics.RecordLogWriteError()
		c.logger.Error(ctx, "write sample failed", logger.String("timestamp", s.Timestamp), logger.Error(err))
		return
	}
	c.logged.Add(1)
	metrics.RecordSampleLogged()
}

// Counts returns the number of published and logged samples.
func (c *Consumer) Counts() (published, logged int64) { return c.published.Load(), c.logged.Load() }

// Pool runs a fixed set of workers.
type Pool struct {
	workers []Worker
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool groups workers.
func NewPool(l logger.Logger, workers ...Worker) *Pool {
	if l == nil {
		l = logger.Nop()
	}
	return &Pool{workers: workers, logger: l.Named("pool")}
}

// Start launches every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown stops all workers and waits for them to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	p.wg.Wait()
	return errors.Join(errs...)
}

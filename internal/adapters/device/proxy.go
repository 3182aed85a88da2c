// Package device issues correlated request/response calls to a network eye
// tracker.
package device

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gazetrack/internal/adapters/protocol"
	"github.com/okian/gazetrack/pkg/logger"
	"github.com/okian/gazetrack/pkg/metrics"
)

// Link is the byte stream under the proxy. *transport.Conn implements it.
type Link interface {
	Send(b []byte) error
	Receive(wait time.Duration) ([]byte, error)
	Reconnect(ctx context.Context) error
	Close() error
}

// Proxy serializes requests over one Link. Responses are correlated by
// scanning a pending list for the first entry with the same category and,
// except for heartbeats, the same request name. Responses nobody asked for
// yet stay pending for a later call.
type Proxy struct {
	mu      sync.Mutex
	link    Link
	dec     *protocol.Decoder
	pending []protocol.Response

	grace      time.Duration
	maxWait    time.Duration
	maxPending int
	notify     func(protocol.Response)
	log        logger.Logger

	calibrating atomic.Bool
}

// NewProxy wraps link.
func NewProxy(link Link, opts ...Option) *Proxy {
	p := &Proxy{
		link:       link,
		dec:        protocol.NewDecoder(),
		grace:      DefaultGrace,
		maxWait:    DefaultMaxWait,
		maxPending: DefaultMaxPending,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request sends one request and returns its response. It never returns an
// error: a broken link yields a 901 response after reconnecting, and a
// request nobody answers within the max wait yields a 902 response.
func (p *Proxy) Request(ctx context.Context, category, request string, values any) protocol.Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	resp := p.roundTrip(ctx, category, request, values)
	p.observe(category, request, resp)

	metrics.RecordDeviceRequest(category, request, strconv.Itoa(resp.StatusCode),
		float64(time.Since(start).Microseconds())/1000)
	return resp
}

func (p *Proxy) roundTrip(ctx context.Context, category, request string, values any) protocol.Response {
	line, err := protocol.Encode(protocol.Request{Category: category, Request: request, Values: values})
	if err != nil {
		p.log.Error(ctx, "encode request failed",
			logger.String("category", category),
			logger.String("request", request),
			logger.Error(err))
		return protocol.Synthetic(category, request, 400, err.Error())
	}

	if err := p.link.Send(line); err != nil {
		return p.fail(ctx, category, request, err)
	}

	if p.grace > 0 {
		timer := time.NewTimer(p.grace)
		select {
		case <-ctx.Done():
			timer.Stop()
			return protocol.NoResponse(category, request)
		case <-timer.C:
		}
	}

	deadline := time.Now().Add(p.maxWait)
	slice := p.grace
	if slice <= 0 {
		slice = DefaultGrace
	}
	for {
		data, err := p.link.Receive(slice)
		if err != nil {
			return p.fail(ctx, category, request, err)
		}
		if len(data) > 0 {
			p.enqueue(ctx, p.dec.Feed(data))
		}
		if resp, ok := p.take(category, request); ok {
			return resp
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			metrics.RecordNoResponse()
			p.log.Debug(ctx, "no response within max wait",
				logger.String("category", category),
				logger.String("request", request),
				logger.Duration("max_wait", p.maxWait))
			return protocol.NoResponse(category, request)
		}
	}
}

// fail reconnects after a link error and builds the 901 response.
func (p *Proxy) fail(ctx context.Context, category, request string, cause error) protocol.Response {
	metrics.RecordConnectionError()
	p.log.Warn(ctx, "device link failed, reconnecting",
		logger.String("category", category),
		logger.String("request", request),
		logger.Error(cause))

	p.dec.Reset()
	if err := p.link.Reconnect(ctx); err != nil {
		p.log.Warn(ctx, "reconnect failed", logger.Error(err))
	}

	resp := protocol.ConnectionError(cause.Error())
	resp.Category = category
	resp.Request = request
	return resp
}

// enqueue appends decoded responses to the pending list, dropping the
// oldest entries past the bound.
func (p *Proxy) enqueue(ctx context.Context, in []protocol.Response) {
	for _, r := range in {
		if r.IsNotification() {
			p.log.Debug(ctx, "device notification",
				logger.String("category", r.Category),
				logger.Int("statuscode", r.StatusCode))
			if p.notify != nil {
				p.notify(r)
			}
			continue
		}
		p.pending = append(p.pending, r)
	}
	for len(p.pending) > p.maxPending {
		p.pending = p.pending[1:]
		metrics.RecordPendingDropped()
	}
	metrics.UpdatePendingResponses(len(p.pending))
}

// take pops the first pending response matching category and request.
func (p *Proxy) take(category, request string) (protocol.Response, bool) {
	for i, r := range p.pending {
		if r.Category != category {
			continue
		}
		if category != protocol.CategoryHeartbeat && r.Request != request {
			continue
		}
		p.pending = append(p.pending[:i], p.pending[i+1:]...)
		metrics.UpdatePendingResponses(len(p.pending))
		return r, true
	}
	return protocol.Response{}, false
}

// observe tracks the device calibration state from calibration traffic.
func (p *Proxy) observe(category, request string, resp protocol.Response) {
	if category != protocol.CategoryCalibration || !resp.OK() {
		return
	}
	switch request {
	case "start":
		p.calibrating.Store(true)
	case "abort", "clear":
		p.calibrating.Store(false)
	case "pointend":
		if _, done := resp.Values["calibresult"]; done {
			p.calibrating.Store(false)
		}
	}
}

// Calibrating reports whether a calibration started through this proxy is
// still running.
func (p *Proxy) Calibrating() bool { return p.calibrating.Load() }

// Pending returns the number of unmatched responses held.
func (p *Proxy) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Reconnect re-establishes the link. Pending responses are kept.
func (p *Proxy) Reconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dec.Reset()
	return p.link.Reconnect(ctx)
}

// Close closes the link.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.link.Close()
}

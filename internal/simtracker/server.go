// Package simtracker is a simulated network eye tracker. It speaks the
// device protocol over TCP and serves frames from a gaze generator, so the
// client stack can run without hardware.
package simtracker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gazetrack/internal/adapters/protocol"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/pkg/logger"
)

// Device state bits reported in frames.
const (
	stateTracking = 0x7
	stateLost     = 0x10
)

const maxLine = 64 * 1024

// Server is a simulated tracker.
type Server struct {
	cfg Config
	id  string
	log logger.Logger

	ln    net.Listener
	start time.Time
	wg    sync.WaitGroup

	mu             sync.Mutex
	conns          map[net.Conn]struct{}
	stats          Stats
	calibrating    bool
	remaining      int
	points         []model.Position
	failHeartbeats int
	closed         bool
}

// New creates a Server. Call Start to listen.
func New(opts ...Option) *Server {
	cfg := Config{
		Addr:              "127.0.0.1:0",
		FrameRate:         DefaultFrameRate,
		HeartbeatInterval: DefaultHeartbeatInterval,
		ScreenW:           DefaultScreenW,
		ScreenH:           DefaultScreenH,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Gaze == nil {
		cfg.Gaze = Synthetic(cfg.ScreenW, cfg.ScreenH)
	}
	return &Server{
		cfg:   cfg,
		id:    uuid.New().String(),
		log:   logger.Nop(),
		conns: make(map[net.Conn]struct{}),
	}
}

// SetLogger replaces the logger.
func (s *Server) SetLogger(l logger.Logger) {
	if l != nil {
		s.log = l
	}
}

// Start begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.start = time.Now()

	s.wg.Add(1)
	go s.accept(ctx)

	s.log.Info(ctx, "simulated tracker listening",
		logger.String("addr", ln.Addr().String()),
		logger.String("session", s.id),
		logger.Int("framerate", s.cfg.FrameRate))
	return nil
}

// Run starts the server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// HostPort returns the listen address split for a client.
func (s *Server) HostPort() (string, int) {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return "", 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

func (s *Server) accept(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn(ctx, "accept failed", logger.Error(err))
			}
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.stats.Connections++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	for sc.Scan() {
		req, err := protocol.DecodeRequest(sc.Bytes())
		if err != nil {
			s.mu.Lock()
			s.stats.Malformed++
			s.mu.Unlock()
			s.log.Debug(ctx, "malformed request", logger.Error(err))
			continue
		}
		if s.cfg.Verbose {
			s.log.Debug(ctx, "request",
				logger.String("category", req.Category),
				logger.String("request", req.Request))
		}

		resp, ok := s.respond(req)
		if !ok {
			continue
		}
		line, err := protocol.EncodeResponse(resp)
		if err != nil {
			s.log.Error(ctx, "encode response failed", logger.Error(err))
			continue
		}
		if _, err := conn.Write(line); err != nil {
			return
		}
	}
}

// respond builds the answer to req. ok is false when the request is
// deliberately left unanswered.
func (s *Server) respond(req protocol.Request) (resp protocol.Response, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Requests++

	switch req.Category {
	case protocol.CategoryHeartbeat:
		if s.failHeartbeats > 0 {
			s.failHeartbeats--
			return resp, false
		}
		s.stats.Heartbeats++
		return protocol.Response{Category: req.Category, StatusCode: protocol.StatusOK}, true

	case protocol.CategoryTracker:
		switch req.Request {
		case "get":
			return s.get(req), true
		case "set":
			return reply(req, protocol.StatusOK, nil), true
		}

	case protocol.CategoryCalibration:
		return s.calibration(req), true
	}
	return reply(req, 400, map[string]any{"statusmessage": "unknown request"}), true
}

func (s *Server) get(req protocol.Request) protocol.Response {
	values := map[string]any{}
	for _, key := range keys(req.Values) {
		switch key {
		case "heartbeatinterval":
			values[key] = s.cfg.HeartbeatInterval.Milliseconds()
		case "framerate":
			values[key] = s.cfg.FrameRate
		case "screenresw":
			values[key] = s.cfg.ScreenW
		case "screenresh":
			values[key] = s.cfg.ScreenH
		case "iscalibrated":
			values[key] = s.stats.Calibrated > 0
		case "iscalibrating":
			values[key] = s.calibrating
		case "push":
			values[key] = false
		case "version":
			values[key] = 1
		case "frame":
			s.stats.Frames++
			values[key] = s.frame()
		}
	}
	return reply(req, protocol.StatusOK, values)
}

func (s *Server) frame() map[string]any {
	period := time.Second / time.Duration(s.cfg.FrameRate)
	n := int64(time.Since(s.start) / period)
	ts := s.start.Add(time.Duration(n) * period)

	gaze := s.cfg.Gaze(n)
	state := stateTracking
	if gaze.IsMissing() {
		gaze = model.Position{}
		state = stateLost
	}
	pt := map[string]float64{"x": gaze.X, "y": gaze.Y}
	eye := map[string]any{
		"raw":     pt,
		"avg":     pt,
		"psize":   21.5,
		"pcenter": map[string]float64{"x": 0.5, "y": 0.5},
	}
	return map[string]any{
		"timestamp": ts.Format("2006-01-02 15:04:05.000"),
		"time":      ts.Sub(s.start).Milliseconds(),
		"fix":       false,
		"state":     state,
		"raw":       pt,
		"avg":       pt,
		"lefteye":   eye,
		"righteye":  eye,
	}
}

func (s *Server) calibration(req protocol.Request) protocol.Response {
	params, _ := req.Values.(protocol.Params)
	switch req.Request {
	case "start":
		if s.calibrating {
			return reply(req, 403, map[string]any{"statusmessage": "calibration already running"})
		}
		n, _ := params.Get("pointcount")
		count, _ := n.(float64)
		if count < 1 {
			return reply(req, 400, map[string]any{"statusmessage": "pointcount required"})
		}
		s.calibrating = true
		s.remaining = int(count)
		s.points = s.points[:0]
		return reply(req, protocol.StatusOK, nil)

	case "pointstart":
		if !s.calibrating {
			return reply(req, 403, map[string]any{"statusmessage": "calibration not started"})
		}
		x, _ := params.Get("x")
		y, _ := params.Get("y")
		fx, _ := x.(float64)
		fy, _ := y.(float64)
		s.points = append(s.points, model.Position{X: fx, Y: fy})
		return reply(req, protocol.StatusOK, nil)

	case "pointend":
		if !s.calibrating {
			return reply(req, 403, map[string]any{"statusmessage": "calibration not started"})
		}
		s.remaining--
		if s.remaining > 0 {
			return reply(req, protocol.StatusOK, nil)
		}
		s.calibrating = false
		s.stats.Calibrated++
		return reply(req, protocol.StatusOK, map[string]any{"calibresult": s.result()})

	case "abort", "clear":
		s.calibrating = false
		s.remaining = 0
		return reply(req, protocol.StatusOK, nil)
	}
	return reply(req, 400, map[string]any{"statusmessage": "unknown calibration request"})
}

func (s *Server) result() map[string]any {
	points := make([]map[string]any, 0, len(s.points))
	for _, p := range s.points {
		points = append(points, map[string]any{
			"state": int(model.PointOK),
			"cp":    map[string]float64{"x": p.X, "y": p.Y},
			"mecp":  map[string]float64{"x": p.X + 3, "y": p.Y - 2},
			"acd":   map[string]float64{"ad": 0.4, "adl": 0.5, "adr": 0.3},
			"mepix": map[string]float64{"mep": 3.6, "mepl": 4.1, "mepr": 3.1},
			"asdp":  map[string]float64{"asd": 1.2, "asdl": 1.4, "asdr": 1.0},
		})
	}
	return map[string]any{
		"result":      true,
		"deg":         0.4,
		"degl":        0.5,
		"degr":        0.3,
		"calibpoints": points,
	}
}

// keys lists the names in a get request.
func keys(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, k := range list {
			if s, ok := k.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func reply(req protocol.Request, code int, values map[string]any) protocol.Response {
	resp := protocol.Response{Category: req.Category, Request: req.Request, StatusCode: code}
	if len(values) == 0 {
		return resp
	}
	resp.Values = make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		resp.Values[k] = raw
	}
	return resp
}

// FailHeartbeats leaves the next n heartbeats unanswered.
func (s *Server) FailHeartbeats(n int) {
	s.mu.Lock()
	s.failHeartbeats = n
	s.mu.Unlock()
}

// DropConnections closes every client connection. The listener stays up so
// clients can reconnect.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Calibrating reports whether a client calibration is in progress.
func (s *Server) Calibrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrating
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops the listener, closes all connections and waits for them.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.wg.Wait()
	return err
}

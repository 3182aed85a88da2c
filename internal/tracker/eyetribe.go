package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gazetrack/internal/adapters/device"
	"github.com/okian/gazetrack/internal/adapters/protocol"
	"github.com/okian/gazetrack/internal/adapters/transport"
	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/pkg/logger"
)

// eyeTribe talks to an EyeTribe server over its JSON protocol.
type eyeTribe struct {
	cfg config

	mu    sync.RWMutex
	proxy *device.Proxy
}

func newEyeTribe(cfg config) *eyeTribe {
	return &eyeTribe{cfg: cfg}
}

func (t *eyeTribe) Kind() Kind { return EyeTribe }

func (t *eyeTribe) Open(ctx context.Context) (Info, error) {
	conn, err := transport.Dial(ctx, t.cfg.host, t.cfg.port, t.cfg.transportOps...)
	if err != nil {
		return Info{}, err
	}
	opts := append([]device.Option{device.WithLogger(t.cfg.log.Named("proxy"))}, t.cfg.proxyOps...)
	p := device.NewProxy(conn, opts...)

	set := p.Request(ctx, protocol.CategoryTracker, "set", protocol.Params{
		{Key: "push", Value: false},
		{Key: "version", Value: 1},
	})
	if !set.OK() {
		_ = p.Close()
		return Info{}, fmt.Errorf("configure tracker: %d %s", set.StatusCode, set.StatusMessage())
	}

	get := p.Request(ctx, protocol.CategoryTracker, "get",
		[]string{"heartbeatinterval", "framerate", "screenresw", "screenresh", "iscalibrated"})
	if !get.OK() {
		_ = p.Close()
		return Info{}, fmt.Errorf("read tracker settings: %d %s", get.StatusCode, get.StatusMessage())
	}

	var hbMs, rate, w, h int
	for key, dst := range map[string]*int{
		"heartbeatinterval": &hbMs,
		"framerate":         &rate,
		"screenresw":        &w,
		"screenresh":        &h,
	} {
		if err := get.Value(key, dst); err != nil {
			t.cfg.log.Warn(ctx, "tracker setting missing", logger.String("key", key), logger.Error(err))
		}
	}
	var calibrated bool
	_ = get.Value("iscalibrated", &calibrated)

	t.mu.Lock()
	t.proxy = p
	t.mu.Unlock()

	info := Info{
		SampleRateHz:      rate,
		HeartbeatInterval: time.Duration(hbMs) * time.Millisecond,
		ScreenW:           w,
		ScreenH:           h,
		FixationPolicy:    detect.Euclidean,
	}
	t.cfg.log.Info(ctx, "tracker opened",
		logger.String("addr", conn.Addr()),
		logger.Int("framerate", rate),
		logger.Int("heartbeat_ms", hbMs),
		logger.Bool("calibrated", calibrated))
	return info, nil
}

func (t *eyeTribe) request(ctx context.Context, category, request string, values any) (protocol.Response, error) {
	t.mu.RLock()
	p := t.proxy
	t.mu.RUnlock()
	if p == nil {
		return protocol.Response{}, ErrNotOpen
	}
	return p.Request(ctx, category, request, values), nil
}

func (t *eyeTribe) Poll(ctx context.Context) (model.Sample, error) {
	resp, err := t.request(ctx, protocol.CategoryTracker, "get", []string{"frame"})
	if err != nil {
		return model.Sample{}, err
	}
	if !resp.OK() {
		return model.Sample{}, fmt.Errorf("%w: %d %s", ErrNoSample, resp.StatusCode, resp.StatusMessage())
	}
	var f frame
	if err := resp.Value("frame", &f); err != nil {
		return model.Sample{}, fmt.Errorf("%w: %v", ErrNoSample, err)
	}
	return f.sample(t.cfg.clock.Now()), nil
}

func (t *eyeTribe) Heartbeat(ctx context.Context) error {
	resp, err := t.request(ctx, protocol.CategoryHeartbeat, "", nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %d %s", ErrHeartbeat, resp.StatusCode, resp.StatusMessage())
	}
	return nil
}

func (t *eyeTribe) Calibrating() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.proxy != nil && t.proxy.Calibrating()
}

func (t *eyeTribe) Close() error {
	t.mu.Lock()
	p := t.proxy
	t.proxy = nil
	t.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}

func (t *eyeTribe) calibration(ctx context.Context, request string, values any) (protocol.Response, error) {
	resp, err := t.request(ctx, protocol.CategoryCalibration, request, values)
	if err != nil {
		return resp, err
	}
	if !resp.OK() {
		return resp, fmt.Errorf("%w: %s: %d %s", ErrCalibration, request, resp.StatusCode, resp.StatusMessage())
	}
	return resp, nil
}

func (t *eyeTribe) StartCalibration(ctx context.Context, points int) error {
	_, err := t.calibration(ctx, "start", protocol.Params{{Key: "pointcount", Value: points}})
	return err
}

func (t *eyeTribe) PointStart(ctx context.Context, p model.Position) error {
	_, err := t.calibration(ctx, "pointstart", protocol.Params{
		{Key: "x", Value: int(p.X)},
		{Key: "y", Value: int(p.Y)},
	})
	return err
}

func (t *eyeTribe) PointEnd(ctx context.Context) (*model.CalibrationResult, error) {
	resp, err := t.calibration(ctx, "pointend", nil)
	if err != nil {
		return nil, err
	}
	var cr calibResult
	if err := resp.Value("calibresult", &cr); err != nil {
		// more points to go
		return nil, nil //nolint:nilerr // absent result is the normal case
	}
	res := cr.result()
	return &res, nil
}

func (t *eyeTribe) AbortCalibration(ctx context.Context) error {
	_, err := t.calibration(ctx, "abort", nil)
	return err
}

func (t *eyeTribe) ClearCalibration(ctx context.Context) error {
	_, err := t.calibration(ctx, "clear", nil)
	return err
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p point) pos() model.Position { return model.Position{X: p.X, Y: p.Y} }

type eye struct {
	Raw     point   `json:"raw"`
	Avg     point   `json:"avg"`
	PSize   float64 `json:"psize"`
	PCenter point   `json:"pcenter"`
}

func (e eye) model() model.Eye {
	return model.Eye{Raw: e.Raw.pos(), Avg: e.Avg.pos(), PupilCenter: e.PCenter.pos(), PupilSize: e.PSize}
}

// frame is the "frame" value of a tracker/get response.
type frame struct {
	Timestamp string `json:"timestamp"`
	Time      int64  `json:"time"`
	Fix       bool   `json:"fix"`
	State     int    `json:"state"`
	Raw       point  `json:"raw"`
	Avg       point  `json:"avg"`
	LeftEye   eye    `json:"lefteye"`
	RightEye  eye    `json:"righteye"`
}

func (f frame) sample(now int64) model.Sample {
	return model.Sample{
		Timestamp: f.Timestamp,
		Time:      now,
		Fix:       f.Fix,
		State:     f.State,
		Raw:       f.Raw.pos(),
		Avg:       f.Avg.pos(),
		PupilSize: pupil(f.LeftEye.PSize, f.RightEye.PSize),
		Left:      f.LeftEye.model(),
		Right:     f.RightEye.model(),
	}
}

// pupil averages the eyes that reported a pupil.
func pupil(l, r float64) float64 {
	switch {
	case l > 0 && r > 0:
		return (l + r) / 2
	case l > 0:
		return l
	default:
		return r
	}
}

type calibPoint struct {
	State int   `json:"state"`
	CP    point `json:"cp"`
	MECP  point `json:"mecp"`
	ACD   struct {
		AD  float64 `json:"ad"`
		ADL float64 `json:"adl"`
		ADR float64 `json:"adr"`
	} `json:"acd"`
	MEPix struct {
		MEP  float64 `json:"mep"`
		MEPL float64 `json:"mepl"`
		MEPR float64 `json:"mepr"`
	} `json:"mepix"`
	ASDP struct {
		ASD  float64 `json:"asd"`
		ASDL float64 `json:"asdl"`
		ASDR float64 `json:"asdr"`
	} `json:"asdp"`
}

type calibResult struct {
	Result bool              `json:"result"`
	Deg    float64           `json:"deg"`
	DegL   float64           `json:"degl"`
	DegR   float64           `json:"degr"`
	Points []json.RawMessage `json:"calibpoints"`
}

func (c calibResult) result() model.CalibrationResult {
	res := model.CalibrationResult{
		Success:       c.Result,
		MeanErrorDeg:  c.Deg,
		LeftErrorDeg:  c.DegL,
		RightErrorDeg: c.DegR,
	}
	for _, raw := range c.Points {
		var cp calibPoint
		if err := json.Unmarshal(raw, &cp); err != nil {
			continue
		}
		res.Points = append(res.Points, model.CalibrationPoint{
			State:       model.PointState(cp.State),
			Target:      cp.CP.pos(),
			Estimated:   cp.MECP.pos(),
			AccuracyDeg: model.EyeTriple{Avg: cp.ACD.AD, Left: cp.ACD.ADL, Right: cp.ACD.ADR},
			PixelError:  model.EyeTriple{Avg: cp.MEPix.MEP, Left: cp.MEPix.MEPL, Right: cp.MEPix.MEPR},
			PixelStdDev: model.EyeTriple{Avg: cp.ASDP.ASD, Left: cp.ASDP.ASDL, Right: cp.ASDP.ASDR},
		})
	}
	return res
}

// Package session ties a tracker, the sample pipeline, the event detector
// and the data log into one experiment session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gazetrack/internal/adapters/logfile"
	"github.com/okian/gazetrack/internal/adapters/mq/queue"
	"github.com/okian/gazetrack/internal/adapters/mq/worker"
	"github.com/okian/gazetrack/internal/domain/calibration"
	"github.com/okian/gazetrack/internal/domain/current"
	"github.com/okian/gazetrack/internal/domain/dedupe"
	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/internal/tracker"
	"github.com/okian/gazetrack/pkg/clock"
	"github.com/okian/gazetrack/pkg/logger"
	"github.com/okian/gazetrack/pkg/metrics"
)

const (
	defaultQueueSize    = 64
	defaultPointDwell   = time.Second
	defaultNoiseSamples = 60

	defaultScreenWidthCm     = 39.9
	defaultViewingDistanceCm = 57.0

	// blinkAfterMs is how long gaze must be missing before a device without
	// a blink flag is considered to be blinking.
	blinkAfterMs = 150

	fixationStyle = "fixtarget"
)

// Session is one tracking session. Start it once and Close it once; every
// other method is safe for concurrent use, except that each Detector built
// on the session belongs to a single caller goroutine.
type Session struct {
	mu sync.RWMutex

	id           string
	device       tracker.Device
	info         tracker.Info
	clock        clock.Clock
	logPath      string
	queueSize    int
	dedupeWindow int
	geometry     calibration.Geometry
	settings     calibration.Settings
	policy       detect.FixationPolicy
	policySet    bool
	noiseX       float64
	noiseY       float64
	thresholds   detect.Thresholds
	display      calibration.Display
	keyboard     calibration.Keyboard
	pointDwell   time.Duration
	noiseSamples int

	log       *logfile.File
	queue     *queue.SampleQueue
	holder    *current.Holder
	heartbeat *worker.Heartbeat
	producer  *worker.Producer
	consumer  *worker.Consumer
	pool      *worker.Pool
	cancel    context.CancelFunc

	recMu sync.Mutex

	blinkMu      sync.Mutex
	missingSince int64
	missing      bool

	started bool
	closed  bool

	logger logger.Logger
}

// New constructs a Session. The device is opened by Start.
func New(opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		clock:        clock.New(),
		queueSize:    defaultQueueSize,
		dedupeWindow: dedupe.DefaultWindow,
		geometry:     calibration.Geometry{ScreenWidthCm: defaultScreenWidthCm, ViewingDistanceCm: defaultViewingDistanceCm},
		settings:     calibration.DefaultSettings(),
		pointDwell:   defaultPointDwell,
		noiseSamples: defaultNoiseSamples,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session")
	return s
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// Start opens the device and the data log and launches the heartbeat,
// producer and consumer loops.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	if s.device == nil {
		return fmt.Errorf("%w: no device", tracker.ErrUnsupported)
	}

	info, err := s.device.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.device.Kind(), err)
	}
	s.info = info

	if s.geometry.ScreenResW <= 0 {
		s.geometry.ScreenResW = info.ScreenW
	}
	if s.geometry.SampleRateHz <= 0 {
		s.geometry.SampleRateHz = info.SampleRateHz
	}
	s.settings.Policy = info.FixationPolicy
	if s.policySet {
		s.settings.Policy = s.policy
	}
	th, err := calibration.Convert(s.geometry, s.settings, s.noiseX, s.noiseY)
	if err != nil {
		_ = s.device.Close()
		return err
	}
	s.thresholds = th

	var sink worker.Sink
	if s.logPath != "" {
		lf, err := logfile.Open(s.logPath)
		if err != nil {
			_ = s.device.Close()
			return err
		}
		s.log = lf
		sink = lf
	}

	s.queue = queue.NewSampleQueue(queue.WithCapacity(s.queueSize))
	s.holder = current.New(current.WithDeduper(dedupe.NewWindowDeduper(dedupe.WithWindow(s.dedupeWindow))))

	wopts := func(name string) []worker.Option {
		return []worker.Option{worker.WithName(name), worker.WithLogger(s.logger), worker.WithClock(s.clock)}
	}
	s.heartbeat = worker.NewHeartbeat(s.device, info.HeartbeatInterval, wopts("heartbeat")...)
	s.producer = worker.NewProducer(s.device, s.queue, info.SampleInterval(), wopts("producer")...)
	s.consumer = worker.NewConsumer(s.queue, s.holder, sink, wopts("consumer")...)
	s.pool = worker.NewPool(s.logger, s.heartbeat, s.producer, s.consumer)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "session started",
		logger.String("id", s.id),
		logger.String("tracker", s.device.Kind().String()),
		logger.Int("sample_rate_hz", info.SampleRateHz),
		logger.Duration("heartbeat_interval", info.HeartbeatInterval),
		logger.Float64("speed_px", th.SpeedPx),
		logger.Float64("fixation_px", th.FixationPx),
	)
	return nil
}

// ready returns the sample holder once the session runs.
func (s *Session) ready() (*current.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.closed:
		return nil, ErrClosed
	case !s.started:
		return nil, ErrNotStarted
	}
	return s.holder, nil
}

// Info describes the opened device.
func (s *Session) Info() tracker.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Latest returns a copy of the current sample.
func (s *Session) Latest() (model.Sample, bool) {
	h, err := s.ready()
	if err != nil {
		return model.Sample{}, false
	}
	smp, _, ok := h.Get()
	return smp, ok
}

// Sample returns the current gaze position, or model.Missing.
func (s *Session) Sample() model.Position {
	smp, ok := s.Latest()
	if !ok {
		return model.Missing
	}
	return smp.Gaze()
}

// PupilSize returns the current pupil size, or -1 when there is none.
func (s *Session) PupilSize() float64 {
	smp, ok := s.Latest()
	if !ok || smp.PupilSize <= 0 {
		return -1
	}
	return smp.PupilSize
}

// Seq returns the sequence number of the current sample.
func (s *Session) Seq() uint64 {
	h, err := s.ready()
	if err != nil {
		return 0
	}
	return h.Seq()
}

// NextSample blocks until a sample newer than afterSeq is published.
func (s *Session) NextSample(ctx context.Context, afterSeq uint64) (model.Sample, uint64, error) {
	h, err := s.ready()
	if err != nil {
		return model.Sample{}, 0, err
	}
	smp, seq, err := h.Next(ctx, afterSeq)
	if errors.Is(err, current.ErrClosed) {
		return model.Sample{}, seq, ErrClosed
	}
	return smp, seq, err
}

// Next returns the next reading for the event detector. Devices without a
// blink flag report a blink once gaze has been missing for 150 ms.
func (s *Session) Next(ctx context.Context, afterSeq uint64) (detect.Reading, error) {
	smp, seq, err := s.NextSample(ctx, afterSeq)
	if err != nil {
		return detect.Reading{}, err
	}
	r := detect.Reading{Seq: seq, Time: smp.Time, Pos: smp.Gaze(), Blink: smp.Blink}
	if !s.Info().BlinkFlag {
		r.Blink = s.derivedBlink(r)
	}
	return r, nil
}

func (s *Session) derivedBlink(r detect.Reading) bool {
	s.blinkMu.Lock()
	defer s.blinkMu.Unlock()
	if !r.Pos.IsMissing() {
		s.missing = false
		return false
	}
	if !s.missing {
		s.missing = true
		s.missingSince = r.Time
	}
	return r.Time-s.missingSince >= blinkAfterMs
}

// StartRecording starts writing published samples to the data log.
func (s *Session) StartRecording(ctx context.Context) error {
	return s.setRecording(ctx, true)
}

// StopRecording stops writing samples to the data log.
func (s *Session) StopRecording(ctx context.Context) error {
	return s.setRecording(ctx, false)
}

func (s *Session) setRecording(ctx context.Context, on bool) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	if _, err := s.ready(); err != nil {
		return err
	}
	if s.consumer.Recording() == on {
		return nil
	}
	s.logger.Info(ctx, "recording changed", logger.Bool("recording", on))

	// the markers bracket the sample lines
	if !on {
		s.consumer.SetRecording(false)
	}
	if s.log != nil {
		msg := "stop_recording"
		if on {
			msg = "start_recording"
		}
		if err := s.Log(msg); err != nil {
			return err
		}
	}
	if on {
		s.consumer.SetRecording(true)
	}
	return nil
}

// Recording reports whether samples are being logged.
func (s *Session) Recording() bool {
	if _, err := s.ready(); err != nil {
		return false
	}
	return s.consumer.Recording()
}

// Log writes a message line to the data log.
func (s *Session) Log(msg string) error {
	if _, err := s.ready(); err != nil {
		return err
	}
	if s.log == nil {
		return ErrNoLog
	}
	smp, _ := s.Latest()
	return s.log.WriteMessage(smp.Timestamp, s.clock.Now(), msg)
}

// LogVar writes "var name value" to the data log.
func (s *Session) LogVar(name string, value any) error {
	if _, err := s.ready(); err != nil {
		return err
	}
	if s.log == nil {
		return ErrNoLog
	}
	smp, _ := s.Latest()
	return s.log.WriteVar(smp.Timestamp, s.clock.Now(), name, value)
}

// Thresholds returns the detector thresholds in pixels per sample.
func (s *Session) Thresholds() detect.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// Detector returns a new event detector reading from the session with the
// current thresholds.
func (s *Session) Detector() *detect.Detector {
	return detect.New(s, s.Thresholds())
}

// WaitForEvent blocks until the next event of kind.
func (s *Session) WaitForEvent(ctx context.Context, kind model.EventKind) (model.EventRecord, error) {
	if _, err := s.ready(); err != nil {
		return model.EventRecord{}, err
	}
	return s.Detector().WaitForEvent(ctx, kind)
}

// Calibrate runs the device calibration over points, then measures the
// gaze noise on a central target and derives the detector thresholds from
// it. A calibration the device rejects, or one aborted from the keyboard,
// returns a result with Success false and no error; thresholds are left
// unchanged. Devices without their own calibration skip straight to the
// noise measurement.
func (s *Session) Calibrate(ctx context.Context, points []model.Position) (model.CalibrationResult, error) {
	if _, err := s.ready(); err != nil {
		return model.CalibrationResult{}, err
	}

	result := model.CalibrationResult{Success: true}
	if cal, ok := tracker.AsCalibrator(s.device); ok && len(points) > 0 {
		r, err := s.runCalibration(ctx, cal, points)
		if err != nil {
			metrics.RecordCalibration("error")
			return model.CalibrationResult{}, err
		}
		result = r
	}
	if !result.Success {
		metrics.RecordCalibration("failed")
		s.logger.Warn(ctx, "calibration failed", logger.Float64("mean_error_deg", result.MeanErrorDeg))
		return result, nil
	}

	nx, ny, err := s.measureNoise(ctx)
	if err != nil {
		metrics.RecordCalibration("error")
		return result, err
	}

	s.mu.Lock()
	th, err := calibration.Convert(s.geometry, s.settings, nx, ny)
	if err == nil {
		s.noiseX, s.noiseY = nx, ny
		s.thresholds = th
	}
	s.mu.Unlock()
	if err != nil {
		return result, err
	}

	metrics.RecordCalibration("ok")
	s.logger.Info(ctx, "calibration accepted",
		logger.Float64("noise_x", nx),
		logger.Float64("noise_y", ny),
		logger.Float64("speed_px", th.SpeedPx),
		logger.Float64("accel_px", th.AccelPx),
		logger.Float64("fixation_px", th.FixationPx),
	)
	if s.log != nil {
		for _, v := range []struct {
			name  string
			value float64
		}{
			{"noise_x", nx}, {"noise_y", ny},
			{"speed_px", th.SpeedPx}, {"accel_px", th.AccelPx}, {"fixation_px", th.FixationPx},
		} {
			if err := s.LogVar(v.name, v.value); err != nil {
				s.logger.Warn(ctx, "log calibration var failed", logger.Error(err))
			}
		}
	}
	return result, nil
}

func (s *Session) runCalibration(ctx context.Context, cal tracker.Calibrator, points []model.Position) (model.CalibrationResult, error) {
	abort := func() {
		if err := cal.AbortCalibration(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn(ctx, "abort calibration failed", logger.Error(err))
		}
	}

	if err := cal.StartCalibration(ctx, len(points)); err != nil {
		return model.CalibrationResult{}, err
	}

	var result *model.CalibrationResult
	for i, p := range points {
		if s.abortPressed() {
			abort()
			s.logger.Info(ctx, "calibration aborted", logger.Int("point", i))
			return model.CalibrationResult{}, nil
		}
		s.draw(p)
		if err := cal.PointStart(ctx, p); err != nil {
			abort()
			return model.CalibrationResult{}, err
		}
		if !sleep(ctx, s.pointDwell) {
			abort()
			return model.CalibrationResult{}, ctx.Err()
		}
		r, err := cal.PointEnd(ctx)
		if err != nil {
			abort()
			return model.CalibrationResult{}, err
		}
		if r != nil {
			result = r
		}
	}
	if result == nil {
		return model.CalibrationResult{}, nil
	}
	return *result, nil
}

// measureNoise collects samples on a central target and returns their RMS
// inter-sample difference.
func (s *Session) measureNoise(ctx context.Context) (x, y float64, err error) {
	info := s.Info()
	s.draw(model.Position{X: float64(info.ScreenW) / 2, Y: float64(info.ScreenH) / 2})

	after := s.Seq()
	ps := make([]model.Position, 0, s.noiseSamples)
	for len(ps) < s.noiseSamples {
		r, err := s.Next(ctx, after)
		if err != nil {
			return 0, 0, fmt.Errorf("measure noise: %w", err)
		}
		after = r.Seq
		if !r.Pos.IsMissing() {
			ps = append(ps, r.Pos)
		}
	}
	x, y = calibration.RMSNoise(ps)
	return x, y, nil
}

// DriftCorrection checks the participant still looks where the tracker says.
// With fixTriggered it waits for a stable fixation on target; otherwise it
// waits for the accept key.
func (s *Session) DriftCorrection(ctx context.Context, target model.Position, fixTriggered bool) (calibration.Outcome, error) {
	if _, err := s.ready(); err != nil {
		return calibration.Aborted, err
	}
	dc := calibration.NewDriftCorrector(s,
		calibration.WithDisplay(s.display),
		calibration.WithKeyboard(s.keyboard),
		calibration.WithLogger(s.logger),
	)
	if fixTriggered {
		return dc.FixTriggered(ctx, target)
	}
	return dc.KeyTriggered(ctx, target)
}

func (s *Session) draw(p model.Position) {
	if s.display == nil {
		return
	}
	s.display.Fill()
	s.display.DrawFixation(p, fixationStyle)
	s.display.Show()
}

func (s *Session) abortPressed() bool {
	if s.keyboard == nil {
		return false
	}
	key, _ := s.keyboard.GetKey(calibration.DefaultAbortKeys, 0)
	return key != ""
}

// Close stops the loops, then closes the data log and the device.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping session...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.holder.Close()
	s.cancel()
	_ = s.queue.Close()
	s.consumer.SetRecording(false)

	if s.log != nil {
		if err := s.log.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.device.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info(ctx, "session stopped", logger.String("id", s.id))
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package tracker

import (
	"context"
	"strconv"
	"sync"

	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
)

// Mouse is the pointer that drives the dummy tracker.
type Mouse interface {
	Pos() model.Position
	SetPos(p model.Position)
	Pressed() bool
}

// MemMouse is an in-memory Mouse.
type MemMouse struct {
	mu      sync.Mutex
	pos     model.Position
	pressed bool
}

// NewMemMouse returns a mouse resting at p.
func NewMemMouse(p model.Position) *MemMouse {
	return &MemMouse{pos: p}
}

func (m *MemMouse) Pos() model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *MemMouse) SetPos(p model.Position) {
	m.mu.Lock()
	m.pos = p
	m.mu.Unlock()
}

func (m *MemMouse) Pressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pressed
}

// Press sets the button state.
func (m *MemMouse) Press(down bool) {
	m.mu.Lock()
	m.pressed = down
	m.mu.Unlock()
}

// dummy turns mouse movement into gaze samples. Holding the button is a
// blink: the cursor is parked off-screen until release.
type dummy struct {
	cfg config

	mu       sync.Mutex
	blinking bool
	saved    model.Position
}

func newDummy(cfg config) *dummy {
	if cfg.mouse == nil {
		cfg.mouse = NewMemMouse(model.Position{X: float64(cfg.screenW) / 2, Y: float64(cfg.screenH) / 2})
	}
	return &dummy{cfg: cfg}
}

func (d *dummy) Kind() Kind { return Dummy }

func (d *dummy) Open(context.Context) (Info, error) {
	return Info{
		SampleRateHz:   d.cfg.sampleRate,
		ScreenW:        d.cfg.screenW,
		ScreenH:        d.cfg.screenH,
		BlinkFlag:      true,
		FixationPolicy: detect.PerAxis,
	}, nil
}

func (d *dummy) offScreen() model.Position {
	return model.Position{X: float64(-d.cfg.screenW), Y: float64(-d.cfg.screenH)}
}

func (d *dummy) Poll(context.Context) (model.Sample, error) {
	now := d.cfg.clock.Now()
	// one timestamp per sample period so oversampling is deduplicated
	period := int64(1000 / d.cfg.sampleRate)
	if period <= 0 {
		period = 1
	}
	s := model.Sample{
		Timestamp: strconv.FormatInt(now/period*period, 10),
		Time:      now,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	m := d.cfg.mouse
	pressed := m.Pressed()
	switch {
	case pressed && !d.blinking:
		d.saved = m.Pos()
		m.SetPos(d.offScreen())
		d.blinking = true
	case !pressed && d.blinking:
		m.SetPos(d.saved)
		d.blinking = false
	}

	if d.blinking {
		s.Blink = true
		s.Avg, s.Raw = model.Missing, model.Missing
		return s, nil
	}

	p := m.Pos()
	s.Avg, s.Raw = p, p
	s.Left = model.Eye{Raw: p, Avg: p}
	s.Right = s.Left
	return s, nil
}

func (d *dummy) Heartbeat(context.Context) error { return nil }

func (d *dummy) Calibrating() bool { return false }

func (d *dummy) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blinking {
		d.cfg.mouse.SetPos(d.saved)
		d.blinking = false
	}
	return nil
}

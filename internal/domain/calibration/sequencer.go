package calibration

import (
	"math"

	"github.com/okian/gazetrack/internal/domain/model"
)

// State is the drift-correction state.
type State int

// Drift-correction states. Accepted, Rejected and Aborted are outcomes.
const (
	Idle State = iota
	Collecting
	Accepted
	Rejected
	Aborted
)

// Outcome is the terminal state returned to callers.
type Outcome = State

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Sequencer defaults.
const (
	DefaultMinSamples     = 30
	DefaultMaxDeviation   = 60.0
	DefaultResetThreshold = 10.0
)

// Sequencer collects a stable run of gaze samples and judges it against a
// target. A sample jumping more than the reset threshold from the previous
// one on either axis starts the run over; runs never span a jump.
type Sequencer struct {
	target         model.Position
	minSamples     int
	maxDeviation   float64
	resetThreshold float64

	xs, ys     []float64
	prev       model.Position
	havePrev   bool
	state      State
	rejections int
}

// NewSequencer creates a sequencer for target.
func NewSequencer(target model.Position, minSamples int, maxDeviation, resetThreshold float64) *Sequencer {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Sequencer{
		target:         target,
		minSamples:     minSamples,
		maxDeviation:   maxDeviation,
		resetThreshold: resetThreshold,
		xs:             make([]float64, 0, minSamples),
		ys:             make([]float64, 0, minSamples),
	}
}

// Feed adds one gaze position and returns the resulting state. Missing and
// repeated positions are ignored. Rejected is reported once per failed run,
// after which collection resumes with empty lists.
func (s *Sequencer) Feed(p model.Position) State {
	if s.state == Accepted {
		return s.state
	}
	if p.IsMissing() || (s.havePrev && p == s.prev) {
		if s.state == Idle {
			return Idle
		}
		return Collecting
	}
	s.state = Collecting

	if s.havePrev {
		dx, dy := p.Sub(s.prev)
		if math.Abs(dx) > s.resetThreshold || math.Abs(dy) > s.resetThreshold {
			s.clear()
		}
	}
	s.xs = append(s.xs, p.X)
	s.ys = append(s.ys, p.Y)
	s.prev, s.havePrev = p, true

	if len(s.xs) < s.minSamples {
		return Collecting
	}

	if mean(s.xs, s.ys).Distance(s.target) < s.maxDeviation {
		s.state = Accepted
		return Accepted
	}
	s.clear()
	s.rejections++
	return Rejected
}

// Collected returns the number of samples in the current run.
func (s *Sequencer) Collected() int { return len(s.xs) }

// Rejections returns how many full runs missed the target.
func (s *Sequencer) Rejections() int { return s.rejections }

// State returns the current state.
func (s *Sequencer) State() State { return s.state }

// Reset returns the sequencer to Idle.
func (s *Sequencer) Reset() {
	s.clear()
	s.havePrev = false
	s.rejections = 0
	s.state = Idle
}

func (s *Sequencer) clear() {
	s.xs = s.xs[:0]
	s.ys = s.ys[:0]
}

func mean(xs, ys []float64) model.Position {
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	n := float64(len(xs))
	return model.Position{X: sx / n, Y: sy / n}
}

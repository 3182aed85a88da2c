package detect

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/gazetrack/internal/domain/model"
)

// FixationPolicy selects how a displacement is compared with the fixation
// threshold.
type FixationPolicy int

const (
	// Euclidean compares the combined distance hypot(dx, dy).
	Euclidean FixationPolicy = iota
	// PerAxis compares each axis independently.
	PerAxis
)

func (p FixationPolicy) String() string {
	switch p {
	case Euclidean:
		return "euclidean"
	case PerAxis:
		return "per_axis"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseFixationPolicy parses "euclidean" or "per_axis".
func ParseFixationPolicy(s string) (FixationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean":
		return Euclidean, nil
	case "per_axis", "per-axis", "peraxis":
		return PerAxis, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// DefaultFixationRun is the number of samples a fixation must span.
const DefaultFixationRun = 5

// Thresholds are the detector parameters in pixels per sample. They are
// derived once per calibration.
type Thresholds struct {
	NoiseX       float64
	NoiseY       float64
	WeightFactor float64
	SpeedPx      float64
	AccelPx      float64
	FixationPx   float64
	Policy       FixationPolicy
	FixationRun  int
}

// weighted reports whether a displacement is larger than measurement noise.
func (t Thresholds) weighted(dx, dy float64) bool {
	return term(dx, t.NoiseX)+term(dy, t.NoiseY) > t.WeightFactor
}

func term(d, noise float64) float64 {
	if noise == 0 {
		if d == 0 {
			return 0
		}
		return math.Inf(1)
	}
	r := d / noise
	return r * r
}

// beyond reports whether a displacement exceeds the fixation threshold.
func (t Thresholds) beyond(dx, dy float64) bool {
	if t.Policy == PerAxis {
		return math.Abs(dx) > t.FixationPx || math.Abs(dy) > t.FixationPx
	}
	return math.Hypot(dx, dy) > t.FixationPx
}

// within reports whether a set of positions fits the fixation box.
func (t Thresholds) within(window []model.Position) bool {
	minX, maxX := window[0].X, window[0].X
	minY, maxY := window[0].Y, window[0].Y
	for _, p := range window[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rx, ry := maxX-minX, maxY-minY
	if t.Policy == PerAxis {
		return rx < t.FixationPx && ry < t.FixationPx
	}
	return math.Hypot(rx, ry) < t.FixationPx
}

func (t Thresholds) run() int {
	if t.FixationRun <= 0 {
		return DefaultFixationRun
	}
	return t.FixationRun
}

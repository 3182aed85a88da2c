// Package calibration converts visual-angle settings into detector
// thresholds and runs drift-correction checks.
package calibration

import (
	"fmt"
	"math"

	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
)

// Geometry describes the display as seen from the participant.
type Geometry struct {
	ScreenResW        int     // horizontal resolution in pixels
	ScreenWidthCm     float64 // physical width of the display area
	ViewingDistanceCm float64
	SampleRateHz      int
}

// PixelsPerCm is the horizontal pixel density.
func (g Geometry) PixelsPerCm() float64 {
	return float64(g.ScreenResW) / g.ScreenWidthCm
}

// PixelsPerDegree is the number of pixels spanning one degree of visual
// angle at the display centre.
func (g Geometry) PixelsPerDegree() float64 {
	return math.Tan(1*math.Pi/180) * g.ViewingDistanceCm * g.PixelsPerCm()
}

// Validate checks that every field is positive.
func (g Geometry) Validate() error {
	switch {
	case g.ScreenResW <= 0:
		return fmt.Errorf("%w: screen resolution %d", ErrInvalidGeometry, g.ScreenResW)
	case g.ScreenWidthCm <= 0:
		return fmt.Errorf("%w: screen width %.1fcm", ErrInvalidGeometry, g.ScreenWidthCm)
	case g.ViewingDistanceCm <= 0:
		return fmt.Errorf("%w: viewing distance %.1fcm", ErrInvalidGeometry, g.ViewingDistanceCm)
	case g.SampleRateHz <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidGeometry, g.SampleRateHz)
	}
	return nil
}

// Settings are the detection thresholds in visual-angle units.
type Settings struct {
	SpeedDegPerSec  float64
	AccelDegPerSec2 float64
	FixationDeg     float64
	WeightFactor    float64
	Policy          detect.FixationPolicy
}

// DefaultSettings returns commonly used saccade and fixation thresholds.
func DefaultSettings() Settings {
	return Settings{
		SpeedDegPerSec:  35,
		AccelDegPerSec2: 9500,
		FixationDeg:     1.5,
		WeightFactor:    10,
		Policy:          detect.Euclidean,
	}
}

// Convert turns settings into per-sample pixel thresholds. Sessions call it
// once after each calibration, never per sample.
func Convert(g Geometry, s Settings, noiseX, noiseY float64) (detect.Thresholds, error) {
	if err := g.Validate(); err != nil {
		return detect.Thresholds{}, err
	}
	ppd := g.PixelsPerDegree()
	rate := float64(g.SampleRateHz)
	return detect.Thresholds{
		NoiseX:       noiseX,
		NoiseY:       noiseY,
		WeightFactor: s.WeightFactor,
		SpeedPx:      s.SpeedDegPerSec * ppd / rate,
		AccelPx:      s.AccelDegPerSec2 * ppd / (rate * rate),
		FixationPx:   s.FixationDeg * ppd,
		Policy:       s.Policy,
		FixationRun:  detect.DefaultFixationRun,
	}, nil
}

// RMSNoise is the root mean square of sample-to-sample differences on each
// axis. Missing positions are ignored.
func RMSNoise(positions []model.Position) (x, y float64) {
	var (
		prev   model.Position
		have   bool
		sx, sy float64
		n      int
	)
	for _, p := range positions {
		if p.IsMissing() {
			continue
		}
		if have {
			dx, dy := p.Sub(prev)
			sx += dx * dx
			sy += dy * dy
			n++
		}
		prev, have = p, true
	}
	if n == 0 {
		return 0, 0
	}
	return math.Sqrt(sx / float64(n)), math.Sqrt(sy / float64(n))
}

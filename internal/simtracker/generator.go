package simtracker

import (
	"math"

	"github.com/okian/gazetrack/internal/domain/model"
)

// Constants for the synthetic gaze pattern.
const (
	fixationFrames = 30  // frames spent on each target
	jitterPx       = 1.5 // fixational jitter amplitude
	blinkEvery     = 7   // every n-th fixation ends in a blink
	blinkFrames    = 6
)

// Synthetic returns a generator that fixates the corners and the centre of
// a w*h screen in turn, with small jitter and an occasional blink.
func Synthetic(w, h int) Generator {
	fw, fh := float64(w), float64(h)
	targets := []model.Position{
		{X: fw / 2, Y: fh / 2},
		{X: fw * 0.2, Y: fh * 0.2},
		{X: fw * 0.8, Y: fh * 0.2},
		{X: fw * 0.8, Y: fh * 0.8},
		{X: fw * 0.2, Y: fh * 0.8},
	}
	return func(n int64) model.Position {
		fix := n / fixationFrames
		in := n % fixationFrames
		if fix%blinkEvery == blinkEvery-1 && in >= fixationFrames-blinkFrames {
			return model.Missing
		}
		t := targets[fix%int64(len(targets))]
		a := float64(n)
		return model.Position{
			X: t.X + jitterPx*math.Sin(a*1.7),
			Y: t.Y + jitterPx*math.Cos(a*2.3),
		}
	}
}

package calibration

import (
	"context"
	"slices"
	"time"

	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/pkg/logger"
	"github.com/okian/gazetrack/pkg/metrics"
)

// Display renders calibration targets.
type Display interface {
	Fill()
	// Show flips the display and returns the experiment time it happened.
	Show() int64
	DrawFixation(pos model.Position, style string)
}

// Keyboard reports key presses. GetKey returns an empty key when none of
// keys was pressed within timeout.
type Keyboard interface {
	GetKey(keys []string, timeout time.Duration) (key string, t int64)
}

// Default keys.
var (
	DefaultAbortKeys  = []string{"escape", "q"}
	DefaultAcceptKeys = []string{"space"}
)

const keyPollTimeout = 10 * time.Millisecond

// DriftCorrector checks that gaze on a target matches the target position.
type DriftCorrector struct {
	src            detect.Source
	display        Display
	keyboard       Keyboard
	abortKeys      []string
	acceptKeys     []string
	style          string
	minSamples     int
	maxDeviation   float64
	resetThreshold float64
	log            logger.Logger
}

// Option configures a DriftCorrector.
type Option func(*DriftCorrector)

// WithDisplay sets the display used to draw the target.
func WithDisplay(d Display) Option {
	return func(c *DriftCorrector) {
		if d != nil {
			c.display = d
		}
	}
}

// WithKeyboard sets the keyboard polled for accept and abort keys.
func WithKeyboard(k Keyboard) Option {
	return func(c *DriftCorrector) {
		if k != nil {
			c.keyboard = k
		}
	}
}

// WithAbortKeys replaces the keys that abort the check.
func WithAbortKeys(keys ...string) Option {
	return func(c *DriftCorrector) { c.abortKeys = keys }
}

// WithAcceptKeys replaces the keys that trigger a manual check.
func WithAcceptKeys(keys ...string) Option {
	return func(c *DriftCorrector) { c.acceptKeys = keys }
}

// WithFixationStyle sets the style passed to DrawFixation.
func WithFixationStyle(style string) Option {
	return func(c *DriftCorrector) { c.style = style }
}

// WithMinSamples sets how many stable samples a run needs.
func WithMinSamples(n int) Option {
	return func(c *DriftCorrector) {
		if n > 0 {
			c.minSamples = n
		}
	}
}

// WithMaxDeviation sets the accepted distance between run mean and target.
func WithMaxDeviation(px float64) Option {
	return func(c *DriftCorrector) {
		if px > 0 {
			c.maxDeviation = px
		}
	}
}

// WithResetThreshold sets the per-axis jump that restarts a run.
func WithResetThreshold(px float64) Option {
	return func(c *DriftCorrector) {
		if px > 0 {
			c.resetThreshold = px
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *DriftCorrector) {
		if l != nil {
			c.log = l
		}
	}
}

// NewDriftCorrector creates a corrector reading gaze from src.
func NewDriftCorrector(src detect.Source, opts ...Option) *DriftCorrector {
	c := &DriftCorrector{
		src:            src,
		display:        nopDisplay{},
		keyboard:       nopKeyboard{},
		abortKeys:      DefaultAbortKeys,
		acceptKeys:     DefaultAcceptKeys,
		style:          "fixtarget",
		minSamples:     DefaultMinSamples,
		maxDeviation:   DefaultMaxDeviation,
		resetThreshold: DefaultResetThreshold,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DriftCorrector) draw(target model.Position) {
	c.display.Fill()
	c.display.DrawFixation(target, c.style)
	c.display.Show()
}

// FixTriggered waits until the participant holds a stable fixation on
// target. Runs that miss the target are discarded and collection goes on
// until a run is accepted or an abort key is pressed; the abort key is
// checked once per sample.
func (c *DriftCorrector) FixTriggered(ctx context.Context, target model.Position) (Outcome, error) {
	c.draw(target)
	seq := NewSequencer(target, c.minSamples, c.maxDeviation, c.resetThreshold)

	var after uint64
	for {
		r, err := c.src.Next(ctx, after)
		if err != nil {
			return Aborted, err
		}
		after = r.Seq

		if key, _ := c.keyboard.GetKey(c.abortKeys, 0); key != "" {
			c.finish(ctx, "fix", Aborted, seq.Rejections())
			return Aborted, nil
		}

		if seq.Feed(r.Pos) == Accepted {
			c.finish(ctx, "fix", Accepted, seq.Rejections())
			return Accepted, nil
		}
	}
}

// KeyTriggered waits for an accept key and compares the gaze at that moment
// with target.
func (c *DriftCorrector) KeyTriggered(ctx context.Context, target model.Position) (Outcome, error) {
	c.draw(target)
	keys := append(slices.Clone(c.acceptKeys), c.abortKeys...)

	for {
		if err := ctx.Err(); err != nil {
			return Aborted, err
		}
		key, _ := c.keyboard.GetKey(keys, keyPollTimeout)
		if key == "" {
			continue
		}
		if slices.Contains(c.abortKeys, key) {
			c.finish(ctx, "key", Aborted, 0)
			return Aborted, nil
		}

		r, err := c.src.Next(ctx, 0)
		if err != nil {
			return Aborted, err
		}
		if !r.Pos.IsMissing() && r.Pos.Distance(target) < c.maxDeviation {
			c.finish(ctx, "key", Accepted, 0)
			return Accepted, nil
		}
		c.finish(ctx, "key", Rejected, 0)
		return Rejected, nil
	}
}

func (c *DriftCorrector) finish(ctx context.Context, mode string, out Outcome, rejections int) {
	metrics.RecordDriftCorrection(out.String())
	c.log.Info(ctx, "drift correction finished",
		logger.String("mode", mode),
		logger.String("outcome", out.String()),
		logger.Int("rejected_runs", rejections))
}

type nopDisplay struct{}

func (nopDisplay) Fill() {}

func (nopDisplay) Show() int64 { return 0 }

func (nopDisplay) DrawFixation(model.Position, string) {}

type nopKeyboard struct{}

func (nopKeyboard) GetKey([]string, time.Duration) (string, int64) { return "", 0 }

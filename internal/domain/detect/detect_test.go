package detect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// scripted replays readings; once exhausted it blocks until ctx is done.
type scripted struct {
	readings []detect.Reading
}

func script(steps ...detect.Reading) *scripted {
	for i := range steps {
		steps[i].Seq = uint64(i + 1)
		steps[i].Time = int64(i * 10)
	}
	return &scripted{readings: steps}
}

func at(x, y float64) detect.Reading { return detect.Reading{Pos: model.Position{X: x, Y: y}} }

func missing() detect.Reading { return detect.Reading{Pos: model.Missing} }

func blink() detect.Reading { return detect.Reading{Pos: model.Missing, Blink: true} }

func (s *scripted) Next(ctx context.Context, after uint64) (detect.Reading, error) {
	if int(after) < len(s.readings) {
		return s.readings[after], nil
	}
	<-ctx.Done()
	return detect.Reading{}, ctx.Err()
}

func thresholds() detect.Thresholds {
	return detect.Thresholds{
		NoiseX:       1,
		NoiseY:       1,
		WeightFactor: 1,
		SpeedPx:      10,
		AccelPx:      5,
		FixationPx:   10,
		Policy:       detect.Euclidean,
	}
}

func saccadeScript() *scripted {
	return script(
		at(0, 0), at(0, 0), at(0, 0), at(0, 0), at(0, 0),
		at(0, 0), at(50, 0), at(52, 0), at(52, 0), at(52, 0),
	)
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 200*time.Millisecond)
}

func TestSaccade(t *testing.T) {
	Convey("Given gaze resting at the origin and jumping to (50,0)", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()

		Convey("When waiting for saccade start", func() {
			ev, err := detect.New(saccadeScript(), thresholds()).WaitForSaccadeStart(ctx)

			Convey("Then it fires on the jump and reports the position before it", func() {
				So(err, ShouldBeNil)
				So(ev.Kind, ShouldEqual, model.SaccadeStart)
				So(ev.Time, ShouldEqual, 60)
				So(ev.StartPos, ShouldResemble, model.Position{X: 0, Y: 0})
			})
		})

		Convey("When waiting for saccade end", func() {
			ev, err := detect.New(saccadeScript(), thresholds()).WaitForSaccadeEnd(ctx)

			Convey("Then it fires two samples after the start", func() {
				So(err, ShouldBeNil)
				So(ev.Kind, ShouldEqual, model.SaccadeEnd)
				So(ev.Time, ShouldEqual, 80)
				So(ev.StartPos, ShouldResemble, model.Position{X: 0, Y: 0})
				So(*ev.EndPos, ShouldResemble, model.Position{X: 52, Y: 0})
			})
		})
	})

	Convey("Given jitter below the noise level", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()
		th := thresholds()
		th.NoiseX, th.NoiseY = 4, 4
		th.SpeedPx, th.AccelPx = 1, 1

		src := script(at(100, 100), at(102, 101), at(100, 99), at(101, 100), at(140, 100))
		ev, err := detect.New(src, th).WaitForSaccadeStart(ctx)

		Convey("Then only the real movement starts a saccade", func() {
			So(err, ShouldBeNil)
			So(ev.Time, ShouldEqual, 40)
			So(ev.StartPos, ShouldResemble, model.Position{X: 101, Y: 100})
		})
	})

	Convey("Given missing samples during a movement", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()

		src := script(at(0, 0), missing(), at(0, 0), missing(), at(50, 0), missing(), at(52, 0), at(52, 0))
		ev, err := detect.New(src, thresholds()).WaitForSaccadeEnd(ctx)

		Convey("Then they are skipped rather than treated as positions", func() {
			So(err, ShouldBeNil)
			So(*ev.EndPos, ShouldResemble, model.Position{X: 52, Y: 0})
			So(ev.Time, ShouldEqual, 70)
		})
	})

	Convey("Given zero noise estimates", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()
		th := thresholds()
		th.NoiseX, th.NoiseY = 0, 0

		ev, err := detect.New(script(at(0, 0), at(0, 0), at(30, 0)), th).WaitForSaccadeStart(ctx)

		Convey("Then any displacement passes the noise guard", func() {
			So(err, ShouldBeNil)
			So(ev.Time, ShouldEqual, 20)
		})
	})
}

func TestFixation(t *testing.T) {
	Convey("Given a moving gaze that settles near (512,384)", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()

		src := script(
			at(100, 100), at(300, 200),
			at(510, 383), at(513, 385), at(511, 384), at(514, 382), at(512, 386),
			at(700, 384),
		)

		Convey("When waiting for fixation start", func() {
			ev, err := detect.New(src, thresholds()).WaitForFixationStart(ctx)

			Convey("Then it returns the fifth sample of the run", func() {
				So(err, ShouldBeNil)
				So(ev.Kind, ShouldEqual, model.FixationStart)
				So(ev.StartPos, ShouldResemble, model.Position{X: 512, Y: 386})
				So(ev.Time, ShouldEqual, 60)
			})
		})

		Convey("When waiting for fixation end", func() {
			ev, err := detect.New(src, thresholds()).WaitForFixationEnd(ctx)

			Convey("Then it fires when gaze leaves the fixation position", func() {
				So(err, ShouldBeNil)
				So(ev.Kind, ShouldEqual, model.FixationEnd)
				So(ev.StartPos, ShouldResemble, model.Position{X: 512, Y: 386})
				So(*ev.EndPos, ShouldResemble, model.Position{X: 700, Y: 384})
			})
		})
	})

	Convey("Given a run spread 8px on both axes with a 10px threshold", t, func() {
		run := func() *scripted {
			return script(at(0, 0), at(8, 8), at(0, 8), at(8, 0), at(4, 4))
		}

		Convey("Then the per-axis policy accepts it", func() {
			ctx, cancel := withTimeout()
			defer cancel()
			th := thresholds()
			th.Policy = detect.PerAxis
			ev, err := detect.New(run(), th).WaitForFixationStart(ctx)
			So(err, ShouldBeNil)
			So(ev.StartPos, ShouldResemble, model.Position{X: 4, Y: 4})
		})

		Convey("Then the Euclidean policy keeps waiting", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			_, err := detect.New(run(), thresholds()).WaitForFixationStart(ctx)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}

func TestBlink(t *testing.T) {
	Convey("Given a blink between two gaze positions", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()
		src := func() *scripted {
			return script(at(200, 200), at(201, 200), blink(), blink(), missing(), at(205, 198))
		}

		Convey("Then blink start reports the last position before it", func() {
			ev, err := detect.New(src(), thresholds()).WaitForBlinkStart(ctx)
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, model.BlinkStart)
			So(ev.Time, ShouldEqual, 20)
			So(ev.StartPos, ShouldResemble, model.Position{X: 201, Y: 200})
		})

		Convey("Then blink end reports the first position after it", func() {
			ev, err := detect.New(src(), thresholds()).WaitForEvent(ctx, model.BlinkEnd)
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, model.BlinkEnd)
			So(ev.Time, ShouldEqual, 50)
			So(*ev.EndPos, ShouldResemble, model.Position{X: 205, Y: 198})
		})
	})
}

func TestWaitForEvent(t *testing.T) {
	Convey("Given a detector", t, func() {
		ctx, cancel := withTimeout()
		defer cancel()
		d := detect.New(saccadeScript(), thresholds())

		Convey("Then event kinds dispatch to their detector", func() {
			ev, err := d.WaitForEvent(ctx, model.SaccadeStart)
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, model.SaccadeStart)
		})

		Convey("Then an unknown kind is rejected", func() {
			_, err := d.WaitForEvent(ctx, model.EventKind(42))
			So(errors.Is(err, detect.ErrUnknownEvent), ShouldBeTrue)
		})

		Convey("Then a cancelled context stops the wait", func() {
			cctx, ccancel := context.WithCancel(context.Background())
			ccancel()
			_, err := detect.New(script(), thresholds()).WaitForFixationStart(cctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestParseFixationPolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := detect.ParseFixationPolicy("Euclidean")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, detect.Euclidean)

		p, err = detect.ParseFixationPolicy("per_axis")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, detect.PerAxis)
		So(p.String(), ShouldEqual, "per_axis")

		_, err = detect.ParseFixationPolicy("manhattan")
		So(errors.Is(err, detect.ErrUnknownPolicy), ShouldBeTrue)
	})
}

package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gazetrack/internal/adapters/device"
	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/internal/simtracker"
	"github.com/okian/gazetrack/internal/tracker"
	"github.com/okian/gazetrack/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKind(t *testing.T) {
	Convey("Given tracker names", t, func() {
		k, err := tracker.ParseKind("EyeTribe")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, tracker.EyeTribe)
		So(k.String(), ShouldEqual, "eyetribe")

		_, err = tracker.ParseKind("webcam")
		So(errors.Is(err, tracker.ErrUnsupported), ShouldBeTrue)
	})
}

type vendorBinding struct {
	tracker.Device
	started int
}

func (v *vendorBinding) StartCalibration(context.Context, int) error      { v.started++; return nil }
func (v *vendorBinding) PointStart(context.Context, model.Position) error { return nil }
func (v *vendorBinding) PointEnd(context.Context) (*model.CalibrationResult, error) {
	return &model.CalibrationResult{Success: true}, nil
}
func (v *vendorBinding) AbortCalibration(context.Context) error { return nil }
func (v *vendorBinding) ClearCalibration(context.Context) error { return nil }

func TestNew(t *testing.T) {
	Convey("Given vendor tracker kinds", t, func() {
		Convey("When no binding is supplied", func() {
			_, err := tracker.New(tracker.EyeLink)

			Convey("Then construction fails as unsupported", func() {
				So(errors.Is(err, tracker.ErrUnsupported), ShouldBeTrue)
			})
		})

		Convey("When a binding is supplied", func() {
			inner, err := tracker.New(tracker.Dummy)
			So(err, ShouldBeNil)
			binding := &vendorBinding{Device: inner}

			d, err := tracker.New(tracker.Tobii, tracker.WithBinding(binding))

			Convey("Then the device reports the requested kind and its calibration capability", func() {
				So(err, ShouldBeNil)
				So(d.Kind(), ShouldEqual, tracker.Tobii)
				c, ok := tracker.AsCalibrator(d)
				So(ok, ShouldBeTrue)
				So(c.StartCalibration(context.Background(), 9), ShouldBeNil)
				So(binding.started, ShouldEqual, 1)
			})
		})

		Convey("When the kind is unknown", func() {
			_, err := tracker.New(tracker.Kind(99))
			So(errors.Is(err, tracker.ErrUnsupported), ShouldBeTrue)
		})
	})

	Convey("Given the dummy tracker", t, func() {
		d, _ := tracker.New(tracker.Dummy)
		_, ok := tracker.AsCalibrator(d)
		So(ok, ShouldBeFalse)
	})
}

func TestDummy(t *testing.T) {
	Convey("Given a mouse-driven dummy tracker", t, func() {
		ctx := context.Background()
		clk := clock.NewManual(0)
		mouse := tracker.NewMemMouse(model.Position{X: 300, Y: 200})
		d, err := tracker.New(tracker.Dummy,
			tracker.WithMouse(mouse),
			tracker.WithClock(clk),
			tracker.WithScreen(800, 600),
			tracker.WithSampleRate(50))
		So(err, ShouldBeNil)

		info, err := d.Open(ctx)
		So(err, ShouldBeNil)

		Convey("Then it reports a blink flag and the per-axis policy", func() {
			So(info.BlinkFlag, ShouldBeTrue)
			So(info.FixationPolicy, ShouldEqual, detect.PerAxis)
			So(info.HeartbeatInterval, ShouldEqual, 0)
			So(info.SampleInterval(), ShouldEqual, 20*time.Millisecond)
			So(d.Heartbeat(ctx), ShouldBeNil)
			So(d.Calibrating(), ShouldBeFalse)
		})

		Convey("When polled twice within one sample period", func() {
			clk.Set(41)
			a, _ := d.Poll(ctx)
			clk.Set(55)
			b, _ := d.Poll(ctx)

			Convey("Then both polls share a timestamp", func() {
				So(a.Timestamp, ShouldEqual, "40")
				So(b.Timestamp, ShouldEqual, a.Timestamp)
				So(a.Gaze(), ShouldResemble, model.Position{X: 300, Y: 200})
				So(b.Time, ShouldEqual, 55)
			})
		})

		Convey("When the button is held", func() {
			mouse.Press(true)
			s, _ := d.Poll(ctx)

			Convey("Then the sample is a blink and the cursor is parked off-screen", func() {
				So(s.Blink, ShouldBeTrue)
				So(s.Gaze(), ShouldResemble, model.Missing)
				So(mouse.Pos(), ShouldResemble, model.Position{X: -800, Y: -600})
			})

			Convey("And on release the cursor is restored", func() {
				mouse.Press(false)
				s, _ := d.Poll(ctx)
				So(s.Blink, ShouldBeFalse)
				So(mouse.Pos(), ShouldResemble, model.Position{X: 300, Y: 200})
				So(s.Gaze(), ShouldResemble, model.Position{X: 300, Y: 200})
			})

			Convey("And closing mid-blink restores the cursor", func() {
				So(d.Close(), ShouldBeNil)
				So(mouse.Pos(), ShouldResemble, model.Position{X: 300, Y: 200})
			})
		})
	})
}

func TestEyeTribe(t *testing.T) {
	Convey("Given a simulated EyeTribe server", t, func() {
		ctx := context.Background()
		sim := simtracker.New(
			simtracker.WithFrameRate(30),
			simtracker.WithHeartbeatInterval(300*time.Millisecond),
			simtracker.WithScreen(1280, 1024),
			simtracker.WithScript(model.Position{X: 640, Y: 512}),
		)
		So(sim.Start(ctx), ShouldBeNil)
		defer sim.Close()

		host, port := sim.HostPort()
		d, err := tracker.New(tracker.EyeTribe,
			tracker.WithEndpoint(host, port),
			tracker.WithClock(clock.NewManual(1234)),
			tracker.WithProxyOptions(device.WithMaxWait(200*time.Millisecond)))
		So(err, ShouldBeNil)
		defer d.Close()

		Convey("When polling before Open", func() {
			_, err := d.Poll(ctx)
			So(errors.Is(err, tracker.ErrNotOpen), ShouldBeTrue)
		})

		Convey("When opened", func() {
			info, err := d.Open(ctx)
			So(err, ShouldBeNil)

			Convey("Then it reads the device settings", func() {
				So(info.SampleRateHz, ShouldEqual, 30)
				So(info.HeartbeatInterval, ShouldEqual, 300*time.Millisecond)
				So(info.ScreenW, ShouldEqual, 1280)
				So(info.ScreenH, ShouldEqual, 1024)
				So(info.FixationPolicy, ShouldEqual, detect.Euclidean)
			})

			Convey("Then polling returns the device frame stamped with the experiment clock", func() {
				s, err := d.Poll(ctx)
				So(err, ShouldBeNil)
				So(s.Gaze(), ShouldResemble, model.Position{X: 640, Y: 512})
				So(s.Time, ShouldEqual, 1234)
				So(s.PupilSize, ShouldEqual, 21.5)
				So(s.Timestamp, ShouldNotBeEmpty)
			})

			Convey("Then heartbeats are accepted", func() {
				So(d.Heartbeat(ctx), ShouldBeNil)
			})

			Convey("Then an unanswered heartbeat is reported", func() {
				sim.FailHeartbeats(1)
				So(errors.Is(d.Heartbeat(ctx), tracker.ErrHeartbeat), ShouldBeTrue)
			})

			Convey("Then a calibration runs through the device", func() {
				c, ok := tracker.AsCalibrator(d)
				So(ok, ShouldBeTrue)
				So(c.StartCalibration(ctx, 2), ShouldBeNil)
				So(d.Calibrating(), ShouldBeTrue)

				So(c.PointStart(ctx, model.Position{X: 100, Y: 100}), ShouldBeNil)
				res, err := c.PointEnd(ctx)
				So(err, ShouldBeNil)
				So(res, ShouldBeNil)

				So(c.PointStart(ctx, model.Position{X: 1100, Y: 900}), ShouldBeNil)
				res, err = c.PointEnd(ctx)
				So(err, ShouldBeNil)
				So(res, ShouldNotBeNil)
				So(res.Success, ShouldBeTrue)
				So(res.Points, ShouldHaveLength, 2)
				So(res.Points[1].Target, ShouldResemble, model.Position{X: 1100, Y: 900})
				So(res.Points[0].State, ShouldEqual, model.PointOK)
				So(d.Calibrating(), ShouldBeFalse)
			})

			Convey("Then a calibration call out of order is rejected", func() {
				c, _ := tracker.AsCalibrator(d)
				So(errors.Is(c.PointStart(ctx, model.Position{}), tracker.ErrCalibration), ShouldBeTrue)
			})
		})
	})
}

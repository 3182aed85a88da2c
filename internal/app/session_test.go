package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	session "github.com/okian/gazetrack/internal/app"
	"github.com/okian/gazetrack/internal/domain/calibration"
	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/internal/simtracker"
	"github.com/okian/gazetrack/internal/tracker"
	. "github.com/smartystreets/goconvey/convey"
)

var centre = model.Position{X: 512, Y: 384}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func dummySession(mouse *tracker.MemMouse, opts ...session.Option) *session.Session {
	dev, err := tracker.New(tracker.Dummy, tracker.WithMouse(mouse))
	So(err, ShouldBeNil)
	return session.New(append([]session.Option{session.WithDevice(dev)}, opts...)...)
}

// jitter moves the mouse around p until stop is closed.
func jitter(mouse *tracker.MemMouse, p model.Position, stop <-chan struct{}) {
	go func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
			mouse.SetPos(model.Position{X: p.X + float64(i%4), Y: p.Y + float64(i%3)})
		}
	}()
}

type keyboard struct {
	press atomic.Value
}

func (k *keyboard) GetKey(keys []string, timeout time.Duration) (string, int64) {
	if p, _ := k.press.Load().(string); p != "" {
		for _, key := range keys {
			if key == p {
				return p, 0
			}
		}
	}
	time.Sleep(timeout)
	return "", 0
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a session on the dummy tracker", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mouse := tracker.NewMemMouse(centre)
		s := dummySession(mouse)

		Convey("Before Start nothing is available", func() {
			So(s.Sample(), ShouldResemble, model.Missing)
			So(s.PupilSize(), ShouldEqual, -1)
			So(errors.Is(s.Log("early"), session.ErrNotStarted), ShouldBeTrue)
			So(s.ID(), ShouldNotBeEmpty)
			So(s.Stats().Tracker, ShouldEqual, "dummy")
		})

		Convey("When started", func() {
			So(s.Start(ctx), ShouldBeNil)
			defer s.Close(ctx)

			Convey("Then the mouse position is published", func() {
				So(eventually(func() bool { return s.Sample() == centre }), ShouldBeTrue)
				So(eventually(func() bool { return s.Stats().Published > 1 }), ShouldBeTrue)

				st := s.Stats()
				So(st.SampleRateHz, ShouldEqual, tracker.DefaultSampleRate)
				So(st.Heartbeat, ShouldEqual, "stopped")
				So(st.QueueCapacity, ShouldEqual, 64)
				So(st.SpeedPx, ShouldBeGreaterThan, 0)
			})

			Convey("Then logging without a data log is refused", func() {
				So(errors.Is(s.Log("msg"), session.ErrNoLog), ShouldBeTrue)
			})

			Convey("Then a second Start is a no-op", func() {
				So(s.Start(ctx), ShouldBeNil)
			})

			Convey("Then after Close the session refuses work", func() {
				So(s.Close(ctx), ShouldBeNil)
				So(s.Close(ctx), ShouldBeNil)
				_, err := s.WaitForEvent(ctx, model.SaccadeStart)
				So(errors.Is(err, session.ErrClosed), ShouldBeTrue)
				So(errors.Is(s.Start(ctx), session.ErrClosed), ShouldBeTrue)
			})

			Convey("Then Close releases a detector waiting without a deadline", func() {
				So(eventually(func() bool { return s.Sample() == centre }), ShouldBeTrue)
				errs := make(chan error, 1)
				go func() {
					_, err := s.WaitForEvent(context.Background(), model.SaccadeStart)
					errs <- err
				}()
				time.Sleep(50 * time.Millisecond)
				So(s.Close(ctx), ShouldBeNil)

				select {
				case err := <-errs:
					So(errors.Is(err, session.ErrClosed), ShouldBeTrue)
				case <-time.After(2 * time.Second):
					So("detector still blocked after Close", ShouldBeEmpty)
				}
			})

			Convey("Then the fixation policy is the device default", func() {
				So(s.Thresholds().Policy, ShouldEqual, detect.PerAxis)
			})
		})
	})

	Convey("Given a dummy session with an explicit fixation policy", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st := calibration.DefaultSettings()
		st.Policy = detect.PerAxis
		s := dummySession(tracker.NewMemMouse(centre),
			session.WithFixationPolicy(detect.Euclidean),
			session.WithSettings(st),
		)
		So(s.Start(ctx), ShouldBeNil)
		defer s.Close(ctx)

		Convey("Then the override wins over the device default", func() {
			So(s.Thresholds().Policy, ShouldEqual, detect.Euclidean)
		})
	})

	Convey("A session without a device cannot start", t, func() {
		err := session.New().Start(context.Background())
		So(errors.Is(err, tracker.ErrUnsupported), ShouldBeTrue)
	})
}

func TestSessionDataLog(t *testing.T) {
	Convey("Given a session writing a data log", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		path := filepath.Join(t.TempDir(), "run.tsv")
		s := dummySession(tracker.NewMemMouse(centre), session.WithLogFile(path))
		So(s.Start(ctx), ShouldBeNil)

		Convey("When recording for a while and logging messages", func() {
			So(s.StartRecording(ctx), ShouldBeNil)
			So(s.Recording(), ShouldBeTrue)
			So(eventually(func() bool { return s.Stats().Logged >= 3 }), ShouldBeTrue)
			So(s.StopRecording(ctx), ShouldBeNil)
			So(s.Log("trial 1"), ShouldBeNil)
			So(s.LogVar("condition", 2), ShouldBeNil)
			So(s.Close(ctx), ShouldBeNil)

			b, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")

			Convey("Then the file holds the header, samples and messages in order", func() {
				So(lines[0], ShouldStartWith, "timestamp\ttime\tfix")
				So(lines[1], ShouldStartWith, "MSG\t")
				So(lines[1], ShouldEndWith, "\tstart_recording")

				samples := 0
				for _, l := range lines[2:] {
					if !strings.HasPrefix(l, "MSG") {
						samples++
						So(l, ShouldContainSubstring, "\t512\t384\t")
					}
				}
				So(samples, ShouldBeGreaterThanOrEqualTo, 3)

				n := len(lines)
				So(string(b), ShouldContainSubstring, "\tstop_recording\n")
				So(lines[n-2], ShouldEndWith, "\ttrial 1")
				So(lines[n-1], ShouldEndWith, "\tvar condition 2")
			})
		})

		Convey("When recording is started from several goroutines at once", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = s.StartRecording(ctx)
				}()
			}
			wg.Wait()
			So(s.Close(ctx), ShouldBeNil)

			b, err := os.ReadFile(path)
			So(err, ShouldBeNil)

			Convey("Then the start marker is written once", func() {
				So(strings.Count(string(b), "\tstart_recording\n"), ShouldEqual, 1)
			})
		})
	})
}

func TestSessionEvents(t *testing.T) {
	Convey("Given a running dummy session", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mouse := tracker.NewMemMouse(centre)
		s := dummySession(mouse)
		So(s.Start(ctx), ShouldBeNil)
		defer s.Close(ctx)
		So(eventually(func() bool { return s.Sample() == centre }), ShouldBeTrue)

		Convey("A mouse jump is a saccade starting at the old position", func() {
			go func() {
				time.Sleep(100 * time.Millisecond)
				mouse.SetPos(model.Position{X: 900, Y: 384})
			}()
			ev, err := s.WaitForEvent(ctx, model.SaccadeStart)
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, model.SaccadeStart)
			So(ev.StartPos, ShouldResemble, centre)
		})

		Convey("Holding the button is a blink", func() {
			go func() {
				time.Sleep(100 * time.Millisecond)
				mouse.Press(true)
				time.Sleep(100 * time.Millisecond)
				mouse.Press(false)
			}()
			ev, err := s.WaitForEvent(ctx, model.BlinkEnd)
			So(err, ShouldBeNil)
			So(ev.StartPos, ShouldResemble, centre)
			So(*ev.EndPos, ShouldResemble, centre)
			So(mouse.Pos(), ShouldResemble, centre)
		})

		Convey("Calibrating without a device calibration measures noise only", func() {
			s2 := dummySession(mouse, session.WithNoiseSamples(5))
			So(s2.Start(ctx), ShouldBeNil)
			defer s2.Close(ctx)

			res, err := s2.Calibrate(ctx, nil)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue)
			So(s2.Thresholds().NoiseX, ShouldEqual, 0)
			So(s2.Thresholds().FixationPx, ShouldBeGreaterThan, 0)
		})
	})
}

func TestSessionDriftCorrection(t *testing.T) {
	Convey("Given a running dummy session and a keyboard", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mouse := tracker.NewMemMouse(centre)
		kb := &keyboard{}
		s := dummySession(mouse, session.WithKeyboard(kb))
		So(s.Start(ctx), ShouldBeNil)
		defer s.Close(ctx)
		So(eventually(func() bool { return s.Sample() == centre }), ShouldBeTrue)

		Convey("A fixation on the target is accepted", func() {
			stop := make(chan struct{})
			defer close(stop)
			jitter(mouse, centre, stop)

			out, err := s.DriftCorrection(ctx, centre, true)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, calibration.Accepted)
		})

		Convey("Escape aborts a fixation-triggered check", func() {
			stop := make(chan struct{})
			defer close(stop)
			jitter(mouse, model.Position{X: 100, Y: 100}, stop)
			kb.press.Store("escape")

			out, err := s.DriftCorrection(ctx, centre, true)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, calibration.Aborted)
		})

		Convey("Space with gaze on the target accepts a key-triggered check", func() {
			kb.press.Store("space")
			out, err := s.DriftCorrection(ctx, centre, false)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, calibration.Accepted)
		})

		Convey("Space with gaze elsewhere rejects a key-triggered check", func() {
			mouse.SetPos(model.Position{X: 100, Y: 100})
			So(eventually(func() bool { return s.Sample() == model.Position{X: 100, Y: 100} }), ShouldBeTrue)
			kb.press.Store("space")
			out, err := s.DriftCorrection(ctx, centre, false)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, calibration.Rejected)
		})
	})
}

func TestSessionNetworkTracker(t *testing.T) {
	Convey("Given a simulated network tracker with a lost eye every other half second", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		srv := simtracker.New(
			simtracker.WithHeartbeatInterval(20*time.Millisecond),
			simtracker.WithGaze(func(n int64) model.Position {
				if n%60 >= 30 {
					return model.Missing
				}
				return model.Position{X: centre.X + float64(n%3), Y: centre.Y}
			}),
		)
		So(srv.Start(ctx), ShouldBeNil)
		defer srv.Close()
		host, port := srv.HostPort()

		dev, err := tracker.New(tracker.EyeTribe, tracker.WithEndpoint(host, port))
		So(err, ShouldBeNil)
		s := session.New(
			session.WithDevice(dev),
			session.WithPointDwell(5*time.Millisecond),
			session.WithNoiseSamples(10),
		)
		So(s.Start(ctx), ShouldBeNil)
		defer s.Close(ctx)

		Convey("Heartbeats are sent", func() {
			So(eventually(func() bool { return s.Stats().HeartbeatsSent > 0 }), ShouldBeTrue)
			So(s.Stats().Heartbeat, ShouldEqual, "beating")
		})

		Convey("A device calibration yields per-point results and measured noise", func() {
			points := []model.Position{{X: 100, Y: 100}, {X: 924, Y: 100}, {X: 512, Y: 668}}
			res, err := s.Calibrate(ctx, points)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue)
			So(res.Points, ShouldHaveLength, 3)
			So(srv.Stats().Calibrated, ShouldEqual, 1)
			So(s.Thresholds().NoiseX, ShouldBeGreaterThan, 0)
			So(s.Stats().Calibrating, ShouldBeFalse)
		})

		Convey("A lost eye longer than 150 ms is reported as a blink", func() {
			ev, err := s.WaitForEvent(ctx, model.BlinkStart)
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, model.BlinkStart)
			So(ev.StartPos.IsMissing(), ShouldBeFalse)
		})
	})
}

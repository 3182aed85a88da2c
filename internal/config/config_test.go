package config_test

import (
	"errors"
	"testing"

	"github.com/okian/gazetrack/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Tracker, convey.ShouldEqual, "eyetribe")
			convey.So(cfg.Port, convey.ShouldEqual, 6555)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.GraceMS, convey.ShouldEqual, 5)
			convey.So(cfg.MaxWaitMS, convey.ShouldEqual, 500)
			convey.So(cfg.MetricsRefreshMS, convey.ShouldEqual, 5000)
			convey.So(cfg.FixationPolicy, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := []struct {
			name    string
			breakIt func()
		}{
			{"unknown tracker", func() { cfg.Tracker = "webcam" }},
			{"unknown policy", func() { cfg.FixationPolicy = "manhattan" }},
			{"zero resolution", func() { cfg.ScreenResW = 0 }},
			{"zero width", func() { cfg.ScreenWidthCm = 0 }},
			{"zero distance", func() { cfg.ViewingDistanceCm = 0 }},
			{"zero sample rate", func() { cfg.SampleRate = 0 }},
			{"empty queue", func() { cfg.QueueSize = 0 }},
			{"negative noise", func() { cfg.NoiseY = -1 }},
			{"zero metrics refresh", func() { cfg.MetricsRefreshMS = 0 }},
			{"empty listen address", func() { cfg.Addr = "" }},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.breakIt()
				err := cfg.Validate()

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}

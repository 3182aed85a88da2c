package clock_test

import (
	"testing"
	"time"

	"github.com/okian/gazetrack/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClock(t *testing.T) {
	Convey("Given a monotonic clock", t, func() {
		c := clock.New()

		Convey("Then time should never go backwards", func() {
			a := c.Now()
			time.Sleep(5 * time.Millisecond)
			b := c.Now()
			So(a, ShouldBeGreaterThanOrEqualTo, 0)
			So(b, ShouldBeGreaterThanOrEqualTo, a+4)
		})
	})

	Convey("Given a manual clock", t, func() {
		c := clock.NewManual(100)

		Convey("When advancing it", func() {
			So(c.Advance(16), ShouldEqual, 116)
			So(c.Now(), ShouldEqual, 116)
			c.Set(10)
			So(c.Now(), ShouldEqual, 10)
		})
	})
}

package dedupe_test

import (
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/gazetrack/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWindowDeduper(t *testing.T) {
	Convey("Given a new window deduper", t, func() {
		d := dedupe.NewWindowDeduper()

		Convey("Then it should start empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a timestamp is recorded for the first time", func() {
			seen := d.SeenAndRecord("2014-04-24 12:11:31.123")

			Convey("Then it should be reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again should report it as seen", func() {
				So(d.SeenAndRecord("2014-04-24 12:11:31.123"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a timestamp is unrecorded", func() {
			d.SeenAndRecord("a")
			d.Unrecord("a")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord("a"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord("missing")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a deduper with a window of three", t, func() {
		d := dedupe.NewWindowDeduper(dedupe.WithWindow(3))

		Convey("When four distinct timestamps are recorded", func() {
			for i := 0; i < 4; i++ {
				d.SeenAndRecord(fmt.Sprintf("t%d", i))
			}

			Convey("Then the oldest should have been forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord("t3"), ShouldBeTrue)
				So(d.SeenAndRecord("t0"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper with a non-positive window", t, func() {
		d := dedupe.NewWindowDeduper(dedupe.WithWindow(0))

		Convey("Then only the previous key is remembered", func() {
			So(d.SeenAndRecord("a"), ShouldBeFalse)
			So(d.SeenAndRecord("a"), ShouldBeTrue)
			So(d.SeenAndRecord("b"), ShouldBeFalse)
			So(d.SeenAndRecord("a"), ShouldBeFalse)
		})
	})
}

func TestWindowDeduperConcurrent(t *testing.T) {
	Convey("Given many goroutines recording the same keys", t, func() {
		d := dedupe.NewWindowDeduper(dedupe.WithWindow(1000))
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(fmt.Sprintf("k%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key should be new exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

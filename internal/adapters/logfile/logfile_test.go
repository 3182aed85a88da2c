package logfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/okian/gazetrack/internal/adapters/logfile"
	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func lines(path string) []string {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestLogFile(t *testing.T) {
	convey.Convey("Given a fresh data log", t, func() {
		path := filepath.Join(t.TempDir(), "session.tsv")
		lf, err := logfile.Open(path)
		convey.So(err, convey.ShouldBeNil)
		defer lf.Close()

		convey.Convey("The header is the first line", func() {
			got := lines(path)
			convey.So(got, convey.ShouldHaveLength, 1)
			convey.So(strings.Split(got[0], "\t"), convey.ShouldResemble, logfile.Header)
		})

		convey.Convey("A sample line has one field per header column", func() {
			s := model.Sample{
				Timestamp: "2014-04-24 12:11:31.123",
				Time:      1500,
				Fix:       true,
				State:     7,
				Raw:       model.Position{X: 510.5, Y: 380},
				Avg:       model.Position{X: 512, Y: 384},
				PupilSize: 21.25,
				Left:      model.Eye{PupilSize: 20, PupilCenter: model.Position{X: 0.4, Y: 0.5}},
				Right:     model.Eye{PupilSize: 22.5},
			}
			convey.So(lf.WriteSample(s), convey.ShouldBeNil)

			got := lines(path)
			convey.So(got, convey.ShouldHaveLength, 2)
			fields := strings.Split(got[1], "\t")
			convey.So(fields, convey.ShouldHaveLength, len(logfile.Header))
			convey.So(fields[:9], convey.ShouldResemble, []string{
				"2014-04-24 12:11:31.123", "1500", "true", "7", "510.5", "380", "512", "384", "21.25",
			})
			convey.So(fields[13], convey.ShouldEqual, "20")
			convey.So(fields[14], convey.ShouldEqual, "0.4")
			convey.So(fields[20], convey.ShouldEqual, "22.5")
		})

		convey.Convey("Messages and variables are MSG lines", func() {
			convey.So(lf.WriteMessage("ts1", 10, "trial start"), convey.ShouldBeNil)
			convey.So(lf.WriteVar("ts2", 20, "condition", 3), convey.ShouldBeNil)

			got := lines(path)
			convey.So(got[1], convey.ShouldEqual, "MSG\tts1\t10\ttrial start")
			convey.So(got[2], convey.ShouldEqual, "MSG\tts2\t20\tvar condition 3")
		})

		convey.Convey("Concurrent writers never interleave lines", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 10; j++ {
						_ = lf.WriteMessage("ts", int64(j), "message")
						_ = lf.WriteSample(model.Sample{Timestamp: "ts"})
					}
				}()
			}
			wg.Wait()

			got := lines(path)
			convey.So(got, convey.ShouldHaveLength, 161)
			for _, line := range got[1:] {
				n := len(strings.Split(line, "\t"))
				convey.So(n == 4 || n == len(logfile.Header), convey.ShouldBeTrue)
			}
		})

		convey.Convey("Writes after Close fail", func() {
			convey.So(lf.Close(), convey.ShouldBeNil)
			convey.So(lf.Close(), convey.ShouldBeNil)
			err := lf.WriteMessage("ts", 0, "late")
			convey.So(errors.Is(err, logfile.ErrClosed), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Opening an existing file truncates it", t, func() {
		path := filepath.Join(t.TempDir(), "old.tsv")
		convey.So(os.WriteFile(path, []byte("stale\nstale\n"), 0o600), convey.ShouldBeNil)

		lf, err := logfile.Open(path)
		convey.So(err, convey.ShouldBeNil)
		defer lf.Close()
		convey.So(lines(path), convey.ShouldHaveLength, 1)
	})

	convey.Convey("Opening in a missing directory fails", t, func() {
		_, err := logfile.Open(filepath.Join(t.TempDir(), "nope", "x.tsv"))
		convey.So(err, convey.ShouldNotBeNil)
	})
}

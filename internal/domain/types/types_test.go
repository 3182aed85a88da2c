package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/gazetrack/internal/domain/model"
	types "github.com/okian/gazetrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromSample(t *testing.T) {
	Convey("Given a published sample", t, func() {
		s := model.Sample{
			Timestamp: "2014-04-24 12:11:31.123",
			Time:      1000,
			Fix:       true,
			Avg:       model.Position{X: 512, Y: 384},
			Left:      model.Eye{PupilSize: 21.5},
		}

		Convey("When converting it to a view", func() {
			v := types.FromSample(9, s)

			Convey("Then it should carry the gaze and sequence", func() {
				So(v.Seq, ShouldEqual, 9)
				So(v.Gaze, ShouldResemble, types.Point{X: 512, Y: 384})
				So(v.Left.PupilSize, ShouldEqual, 21.5)
			})

			Convey("And it should encode with the wire field names", func() {
				b, err := json.Marshal(v)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"lefteye"`)
				So(string(b), ShouldContainSubstring, `"timestamp":"2014-04-24 12:11:31.123"`)
			})
		})

		Convey("When the device reported no gaze", func() {
			v := types.FromSample(1, model.Sample{})
			So(v.Gaze, ShouldResemble, types.Point{X: -1, Y: -1})
		})
	})
}

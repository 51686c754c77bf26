package models

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const testFanConfig = `{
  "left_fan": [
    {"temperature": 40, "speed": 20},
    {"temperature": 60, "speed": 50},
    {"temperature": 80, "speed": 100}
  ],
  "right_fan": [
    {"temperature": 50, "speed": 30},
    {"temperature": 90, "speed": 100}
  ]
}`

func TestFanDataParsing(t *testing.T) {
	var data FanData

	Convey("parsing is successful", t, func() {
		So(json.Unmarshal([]byte(testFanConfig), &data), ShouldBeNil)

		Convey("both curves are populated", func() {
			So(data.LeftFan, ShouldHaveLength, 3)
			So(data.RightFan, ShouldHaveLength, 2)
			So(data.LeftFan[1], ShouldResemble, FanPoint{Temperature: 60, Speed: 50})
		})

		Convey("the curves validate", func() {
			So(data.Validate(), ShouldBeNil)
		})
	})
}

func TestFanCurveValidation(t *testing.T) {
	Convey("Descending temperatures are rejected", t, func() {
		c := FanCurve{{60, 50}, {40, 20}}
		So(errors.Is(c.Validate(), ErrInvalidCurve), ShouldBeTrue)
	})

	Convey("Speeds above 100% are rejected", t, func() {
		c := FanCurve{{40, 20}, {60, 120}}
		err := FanData{LeftFan: FanCurve{{40, 20}}, RightFan: c}.Validate()
		So(errors.Is(err, ErrInvalidCurve), ShouldBeTrue)
		So(err.Error(), ShouldStartWith, "right_fan")
	})

	Convey("Repeated temperatures are allowed", t, func() {
		c := FanCurve{{40, 20}, {40, 30}, {70, 100}}
		So(c.Validate(), ShouldBeNil)
	})

	Convey("An empty curve is valid", t, func() {
		So(FanCurve{}.Validate(), ShouldBeNil)
	})
}

func TestTdpRange(t *testing.T) {
	Convey("Only byte sized values pass", t, func() {
		So(CheckRange("cpu1", 0), ShouldBeNil)
		So(CheckRange("cpu1", 255), ShouldBeNil)
		So(errors.Is(CheckRange("tcc", 256), ErrTdpRange), ShouldBeTrue)
		So(errors.Is(CheckRange("gpu1", -1), ErrTdpRange), ShouldBeTrue)
	})
}

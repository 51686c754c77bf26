package models

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSettingsNormalize(t *testing.T) {
	Convey("The defaults are left alone", t, func() {
		So(DefaultSettings().Normalize(), ShouldResemble, DefaultSettings())
	})

	Convey("A lower critical temperature is kept", t, func() {
		s := DefaultSettings()
		s.CriticalTemp = 85
		So(s.Normalize().CriticalTemp, ShouldEqual, int64(85))
	})

	Convey("A critical temperature above the ceiling is clamped", t, func() {
		s := DefaultSettings()
		s.CriticalTemp = 120
		So(s.Normalize().CriticalTemp, ShouldEqual, MaxCriticalTemp)
	})

	Convey("A zero filled settings object gets usable safety fields", t, func() {
		got := Settings{AutoStart: true}.Normalize()
		So(got.AutoStart, ShouldBeTrue)
		So(got.CriticalTemp, ShouldEqual, MaxCriticalTemp)
		So(got.FaultAutoOffset, ShouldEqual, int64(-64))
		So(got.FaultStalledOffset, ShouldEqual, int64(-80))
	})

	Convey("Equal fault offsets fall back to the defaults", t, func() {
		s := DefaultSettings()
		s.FaultStalledOffset = s.FaultAutoOffset
		got := s.Normalize()
		So(got.FaultAutoOffset, ShouldEqual, int64(-64))
		So(got.FaultStalledOffset, ShouldEqual, int64(-80))
	})

	Convey("Distinct non-zero fault offsets are kept", t, func() {
		s := DefaultSettings()
		s.FaultAutoOffset, s.FaultStalledOffset = -32, -48
		got := s.Normalize()
		So(got.FaultAutoOffset, ShouldEqual, int64(-32))
		So(got.FaultStalledOffset, ShouldEqual, int64(-48))
	})
}

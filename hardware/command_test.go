package hardware

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCommandEncoding(t *testing.T) {
	Convey("Given the commands used by the fan controller", t, func() {
		Convey("a read sets the mode flag and leaves the data byte clear", func() {
			cmd := ReadCommand(RegFanMode)
			So(cmd.Value(), ShouldEqual, uint64(0x0000010000000751))
			So(cmd.String(), ShouldEqual, "0x0000010000000751")
			So(cmd.Payload(), ShouldEqual, "1099511629649")
		})

		Convey("a write places the data byte above the address", func() {
			cmd := WriteCommand(RegLeftPwm, 0x64)
			So(cmd.Value(), ShouldEqual, uint64(0x0000000000641809))
			So(cmd.String(), ShouldEqual, "0x0000000000641809")
		})

		Convey("the restore command matches the firmware value", func() {
			So(WriteCommand(RegFanMode, FanModeRestore).Value(), ShouldEqual, uint64(0xA00751))
			So(WriteCommand(RegFanMode, FanModeManual).Value(), ShouldEqual, uint64(0x400751))
		})
	})
}

func TestCommandRoundTrip(t *testing.T) {
	addresses := []RegisterAddress{RegFanMode, RegLeftPwm, RegRightPwm, RegLeftTachHi}
	data := []byte{0x00, 0x40, 0xA0, 0xFF}

	Convey("Encoding then decoding recovers the command", t, func() {
		for _, addr := range addresses {
			for _, d := range data {
				w := WriteCommand(addr, d)
				got, err := ParseCommand(w.String())
				So(err, ShouldBeNil)
				So(got, ShouldResemble, w)

				got, err = ParsePayload(w.Payload())
				So(err, ShouldBeNil)
				So(got, ShouldResemble, w)
			}
			r := ReadCommand(addr)
			got, err := ParseCommand(r.String())
			So(err, ShouldBeNil)
			So(got, ShouldResemble, r)
		}
	})

	Convey("Leading zero nibbles may be omitted", t, func() {
		got, err := ParseCommand("0xA00751")
		So(err, ShouldBeNil)
		So(got, ShouldResemble, WriteCommand(RegFanMode, 0xA0))
	})
}

func TestCommandParseErrors(t *testing.T) {
	Convey("Malformed command strings are protocol errors", t, func() {
		for _, s := range []string{"", "0x", "751", "0xZZ", "0x0000020000000751", "0x0100000000000751"} {
			_, err := ParseCommand(s)
			So(errors.Is(err, ErrProtocol), ShouldBeTrue)
		}
	})

	Convey("Replies are signed decimal integers", t, func() {
		v, err := ParseReply("-64")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, int64(-64))

		_, err = ParseReply("0x40")
		So(errors.Is(err, ErrProtocol), ShouldBeTrue)
	})
}

func TestResultHelpers(t *testing.T) {
	Convey("Masking helpers extract the meaningful bits", t, func() {
		So(LowByte(0x6C3A), ShouldEqual, int64(0x3A))
		So(Word(0x112, 0x34), ShouldEqual, int64(0x1234))
	})
}

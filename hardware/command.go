package hardware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RegisterAddress identifies a register behind the vendor control method.
type RegisterAddress uint16

// Known registers of the X15 embedded controller.
const (
	RegCpuTemp     RegisterAddress = 0x043E
	RegGpuTemp     RegisterAddress = 0x044F
	RegLeftTachHi  RegisterAddress = 0x046C
	RegLeftTachLo  RegisterAddress = 0x046D
	RegRightTachHi RegisterAddress = 0x0464
	RegRightTachLo RegisterAddress = 0x0465
	RegFanMode     RegisterAddress = 0x0751
	RegLeftPwm     RegisterAddress = 0x1809
	RegRightPwm    RegisterAddress = 0x1804
	RegCpuPowerPL1 RegisterAddress = 0x0783
	RegCpuPowerPL2 RegisterAddress = 0x0784
	RegGpuPower1   RegisterAddress = 0x073D
	RegGpuPower2   RegisterAddress = 0x0733
	RegThermalTrip RegisterAddress = 0x0786
)

// Values understood by the fan-mode register.
const (
	// FanModeBaseline is subtracted from a fan-mode read before comparing
	// against the sentinel offsets below.
	FanModeBaseline int64 = 27728
	// FanModeAutoOffset is reported while the firmware owns the fans.
	FanModeAutoOffset int64 = -64
	// FanModeStalledOffset is the second fault code seen on the register.
	FanModeStalledOffset int64 = -80

	FanModeManual  byte = 0x40
	FanModeRestore byte = 0xA0
)

// Mode selects between a register read and a register write.
type Mode uint8

const (
	ModeWrite Mode = 0
	ModeRead  Mode = 1
)

func (m Mode) String() string {
	if m == ModeRead {
		return "read"
	}
	return "write"
}

// Byte offsets are counted from the most significant end of the word:
// the mode flag sits at offset 2, the data byte at offset 5.
const (
	modeShift = 40
	dataShift = 16
)

var (
	// ErrProtocol reports a malformed command or reply string.
	ErrProtocol = errors.New("register protocol error")
	// ErrSession reports a failure to open a management session.
	ErrSession = errors.New("wmi session failed")
	// ErrCall reports a failed control method invocation.
	ErrCall = errors.New("control method call failed")
)

// Command is one logical register transaction.
type Command struct {
	Mode    Mode
	Address RegisterAddress
	Data    byte // ignored for reads
}

// ReadCommand builds a read of addr.
func ReadCommand(addr RegisterAddress) Command {
	return Command{Mode: ModeRead, Address: addr}
}

// WriteCommand builds a write of data into addr.
func WriteCommand(addr RegisterAddress, data byte) Command {
	return Command{Mode: ModeWrite, Address: addr, Data: data}
}

// Value packs the command into the 64-bit word passed to the control method.
func (c Command) Value() uint64 {
	v := uint64(c.Address)
	if c.Mode == ModeRead {
		return v | 1<<modeShift
	}
	return v | uint64(c.Data)<<dataShift
}

// String returns the 0x-prefixed hexadecimal form of the command.
func (c Command) String() string {
	return fmt.Sprintf("0x%016X", c.Value())
}

// Payload returns the decimal form that is actually sent in the Data field.
func (c Command) Payload() string {
	return strconv.FormatUint(c.Value(), 10)
}

// ParseCommand decodes the hexadecimal form produced by Command.String.
func ParseCommand(s string) (Command, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hex == s || hex == "" {
		return Command{}, fmt.Errorf("%w: command %q lacks 0x prefix", ErrProtocol, s)
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: command %q: %v", ErrProtocol, s, err)
	}
	return DecodeValue(v)
}

// DecodeValue unpacks a raw command word.
func DecodeValue(v uint64) (Command, error) {
	const known = 0xFF<<modeShift | 0xFF<<dataShift | 0xFFFF
	if v&^uint64(known) != 0 {
		return Command{}, fmt.Errorf("%w: command 0x%X sets reserved bytes", ErrProtocol, v)
	}
	cmd := Command{Address: RegisterAddress(v & 0xFFFF)}
	switch flag := (v >> modeShift) & 0xFF; flag {
	case 0:
		cmd.Mode = ModeWrite
		cmd.Data = byte(v >> dataShift)
	case 1:
		cmd.Mode = ModeRead
	default:
		return Command{}, fmt.Errorf("%w: unknown mode flag 0x%02X", ErrProtocol, flag)
	}
	return cmd, nil
}

// ParseReply parses the control method's Return value.
func ParseReply(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: reply %q: %v", ErrProtocol, s, err)
	}
	return v, nil
}

// ParsePayload decodes the decimal Data field back into a command.
func ParsePayload(s string) (Command, error) {
	v, err := parseDecimalPayload(s)
	if err != nil {
		return Command{}, err
	}
	return DecodeValue(v)
}

func parseDecimalPayload(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: payload %q: %v", ErrProtocol, s, err)
	}
	return v, nil
}

func formatReply(v int64) string { return strconv.FormatInt(v, 10) }

// LowByte masks a register result to its low 8 bits.
func LowByte(v int64) int64 { return v & 0xFF }

// Word joins two single byte reads into one 16-bit value.
func Word(hi, lo int64) int64 { return (hi&0xFF)<<8 | lo }

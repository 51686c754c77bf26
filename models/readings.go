package models

import (
	"errors"
	"fmt"
)

// ErrTdpRange is returned for a power-limit value that does not fit a byte.
var ErrTdpRange = errors.New("tdp value out of range")

// FanSpeeds is the live readback shown by the front end.
type FanSpeeds struct {
	LeftFanSpeed  int64 `json:"left_fan_speed"`
	RightFanSpeed int64 `json:"right_fan_speed"`
	LeftTemp      int64 `json:"left_temp"`
	RightTemp     int64 `json:"right_temp"`
}

// Tdp holds the CPU and GPU power limits and the thermal trip point.
type Tdp struct {
	Cpu1 int64 `json:"cpu1"`
	Cpu2 int64 `json:"cpu2"`
	Gpu1 int64 `json:"gpu1"`
	Gpu2 int64 `json:"gpu2"`
	Tcc  int64 `json:"tcc"`
}

// CheckRange reports whether v can be written to a single byte register.
func CheckRange(field string, v int64) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("%w: %s=%d, must be between 0 and 255", ErrTdpRange, field, v)
	}
	return nil
}

package models

import (
	"errors"
	"fmt"
)

// ErrInvalidCurve is wrapped by every curve validation failure.
var ErrInvalidCurve = errors.New("invalid fan curve")

// FanPoint is a single breakpoint of a fan curve.
type FanPoint struct {
	Temperature int64 `json:"temperature"` // °C
	Speed       int64 `json:"speed"`       // percent, 0-100
}

// FanCurve is a list of breakpoints ordered by ascending temperature.
type FanCurve []FanPoint

// FanData is the document stored in fan_config.json: one curve per fan.
// The left fan follows the CPU, the right fan follows the GPU.
type FanData struct {
	LeftFan  FanCurve `json:"left_fan"`
	RightFan FanCurve `json:"right_fan"`
}

// Validate checks that temperatures are ascending and speeds lie in 0-100.
// Equal consecutive temperatures are accepted; the interpolator guards the
// zero-width bracket.
func (c FanCurve) Validate() error {
	for i, p := range c {
		if p.Speed < 0 || p.Speed > 100 {
			return fmt.Errorf("%w: point %d has speed %d%%, must be between 0 and 100", ErrInvalidCurve, i, p.Speed)
		}
		if i > 0 && p.Temperature < c[i-1].Temperature {
			return fmt.Errorf("%w: point %d (%d°C) is below point %d (%d°C), temperatures must ascend",
				ErrInvalidCurve, i, p.Temperature, i-1, c[i-1].Temperature)
		}
	}
	return nil
}

// Validate checks both curves.
func (d FanData) Validate() error {
	if err := d.LeftFan.Validate(); err != nil {
		return fmt.Errorf("left_fan: %w", err)
	}
	if err := d.RightFan.Validate(); err != nil {
		return fmt.Errorf("right_fan: %w", err)
	}
	return nil
}

package controller

import (
	"fmt"

	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
)

// GetFanSpeeds reads both tachometers and both temperatures.
func GetFanSpeeds(regs hardware.Transactor) (models.FanSpeeds, error) {
	leftSpeed, err := readTach(regs, hardware.RegLeftTachHi, hardware.RegLeftTachLo)
	if err != nil {
		return models.FanSpeeds{}, fmt.Errorf("reading left fan: %w", err)
	}
	rightSpeed, err := readTach(regs, hardware.RegRightTachHi, hardware.RegRightTachLo)
	if err != nil {
		return models.FanSpeeds{}, fmt.Errorf("reading right fan: %w", err)
	}
	leftTemp, err := leftTemperature(regs)
	if err != nil {
		return models.FanSpeeds{}, fmt.Errorf("reading CPU temperature: %w", err)
	}
	rightTemp, err := rightTemperature(regs)
	if err != nil {
		return models.FanSpeeds{}, fmt.Errorf("reading GPU temperature: %w", err)
	}
	return models.FanSpeeds{
		LeftFanSpeed:  leftSpeed,
		RightFanSpeed: rightSpeed,
		LeftTemp:      leftTemp,
		RightTemp:     rightTemp,
	}, nil
}

func readTach(regs hardware.Transactor, hi, lo hardware.RegisterAddress) (int64, error) {
	h, err := hardware.Read(regs, hi)
	if err != nil {
		return 0, err
	}
	l, err := hardware.Read(regs, lo)
	if err != nil {
		return 0, err
	}
	return hardware.Word(h, l), nil
}

// leftTemperature returns the CPU sensor unmasked. Unlike rightTemperature
// the full register value is reported, upper byte included.
func leftTemperature(regs hardware.Transactor) (int64, error) {
	return hardware.Read(regs, hardware.RegCpuTemp)
}

// rightTemperature returns the GPU sensor masked to its low byte.
func rightTemperature(regs hardware.Transactor) (int64, error) {
	v, err := hardware.Read(regs, hardware.RegGpuTemp)
	if err != nil {
		return 0, err
	}
	return hardware.LowByte(v), nil
}

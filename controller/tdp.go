package controller

import (
	"errors"
	"fmt"
	"log"

	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
)

// TdpController reads and writes the power-limit registers. Every access is
// a one-shot transaction; it shares nothing with the fan loop.
type TdpController struct {
	regs     hardware.Transactor
	notifier Notifier
}

// NewTdpController creates a TDP interface over regs.
func NewTdpController(regs hardware.Transactor, notifier Notifier) *TdpController {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &TdpController{regs: regs, notifier: notifier}
}

// GetTdp reads the five power-limit registers. CPU1 and both GPU limits are
// masked to their low byte; CPU2 and the trip point are returned raw.
func (t *TdpController) GetTdp() (models.Tdp, error) {
	var tdp models.Tdp
	reads := []struct {
		addr hardware.RegisterAddress
		dst  *int64
		mask bool
	}{
		{hardware.RegGpuPower1, &tdp.Gpu1, true},
		{hardware.RegGpuPower2, &tdp.Gpu2, true},
		{hardware.RegCpuPowerPL1, &tdp.Cpu1, true},
		{hardware.RegCpuPowerPL2, &tdp.Cpu2, false},
		{hardware.RegThermalTrip, &tdp.Tcc, false},
	}
	for _, r := range reads {
		v, err := hardware.Read(t.regs, r.addr)
		if err != nil {
			return models.Tdp{}, fmt.Errorf("reading TDP register 0x%04X: %w", uint16(r.addr), err)
		}
		if r.mask {
			v = hardware.LowByte(v)
		}
		*r.dst = v
	}
	return tdp, nil
}

// SetTdp writes each field to its register. Fields are independent: a value
// outside 0-255 or a failed write skips that field only. The notification
// is sent regardless; the joined per-field errors are returned.
func (t *TdpController) SetTdp(tdp models.Tdp) error {
	writes := []struct {
		name string
		addr hardware.RegisterAddress
		v    int64
	}{
		{"gpu1", hardware.RegGpuPower1, tdp.Gpu1},
		{"gpu2", hardware.RegGpuPower2, tdp.Gpu2},
		{"cpu1", hardware.RegCpuPowerPL1, tdp.Cpu1},
		{"cpu2", hardware.RegCpuPowerPL2, tdp.Cpu2},
		{"tcc", hardware.RegThermalTrip, tdp.Tcc},
	}
	var errs []error
	for _, w := range writes {
		if err := models.CheckRange(w.name, w.v); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := hardware.Write(t.regs, w.addr, byte(w.v)); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", w.name, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Printf("TDP update incomplete: %v", err)
	}
	t.notifier.Notify(MsgTdpSet)
	return err
}

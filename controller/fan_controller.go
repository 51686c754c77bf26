package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
)

const defaultTickInterval = time.Second

// Fault names a fan-mode reading that needs recovery while the loop runs.
type Fault string

const (
	FaultAutoMode Fault = "auto-mode"
	FaultStalled  Fault = "stalled"
)

// Advisor accepts commands whose reply is only logged. The dedicated
// register worker implements it.
type Advisor interface {
	Submit(cmd hardware.Command) bool
}

// Options tune a FanController. Zero values select the defaults. The
// restore delay is never shorter than one tick interval.
type Options struct {
	TickInterval time.Duration
	RestoreDelay time.Duration
	Advisor      Advisor
	Debug        bool
}

// SettingsSnapshot holds a copy of the main app settings relevant to the controller.
type SettingsSnapshot struct {
	CriticalTemp       int64
	FaultAutoOffset    int64
	FaultStalledOffset int64
}

// PublicState is a thread-safe snapshot of the controller for the UI.
type PublicState struct {
	Running    bool
	CpuTemp    int64
	GpuTemp    int64
	LeftSpeed  int64 // last written percentage
	RightSpeed int64
	Faults     int
}

// FanController runs the closed fan loop: read both temperatures, look up
// the curves, write both PWM registers, once per tick.
type FanController struct {
	regs     hardware.Transactor
	notifier Notifier
	advisor  Advisor
	debug    bool

	tickInterval time.Duration
	restoreDelay time.Duration

	// lifecycle serializes Start and Stop; stateMutex only guards fields.
	lifecycle  sync.Mutex
	stateMutex sync.RWMutex
	settings   SettingsSnapshot
	running    bool
	cancel     context.CancelFunc
	loopDone   chan struct{}
	restored   chan struct{}

	lastCpuTemp int64
	lastGpuTemp int64
	lastLeft    int64
	lastRight   int64
	faults      int
}

// NewFanController creates a stopped controller talking to regs.
func NewFanController(regs hardware.Transactor, notifier Notifier, opts Options) *FanController {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.RestoreDelay < opts.TickInterval {
		opts.RestoreDelay = opts.TickInterval
	}
	defaults := models.DefaultSettings()
	return &FanController{
		regs:         regs,
		notifier:     notifier,
		advisor:      opts.Advisor,
		debug:        opts.Debug,
		tickInterval: opts.TickInterval,
		restoreDelay: opts.RestoreDelay,
		settings: SettingsSnapshot{
			CriticalTemp:       defaults.CriticalTemp,
			FaultAutoOffset:    defaults.FaultAutoOffset,
			FaultStalledOffset: defaults.FaultStalledOffset,
		},
	}
}

// UpdateSettings safely updates the controller's settings from the main app.
// The settings are normalized first, so the critical threshold never exceeds
// models.MaxCriticalTemp.
func (fc *FanController) UpdateSettings(s models.Settings) {
	s = s.Normalize()
	fc.stateMutex.Lock()
	defer fc.stateMutex.Unlock()
	fc.settings = SettingsSnapshot{
		CriticalTemp:       s.CriticalTemp,
		FaultAutoOffset:    s.FaultAutoOffset,
		FaultStalledOffset: s.FaultStalledOffset,
	}
	log.Printf("Fan controller settings updated: CritTemp=%d, Faults=%d/%d",
		s.CriticalTemp, s.FaultAutoOffset, s.FaultStalledOffset)
}

// Start switches the fans to manual mode and launches the control loop with
// the given curves. Calling Start while running is a logged no-op.
func (fc *FanController) Start(data models.FanData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if fc.advisor != nil && !fc.advisor.Submit(hardware.ReadCommand(hardware.RegGpuTemp)) {
		log.Println("Register worker did not accept the start command")
	}

	fc.lifecycle.Lock()
	defer fc.lifecycle.Unlock()

	fc.stateMutex.RLock()
	running, pending := fc.running, fc.restored
	fc.stateMutex.RUnlock()

	if running {
		log.Println("Fan control is already running.")
		return nil
	}
	if pending != nil {
		// A stop is still handing the fans back to the firmware; let it
		// finish before taking them again.
		<-pending
	}

	if err := fc.enableManual(false); err != nil {
		return fmt.Errorf("switching fans to manual mode: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	fc.stateMutex.Lock()
	fc.restored = nil
	fc.running = true
	fc.cancel = cancel
	fc.loopDone = done
	fc.stateMutex.Unlock()
	go fc.controlLoop(ctx, data, done)

	log.Println("Fan Controller started.")
	fc.notifier.Notify(MsgRunning)
	return nil
}

// Stop ends the control loop and hands the fans back to the firmware. The
// restore write happens once the loop has exited and at least the restore
// delay has passed; the returned channel is closed after it. Stop also
// restores when the loop was not running.
func (fc *FanController) Stop() <-chan struct{} {
	fc.lifecycle.Lock()
	defer fc.lifecycle.Unlock()
	fc.stateMutex.Lock()
	defer fc.stateMutex.Unlock()

	if !fc.running && fc.restored != nil {
		select {
		case <-fc.restored:
		default:
			return fc.restored
		}
	}

	delay := time.NewTimer(fc.restoreDelay)
	cancel, loopDone := fc.cancel, fc.loopDone
	fc.running = false
	fc.cancel = nil
	fc.loopDone = nil
	if cancel != nil {
		cancel()
	}

	restored := make(chan struct{})
	fc.restored = restored
	go func() {
		defer close(restored)
		if loopDone != nil {
			<-loopDone
		}
		<-delay.C
		if _, err := hardware.Write(fc.regs, hardware.RegFanMode, hardware.FanModeRestore); err != nil {
			log.Printf("Error restoring automatic fan mode: %v", err)
			return
		}
		log.Println("Fan Controller stopped.")
		fc.notifier.Notify(MsgStopped)
	}()
	return restored
}

// Shutdown stops the loop and waits until the firmware owns the fans again.
func (fc *FanController) Shutdown() {
	<-fc.Stop()
}

// IsRunning reports whether the control loop is active.
func (fc *FanController) IsRunning() bool {
	fc.stateMutex.RLock()
	defer fc.stateMutex.RUnlock()
	return fc.running
}

// GetPublicState returns a thread-safe snapshot of the current state for UI rendering.
func (fc *FanController) GetPublicState() PublicState {
	fc.stateMutex.RLock()
	defer fc.stateMutex.RUnlock()
	return PublicState{
		Running:    fc.running,
		CpuTemp:    fc.lastCpuTemp,
		GpuTemp:    fc.lastGpuTemp,
		LeftSpeed:  fc.lastLeft,
		RightSpeed: fc.lastRight,
		Faults:     fc.faults,
	}
}

// controlLoop is the heart of the fan controller.
func (fc *FanController) controlLoop(ctx context.Context, data models.FanData, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Fan control loop exited.")
			return
		case <-timer.C:
			fc.tick(data)
			timer.Reset(fc.tickInterval)
		}
	}
}

// tick performs a single control cycle. Read failures abort the cycle only.
func (fc *FanController) tick(data models.FanData) {
	cpuTemp, err := hardware.Read(fc.regs, hardware.RegCpuTemp)
	if err != nil {
		log.Printf("Error reading CPU temperature: %v", err)
		return
	}
	gpuRaw, err := hardware.Read(fc.regs, hardware.RegGpuTemp)
	if err != nil {
		log.Printf("Error reading GPU temperature: %v", err)
		return
	}
	gpuTemp := hardware.LowByte(gpuRaw)

	fc.stateMutex.Lock()
	fc.lastCpuTemp, fc.lastGpuTemp = cpuTemp, gpuTemp
	critical := fc.settings.CriticalTemp
	fc.stateMutex.Unlock()

	if fc.debug {
		log.Printf("CPU Temp: %d, GPU Temp: %d", cpuTemp, gpuTemp)
	}

	if cpuTemp > critical || gpuTemp > critical {
		log.Printf("CRITICAL: temperature %d/%d°C exceeds %d°C, forcing full speed", cpuTemp, gpuTemp, critical)
		if err := fc.fanSet(100, 100); err != nil {
			log.Printf("Error forcing full speed: %v", err)
		}
		return
	}

	left, right, ok := targetSpeeds(data, cpuTemp, gpuTemp)
	if !ok {
		return
	}
	if fc.debug {
		log.Printf("cpu_t: %d l_fan: %d gpu_t: %d r_fan: %d", cpuTemp, left, gpuTemp, right)
	}
	if err := fc.fanSet(left, right); err != nil {
		log.Printf("Error setting fan speed: %v", err)
	}
}

// targetSpeeds brackets the CPU temperature on the left curve and the GPU
// temperature on the right curve. Both must match for a write to happen.
func targetSpeeds(data models.FanData, cpuTemp, gpuTemp int64) (left, right int64, ok bool) {
	left, ok = SpeedAt(data.LeftFan, cpuTemp)
	if !ok {
		return 0, 0, false
	}
	right, ok = SpeedAt(data.RightFan, gpuTemp)
	if !ok {
		return 0, 0, false
	}
	return left, right, true
}

// fanSet checks the fan-mode register for faults, then writes both PWM
// registers.
func (fc *FanController) fanSet(left, right int64) error {
	mode, err := hardware.Read(fc.regs, hardware.RegFanMode)
	if err != nil {
		return fmt.Errorf("reading fan mode: %w", err)
	}
	for _, f := range fc.detectFaults(mode) {
		log.Printf("Fan mode fault %q (reading %d), attempting recovery", f, mode)
		fc.stateMutex.Lock()
		fc.faults++
		fc.stateMutex.Unlock()
		if err := fc.recoverFrom(f); err != nil {
			log.Printf("Recovery from %q failed: %v", f, err)
		}
		fc.notifier.Notify(MsgRecovered)
	}

	if _, err := hardware.Write(fc.regs, hardware.RegLeftPwm, scaleSpeedToECValue(left)); err != nil {
		return fmt.Errorf("writing left fan: %w", err)
	}
	if _, err := hardware.Write(fc.regs, hardware.RegRightPwm, scaleSpeedToECValue(right)); err != nil {
		return fmt.Errorf("writing right fan: %w", err)
	}

	fc.stateMutex.Lock()
	fc.lastLeft, fc.lastRight = left, right
	fc.stateMutex.Unlock()
	return nil
}

// detectFaults returns every fault condition matched by a fan-mode reading.
// The conditions are checked independently.
func (fc *FanController) detectFaults(reading int64) []Fault {
	fc.stateMutex.RLock()
	s := fc.settings
	fc.stateMutex.RUnlock()

	offset := reading - hardware.FanModeBaseline
	var faults []Fault
	if offset == s.FaultAutoOffset {
		faults = append(faults, FaultAutoMode)
	}
	if offset == s.FaultStalledOffset {
		faults = append(faults, FaultStalled)
	}
	return faults
}

// recoverFrom handles one fault. Both currently re-assert manual mode; the
// firmware already reported a non-manual state, so the write is forced.
func (fc *FanController) recoverFrom(f Fault) error {
	switch f {
	case FaultAutoMode, FaultStalled:
		return fc.enableManual(true)
	default:
		return fmt.Errorf("unknown fault %q", f)
	}
}

// enableManual writes the manual-enable value to the fan-mode register. If
// force is false the register is read first and only written while it
// reports automatic mode.
func (fc *FanController) enableManual(force bool) error {
	if !force {
		mode, err := hardware.Read(fc.regs, hardware.RegFanMode)
		if err != nil {
			return err
		}
		if mode-hardware.FanModeBaseline != hardware.FanModeAutoOffset {
			return nil
		}
	}
	_, err := hardware.Write(fc.regs, hardware.RegFanMode, hardware.FanModeManual)
	return err
}

// scaleSpeedToECValue converts a 0-100 percentage to the raw PWM value,
// which counts in half percent steps.
func scaleSpeedToECValue(percent int64) byte {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return 200
	}
	return byte(percent * 2)
}

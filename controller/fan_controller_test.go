package controller

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count(message string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.messages {
		if m == message {
			c++
		}
	}
	return c
}

type recordingAdvisor struct {
	mu   sync.Mutex
	cmds []hardware.Command
}

func (a *recordingAdvisor) Submit(cmd hardware.Command) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cmds = append(a.cmds, cmd)
	return true
}

// eventually polls cond until it holds or the timeout expires.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

var testFanData = models.FanData{
	LeftFan:  models.FanCurve{{Temperature: 40, Speed: 20}, {Temperature: 60, Speed: 50}, {Temperature: 80, Speed: 100}},
	RightFan: models.FanCurve{{Temperature: 40, Speed: 30}, {Temperature: 90, Speed: 100}},
}

func TestFanControllerLoop(t *testing.T) {
	Convey("Given a controller over the simulated registers", t, func() {
		sim := hardware.NewSimulator()
		notifier := &recordingNotifier{}
		advisor := &recordingAdvisor{}
		fc := NewFanController(sim, notifier, Options{
			TickInterval: 10 * time.Millisecond,
			RestoreDelay: 10 * time.Millisecond,
			Advisor:      advisor,
		})
		Reset(fc.Shutdown)

		sim.Set(hardware.RegCpuTemp, 50)
		sim.Set(hardware.RegGpuTemp, 40)

		Convey("Start takes the fans from the firmware and follows the curves", func() {
			So(fc.Start(testFanData), ShouldBeNil)
			So(fc.IsRunning(), ShouldBeTrue)
			So(sim.Writes(hardware.RegFanMode), ShouldResemble, []byte{hardware.FanModeManual})
			So(advisor.cmds, ShouldResemble, []hardware.Command{hardware.ReadCommand(hardware.RegGpuTemp)})
			So(notifier.count(MsgRunning), ShouldEqual, 1)

			So(eventually(func() bool { return len(sim.Writes(hardware.RegLeftPwm)) > 0 }), ShouldBeTrue)
			So(sim.Get(hardware.RegLeftPwm), ShouldEqual, int64(68))
			So(sim.Get(hardware.RegRightPwm), ShouldEqual, int64(60))

			state := fc.GetPublicState()
			So(state.Running, ShouldBeTrue)
			So(state.CpuTemp, ShouldEqual, int64(50))
			So(state.LeftSpeed, ShouldEqual, int64(34))
			So(state.RightSpeed, ShouldEqual, int64(30))
		})

		Convey("a second Start is a no-op", func() {
			So(fc.Start(testFanData), ShouldBeNil)
			So(fc.Start(testFanData), ShouldBeNil)
			So(sim.Writes(hardware.RegFanMode), ShouldHaveLength, 1)
			So(notifier.count(MsgRunning), ShouldEqual, 1)
		})

		Convey("a sensor above 95°C forces both fans to full speed", func() {
			sim.Set(hardware.RegCpuTemp, 96)
			So(fc.Start(models.FanData{}), ShouldBeNil)
			So(eventually(func() bool { return len(sim.Writes(hardware.RegRightPwm)) > 0 }), ShouldBeTrue)
			So(sim.Get(hardware.RegLeftPwm), ShouldEqual, int64(200))
			So(sim.Get(hardware.RegRightPwm), ShouldEqual, int64(200))
		})

		Convey("the GPU reading is masked to its low byte before the check", func() {
			sim.Set(hardware.RegGpuTemp, 0x6C00|96)
			So(fc.Start(testFanData), ShouldBeNil)
			So(eventually(func() bool { return len(sim.Writes(hardware.RegLeftPwm)) > 0 }), ShouldBeTrue)
			So(sim.Get(hardware.RegLeftPwm), ShouldEqual, int64(200))
			So(fc.GetPublicState().GpuTemp, ShouldEqual, int64(96))
		})

		Convey("without a bracket on either curve nothing is written", func() {
			sim.Set(hardware.RegGpuTemp, 91)
			So(fc.Start(testFanData), ShouldBeNil)
			So(eventually(func() bool { return fc.GetPublicState().GpuTemp == 91 }), ShouldBeTrue)
			time.Sleep(30 * time.Millisecond)
			So(sim.Writes(hardware.RegLeftPwm), ShouldBeEmpty)
			So(sim.Writes(hardware.RegRightPwm), ShouldBeEmpty)
		})

		Convey("a stalled fan-mode reading triggers recovery and a notification", func() {
			So(fc.Start(testFanData), ShouldBeNil)
			sim.Set(hardware.RegFanMode, hardware.FanModeBaseline+hardware.FanModeStalledOffset)
			So(eventually(func() bool { return notifier.count(MsgRecovered) > 0 }), ShouldBeTrue)
			So(sim.Get(hardware.RegFanMode), ShouldEqual, hardware.FanModeBaseline)
			So(fc.GetPublicState().Faults, ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("a firmware takeover while running is detected as the auto-mode fault", func() {
			So(fc.Start(testFanData), ShouldBeNil)
			sim.Set(hardware.RegFanMode, hardware.FanModeBaseline+hardware.FanModeAutoOffset)
			So(eventually(func() bool { return notifier.count(MsgRecovered) > 0 }), ShouldBeTrue)
			So(sim.Get(hardware.RegFanMode), ShouldEqual, hardware.FanModeBaseline)
		})

		Convey("a critical temperature above 95°C in the settings is clamped", func() {
			s := models.DefaultSettings()
			s.CriticalTemp = 120
			fc.UpdateSettings(s)
			sim.Set(hardware.RegCpuTemp, 99)
			So(fc.Start(testFanData), ShouldBeNil)
			So(eventually(func() bool { return len(sim.Writes(hardware.RegLeftPwm)) > 0 }), ShouldBeTrue)
			So(sim.Get(hardware.RegLeftPwm), ShouldEqual, int64(200))
			So(sim.Get(hardware.RegRightPwm), ShouldEqual, int64(200))
		})

		Convey("zero filled settings keep the curve and do not flag manual mode", func() {
			fc.UpdateSettings(models.Settings{AutoStart: true})
			So(fc.Start(testFanData), ShouldBeNil)
			So(eventually(func() bool { return len(sim.Writes(hardware.RegLeftPwm)) >= 3 }), ShouldBeTrue)
			for _, w := range sim.Writes(hardware.RegLeftPwm) {
				So(w, ShouldEqual, byte(68))
			}
			So(sim.Writes(hardware.RegFanMode), ShouldResemble, []byte{hardware.FanModeManual})
			So(notifier.count(MsgRecovered), ShouldEqual, 0)
			So(fc.GetPublicState().Faults, ShouldEqual, 0)
		})

		Convey("a failed temperature read skips the tick but keeps the loop alive", func() {
			sim.FailOn(hardware.RegCpuTemp, hardware.ErrCall)
			So(fc.Start(testFanData), ShouldBeNil)
			time.Sleep(30 * time.Millisecond)
			So(sim.Writes(hardware.RegLeftPwm), ShouldBeEmpty)
			sim.FailOn(hardware.RegCpuTemp, nil)
			So(eventually(func() bool { return len(sim.Writes(hardware.RegLeftPwm)) > 0 }), ShouldBeTrue)
			So(fc.IsRunning(), ShouldBeTrue)
		})
	})
}

func TestFanControllerStartFailures(t *testing.T) {
	Convey("An unsorted curve is rejected", t, func() {
		fc := NewFanController(hardware.NewSimulator(), &recordingNotifier{}, Options{})
		err := fc.Start(models.FanData{LeftFan: models.FanCurve{{Temperature: 60, Speed: 50}, {Temperature: 40, Speed: 20}}})
		So(errors.Is(err, models.ErrInvalidCurve), ShouldBeTrue)
		So(fc.IsRunning(), ShouldBeFalse)
	})

	Convey("A failed mode read leaves the controller stopped", t, func() {
		sim := hardware.NewSimulator()
		sim.FailOn(hardware.RegFanMode, hardware.ErrSession)
		fc := NewFanController(sim, &recordingNotifier{}, Options{})
		err := fc.Start(testFanData)
		So(errors.Is(err, hardware.ErrSession), ShouldBeTrue)
		So(fc.IsRunning(), ShouldBeFalse)
	})

	Convey("Start leaves manual mode alone when it is already set", t, func() {
		sim := hardware.NewSimulator()
		sim.Set(hardware.RegFanMode, hardware.FanModeBaseline)
		fc := NewFanController(sim, &recordingNotifier{}, Options{TickInterval: 20 * time.Millisecond})
		So(fc.Start(testFanData), ShouldBeNil)
		So(sim.Writes(hardware.RegFanMode), ShouldBeEmpty)
		fc.Shutdown()
	})
}

// gatedRegs holds the first fan-mode read until gate is closed.
type gatedRegs struct {
	hardware.Transactor
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedRegs) Transact(cmd hardware.Command) (int64, error) {
	if cmd.Mode == hardware.ModeRead && cmd.Address == hardware.RegFanMode {
		g.once.Do(func() {
			close(g.entered)
			<-g.gate
		})
	}
	return g.Transactor.Transact(cmd)
}

func TestFanControllerStartDoesNotBlockState(t *testing.T) {
	Convey("While Start is switching the fan mode", t, func() {
		regs := &gatedRegs{
			Transactor: hardware.NewSimulator(),
			entered:    make(chan struct{}),
			gate:       make(chan struct{}),
		}
		fc := NewFanController(regs, &recordingNotifier{}, Options{TickInterval: 10 * time.Millisecond})
		started := make(chan error, 1)
		go func() { started <- fc.Start(testFanData) }()
		<-regs.entered

		Convey("the public state can still be read", func() {
			got := make(chan PublicState, 1)
			go func() { got <- fc.GetPublicState() }()
			var state PublicState
			select {
			case state = <-got:
			case <-time.After(time.Second):
				t.Fatal("GetPublicState blocked during Start")
			}
			So(state.Running, ShouldBeFalse)

			close(regs.gate)
			So(<-started, ShouldBeNil)
			So(fc.IsRunning(), ShouldBeTrue)
			fc.Shutdown()
		})
	})
}

func TestFanControllerRestoreDelay(t *testing.T) {
	Convey("A tick longer than the restore delay still delays the restore by a full tick", t, func() {
		const tick = 150 * time.Millisecond
		sim := hardware.NewSimulator()
		fc := NewFanController(sim, &recordingNotifier{}, Options{TickInterval: tick, RestoreDelay: 10 * time.Millisecond})
		So(fc.Start(testFanData), ShouldBeNil)

		stoppedAt := time.Now()
		<-fc.Stop()
		So(time.Since(stoppedAt), ShouldBeGreaterThanOrEqualTo, tick)
		So(sim.Writes(hardware.RegFanMode), ShouldResemble, []byte{hardware.FanModeManual, hardware.FanModeRestore})
	})

	Convey("The default restore delay follows the tick interval", t, func() {
		fc := NewFanController(hardware.NewSimulator(), nil, Options{TickInterval: 3 * time.Second})
		So(fc.restoreDelay, ShouldEqual, 3*time.Second)
	})
}

func TestFanControllerStop(t *testing.T) {
	Convey("Given a running controller", t, func() {
		const period = 100 * time.Millisecond
		sim := hardware.NewSimulator()
		sim.Set(hardware.RegCpuTemp, 50)
		sim.Set(hardware.RegGpuTemp, 40)
		notifier := &recordingNotifier{}
		fc := NewFanController(sim, notifier, Options{TickInterval: period, RestoreDelay: period})
		So(fc.Start(testFanData), ShouldBeNil)
		So(eventually(func() bool { return len(sim.Writes(hardware.RegLeftPwm)) > 0 }), ShouldBeTrue)

		Convey("the restore write waits for the loop and a full tick period", func() {
			stoppedAt := time.Now()
			done := fc.Stop()
			So(fc.IsRunning(), ShouldBeFalse)
			So(sim.Writes(hardware.RegFanMode), ShouldResemble, []byte{hardware.FanModeManual})

			<-done
			So(time.Since(stoppedAt), ShouldBeGreaterThanOrEqualTo, period)
			So(sim.Writes(hardware.RegFanMode), ShouldResemble, []byte{hardware.FanModeManual, hardware.FanModeRestore})
			So(notifier.count(MsgStopped), ShouldEqual, 1)

			Convey("and no fan writes follow the restore", func() {
				n := len(sim.Journal())
				time.Sleep(2 * period)
				So(sim.Journal(), ShouldHaveLength, n)
			})
		})

		Convey("Stop called twice shares one pending restore", func() {
			first := fc.Stop()
			second := fc.Stop()
			So(second, ShouldEqual, first)
			<-first
			So(sim.Writes(hardware.RegFanMode), ShouldHaveLength, 2)
		})

		Convey("Start right after Stop waits for the restore before retaking the fans", func() {
			fc.Stop()
			So(fc.Start(testFanData), ShouldBeNil)
			So(sim.Writes(hardware.RegFanMode), ShouldResemble,
				[]byte{hardware.FanModeManual, hardware.FanModeRestore, hardware.FanModeManual})
			fc.Shutdown()
		})
	})
}

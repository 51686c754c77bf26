package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cyear/nuc-fan/controller"
	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
)

// SystemInfo is one telemetry sample pushed to the front end.
type SystemInfo struct {
	Speeds     models.FanSpeeds       `json:"speeds"`
	Controller controller.PublicState `json:"controller"`
	Timestamp  time.Time              `json:"timestamp"`
}

// StateSource provides the controller snapshot included in every sample.
type StateSource interface {
	GetPublicState() controller.PublicState
}

// MonitorService polls the fan tachometers and temperatures on its own
// goroutine and hands each sample to OnData. Reads go through the ad-hoc
// register channel, so the poller never shares a session with the loop.
type MonitorService struct {
	ctx      context.Context
	cancel   context.CancelFunc
	OnData   func(info SystemInfo)
	OnError  func(err error)
	regs     hardware.Transactor
	state    StateSource
	interval time.Duration
	wg       sync.WaitGroup
	mutex    sync.Mutex
}

// NewMonitorService creates a stopped poller.
func NewMonitorService(regs hardware.Transactor, state StateSource, interval time.Duration) *MonitorService {
	if interval <= 0 {
		interval = time.Second
	}
	return &MonitorService{
		regs:     regs,
		state:    state,
		interval: interval,
	}
}

// Start begins polling. A running poller is restarted.
func (s *MonitorService) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stopLocked()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.poll(s.ctx)
}

// Stop halts polling and waits for the in-flight sample.
func (s *MonitorService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopLocked()
}

func (s *MonitorService) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
		s.cancel = nil
	}
}

func (s *MonitorService) poll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sample()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *MonitorService) sample() {
	speeds, err := controller.GetFanSpeeds(s.regs)
	if err != nil {
		log.Printf("Error reading fan telemetry: %v", err)
		if s.OnError != nil {
			s.OnError(err)
		}
		return
	}
	info := SystemInfo{Speeds: speeds, Timestamp: time.Now()}
	if s.state != nil {
		info.Controller = s.state.GetPublicState()
	}
	if s.OnData != nil {
		s.OnData(info)
	}
}

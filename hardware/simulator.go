package hardware

import "sync"

// Simulator is an in-memory register file that speaks the same command
// protocol as the vendor control method. Commands travel through their
// string form so the codec is exercised on every transaction.
type Simulator struct {
	mu        sync.Mutex
	registers map[RegisterAddress]int64
	journal   []Command
	failOn    map[RegisterAddress]error
}

// NewSimulator returns a register file with idle laptop defaults: firmware
// owns the fans, both sensors read 45 °C.
func NewSimulator() *Simulator {
	return &Simulator{
		registers: map[RegisterAddress]int64{
			RegCpuTemp:     45,
			RegGpuTemp:     45,
			RegFanMode:     FanModeBaseline + FanModeAutoOffset,
			RegCpuPowerPL1: 45,
			RegCpuPowerPL2: 90,
			RegGpuPower1:   80,
			RegGpuPower2:   100,
			RegThermalTrip: 100,
		},
		failOn: map[RegisterAddress]error{},
	}
}

// Transact implements Transactor.
func (s *Simulator) Transact(cmd Command) (int64, error) {
	decoded, err := ParseCommand(cmd.String())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, decoded)
	if err := s.failOn[decoded.Address]; err != nil {
		return 0, err
	}

	if decoded.Mode == ModeRead {
		return s.registers[decoded.Address], nil
	}
	if decoded.Address == RegFanMode {
		s.registers[RegFanMode] = fanModeReading(decoded.Data)
	} else {
		s.registers[decoded.Address] = int64(decoded.Data)
	}
	return 0, nil
}

// fanModeReading maps a byte written to the fan-mode register to what a
// later read reports.
func fanModeReading(data byte) int64 {
	switch data {
	case FanModeManual:
		return FanModeBaseline
	case FanModeRestore:
		return FanModeBaseline + FanModeAutoOffset
	default:
		return FanModeBaseline + int64(data) - int64(FanModeManual)
	}
}

// Set overrides a register value, e.g. to raise a temperature.
func (s *Simulator) Set(addr RegisterAddress, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers[addr] = v
}

// Get returns the current value of a register.
func (s *Simulator) Get(addr RegisterAddress) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registers[addr]
}

// FailOn makes every transaction on addr return err. A nil err clears it.
func (s *Simulator) FailOn(addr RegisterAddress, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, addr)
		return
	}
	s.failOn[addr] = err
}

// Journal returns a copy of every command seen so far.
func (s *Simulator) Journal() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.journal...)
}

// Writes returns the writes made to addr, oldest first.
func (s *Simulator) Writes(addr RegisterAddress) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.journal {
		if c.Mode == ModeWrite && c.Address == addr {
			out = append(out, c.Data)
		}
	}
	return out
}

// Reset clears the journal.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = nil
}

// SessionOpener returns an opener whose sessions are backed by the
// simulator, so AdhocChannel and Worker can run without hardware.
func (s *Simulator) SessionOpener() SessionOpener {
	return func() (Session, error) {
		return simSession{s}, nil
	}
}

type simSession struct{ sim *Simulator }

func (ss simSession) Call(payload string) (string, error) {
	cmd, err := ParsePayload(payload)
	if err != nil {
		return "", err
	}
	reply, err := ss.sim.Transact(cmd)
	if err != nil {
		return "", err
	}
	return formatReply(reply), nil
}

func (simSession) Close() {}

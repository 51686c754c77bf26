package models

// MaxCriticalTemp is the hard ceiling of the full-speed override in °C.
// Settings may lower the threshold but never raise it above this.
const MaxCriticalTemp int64 = 95

// Settings holds the user-configurable application settings.
// These are stored in settings.json.
type Settings struct {
	Language     string `json:"language"`
	AutoStart    bool   `json:"autoStart"`
	CriticalTemp int64  `json:"criticalTemp"`
	// Fan-mode register offsets (reading minus baseline) that are treated
	// as faults while the loop is running.
	FaultAutoOffset    int64 `json:"faultAutoOffset"`
	FaultStalledOffset int64 `json:"faultStalledOffset"`
}

// DefaultSettings returns the settings used when settings.json is missing.
func DefaultSettings() Settings {
	return Settings{
		Language:           "zh",
		AutoStart:          false,
		CriticalTemp:       MaxCriticalTemp,
		FaultAutoOffset:    -64,
		FaultStalledOffset: -80,
	}
}

// Normalize returns s with the safety fields made usable. A critical
// temperature that is unset or above MaxCriticalTemp becomes
// MaxCriticalTemp. Fault offsets of zero (plain manual mode) or two equal
// offsets are replaced by the defaults.
func (s Settings) Normalize() Settings {
	defaults := DefaultSettings()
	if s.CriticalTemp <= 0 || s.CriticalTemp > MaxCriticalTemp {
		s.CriticalTemp = MaxCriticalTemp
	}
	if s.FaultAutoOffset == 0 || s.FaultStalledOffset == 0 || s.FaultAutoOffset == s.FaultStalledOffset {
		s.FaultAutoOffset = defaults.FaultAutoOffset
		s.FaultStalledOffset = defaults.FaultStalledOffset
	}
	return s
}

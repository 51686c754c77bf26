package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"
)

// DaemonConfig is read from YAML and then overridden from the environment.
type DaemonConfig struct {
	Listen       string        `yaml:"listen" env:"X15_LISTEN"`
	CurvePath    string        `yaml:"curve_path" env:"X15_CURVE"`
	Debug        bool          `yaml:"debug" env:"X15_DEBUG"`
	Simulated    bool          `yaml:"simulated" env:"X15_SIM"`
	AutoStart    bool          `yaml:"autostart" env:"X15_AUTOSTART"`
	TickInterval time.Duration `yaml:"tick_interval" env:"X15_TICK"`
	PollInterval time.Duration `yaml:"poll_interval" env:"X15_POLL"`
	CriticalTemp int64         `yaml:"critical_temp" env:"X15_CRITICAL_TEMP"`
}

func defaultConfig() DaemonConfig {
	return DaemonConfig{
		Listen:       "127.0.0.1:8715",
		TickInterval: time.Second,
		PollInterval: time.Second,
		CriticalTemp: 95,
	}
}

// loadConfig reads filename over the defaults, then applies environment
// overrides. A missing file is only an error when required is set.
func loadConfig(filename string, required bool) (DaemonConfig, error) {
	config := defaultConfig()

	yamlFile, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			return config, fmt.Errorf("unable to unmarshal yaml %s: %w", filename, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return config, fmt.Errorf("unable to read yaml file: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return config, fmt.Errorf("parsing environment: %w", err)
	}
	return config, nil
}

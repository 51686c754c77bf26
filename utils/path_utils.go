package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName    = "com.nuc.x15.fan.cyear.app"
	fanConfigName = "fan_config.json"
	debugFlagName = "debug.config"
)

// GetBaseDir returns the directory of the executable.
func GetBaseDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exePath), nil
}

// GetConfigDir returns the per-user configuration directory of the app.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// GetFanConfigPath ensures dir exists and returns the curve file inside it.
func GetFanConfigPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config dir '%s': %w", dir, err)
	}
	return filepath.Join(dir, fanConfigName), nil
}

// IsDebug reads the debug flag file in dir, creating it with "0" when
// missing. Any content other than "1" means off.
func IsDebug(dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("creating config dir '%s': %w", dir, err)
	}
	path := filepath.Join(dir, debugFlagName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, os.WriteFile(path, []byte("0"), 0644)
	}
	if err != nil {
		return false, fmt.Errorf("reading '%s': %w", path, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

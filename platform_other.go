//go:build !windows

package main

import "fmt"

// setAutoStart is not supported outside Windows.
func setAutoStart(enabled bool) error {
	if !enabled {
		return nil
	}
	return fmt.Errorf("auto start is only available on Windows")
}

// isElevated always reports true so non-Windows builds, which run on the
// simulator, do not warn.
func isElevated() bool { return true }

//go:build !windows

package sensors

import "fmt"

// ProbeControlMethod is a dummy implementation for non-Windows systems.
func ProbeControlMethod() (string, error) {
	return "", fmt.Errorf("the fan control method is only available on Windows")
}

//go:build !windows

package sensors

import "fmt"

// DetectChassis is a dummy implementation for non-Windows systems.
func DetectChassis() (Chassis, error) {
	return Chassis{Model: "Dummy Model"}, fmt.Errorf("SMBIOS reading is only available on Windows")
}

package sensors

import "strings"

// modelHints are substrings of the SMBIOS model or family of the laptops
// whose embedded controller uses the register map in package hardware.
var modelHints = []string{"X15", "LAPKC71", "LAPAC71"}

// Chassis identifies the machine from SMBIOS data.
type Chassis struct {
	Manufacturer string
	Model        string
	Family       string
}

// Supported reports whether the register map is known to fit this chassis.
func (c Chassis) Supported() bool {
	for _, hint := range modelHints {
		if strings.Contains(strings.ToUpper(c.Model), hint) || strings.Contains(strings.ToUpper(c.Family), hint) {
			return true
		}
	}
	return false
}

func (c Chassis) String() string {
	return strings.TrimSpace(c.Manufacturer + " " + c.Model + " (" + c.Family + ")")
}

//go:build windows

package sensors

import (
	"fmt"

	"github.com/yusufpapurcu/wmi"
)

// AcpiTestMULong mirrors the instance properties of the vendor class that
// exposes GetSetULong.
type AcpiTestMULong struct {
	InstanceName string
	Active       bool
}

// ProbeControlMethod checks that the vendor control-method class is present
// and active in root\wmi. It returns the instance name of the first active
// instance.
func ProbeControlMethod() (string, error) {
	var dst []AcpiTestMULong
	query := "SELECT InstanceName, Active FROM AcpiTest_MULong"

	err := wmi.QueryNamespace(query, &dst, `root\wmi`)
	if err != nil {
		return "", fmt.Errorf("WMI query failed: %w. Ensure you are running as Administrator", err)
	}

	for _, inst := range dst {
		if inst.Active {
			return inst.InstanceName, nil
		}
	}
	if len(dst) == 0 {
		return "", fmt.Errorf("no AcpiTest_MULong instance found, this machine does not expose the fan control method")
	}
	return "", fmt.Errorf("AcpiTest_MULong instance %s is not active", dst[0].InstanceName)
}

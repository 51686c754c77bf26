//go:build !windows

package hardware

import "fmt"

// OpenWmiSession returns an error on non-Windows systems.
func OpenWmiSession() (Session, error) {
	return nil, fmt.Errorf("%w: the vendor control method is only available on Windows", ErrSession)
}

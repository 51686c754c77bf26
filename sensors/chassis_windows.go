//go:build windows

package sensors

import (
	"fmt"
	"log"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// DetectChassis reads Win32_ComputerSystem through the SWbem scripting
// objects. Used at startup to warn when the register map may not apply.
func DetectChassis() (Chassis, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// S_FALSE: COM was already initialized on this thread.
		if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != 0x00000001 {
			return Chassis{}, fmt.Errorf("initializing COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return Chassis{}, err
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return Chassis{}, err
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, `\\.\root\cimv2`)
	if err != nil {
		return Chassis{}, err
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", "SELECT Manufacturer, Model, SystemFamily FROM Win32_ComputerSystem")
	if err != nil {
		return Chassis{}, err
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countVariant, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return Chassis{}, err
	}
	if countVariant.Val == 0 {
		return Chassis{}, fmt.Errorf("no Win32_ComputerSystem instance found")
	}

	itemRaw, err := oleutil.CallMethod(result, "ItemIndex", 0)
	if err != nil {
		return Chassis{}, err
	}
	item := itemRaw.ToIDispatch()
	defer item.Release()

	var c Chassis
	for name, dst := range map[string]*string{
		"Manufacturer": &c.Manufacturer,
		"Model":        &c.Model,
		"SystemFamily": &c.Family,
	} {
		v, err := oleutil.GetProperty(item, name)
		if err != nil {
			return Chassis{}, fmt.Errorf("reading %s: %w", name, err)
		}
		*dst = v.ToString()
		v.Clear()
	}

	log.Printf("Detected chassis: %s", c)
	return c, nil
}

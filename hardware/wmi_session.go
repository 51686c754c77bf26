//go:build windows

package hardware

import (
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const (
	wmiNamespace = `root\WMI`
	wmiClass     = "AcpiTest_MULong"
	wmiMethod    = "GetSetULong"

	sFalse = 0x00000001
)

// wmiSession keeps the SWbem objects needed to invoke GetSetULong on the
// first AcpiTest_MULong instance. All of them belong to the COM apartment of
// the thread that opened the session.
type wmiSession struct {
	locator  *ole.IUnknown
	wmi      *ole.IDispatch
	service  *ole.IDispatch
	inParams *ole.IDispatch
	path     string
}

// OpenWmiSession initializes COM on the calling thread and binds to the
// vendor control method. The caller must hold the OS thread
// (runtime.LockOSThread) until Close returns.
func OpenWmiSession() (Session, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleErr, ok := err.(*ole.OleError)
		if !ok || (oleErr.Code() != ole.S_OK && oleErr.Code() != sFalse) {
			return nil, fmt.Errorf("%w: initializing COM: %v", ErrSession, err)
		}
	}

	s := &wmiSession{}
	if err := s.open(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *wmiSession) open() error {
	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return fmt.Errorf("%w: creating locator: %v", ErrSession, err)
	}
	s.locator = unknown

	s.wmi, err = unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("%w: querying locator: %v", ErrSession, err)
	}

	serviceRaw, err := oleutil.CallMethod(s.wmi, "ConnectServer", nil, wmiNamespace)
	if err != nil {
		return fmt.Errorf("%w: connecting to %s: %v", ErrSession, wmiNamespace, err)
	}
	s.service = serviceRaw.ToIDispatch()

	// List instances of the class and remember the path of the first one.
	setRaw, err := oleutil.CallMethod(s.service, "InstancesOf", wmiClass)
	if err != nil {
		return fmt.Errorf("%w: listing %s: %v", ErrSession, wmiClass, err)
	}
	set := setRaw.ToIDispatch()
	defer set.Release()

	countVariant, err := oleutil.GetProperty(set, "Count")
	if err != nil {
		return fmt.Errorf("%w: counting %s: %v", ErrSession, wmiClass, err)
	}
	if countVariant.Val == 0 {
		return fmt.Errorf("%w: no %s instance found", ErrSession, wmiClass)
	}

	itemRaw, err := oleutil.CallMethod(set, "ItemIndex", 0)
	if err != nil {
		return fmt.Errorf("%w: retrieving first %s: %v", ErrSession, wmiClass, err)
	}
	item := itemRaw.ToIDispatch()
	defer item.Release()

	pathRaw, err := oleutil.GetProperty(item, "Path_")
	if err != nil {
		return fmt.Errorf("%w: retrieving object path: %v", ErrSession, err)
	}
	pathObj := pathRaw.ToIDispatch()
	defer pathObj.Release()

	relPath, err := oleutil.GetProperty(pathObj, "RelPath")
	if err != nil {
		return fmt.Errorf("%w: retrieving relative path: %v", ErrSession, err)
	}
	s.path = relPath.ToString()

	// Get an input parameter object from the class definition.
	clsRaw, err := oleutil.CallMethod(s.service, "Get", wmiClass)
	if err != nil {
		return fmt.Errorf("%w: getting class %s: %v", ErrCall, wmiClass, err)
	}
	cls := clsRaw.ToIDispatch()
	defer cls.Release()

	methodsRaw, err := oleutil.GetProperty(cls, "Methods_")
	if err != nil {
		return fmt.Errorf("%w: listing methods: %v", ErrCall, err)
	}
	methods := methodsRaw.ToIDispatch()
	defer methods.Release()

	methodRaw, err := oleutil.CallMethod(methods, "Item", wmiMethod)
	if err != nil {
		return fmt.Errorf("%w: getting method %s: %v", ErrCall, wmiMethod, err)
	}
	method := methodRaw.ToIDispatch()
	defer method.Release()

	inRaw, err := oleutil.GetProperty(method, "InParameters")
	if err != nil {
		return fmt.Errorf("%w: getting %s input parameters: %v", ErrCall, wmiMethod, err)
	}
	s.inParams = inRaw.ToIDispatch()
	return nil
}

// Call sets Data to payload, executes the method and returns Return.
func (s *wmiSession) Call(payload string) (string, error) {
	paramsRaw, err := oleutil.CallMethod(s.inParams, "SpawnInstance_")
	if err != nil {
		return "", fmt.Errorf("%w: creating input params: %v", ErrCall, err)
	}
	params := paramsRaw.ToIDispatch()
	defer params.Release()

	if _, err := oleutil.PutProperty(params, "Data", payload); err != nil {
		return "", fmt.Errorf("%w: setting Data: %v", ErrCall, err)
	}

	outRaw, err := oleutil.CallMethod(s.service, "ExecMethod", s.path, wmiMethod, params)
	if err != nil {
		return "", fmt.Errorf("%w: calling %s: %v", ErrCall, wmiMethod, err)
	}
	out := outRaw.ToIDispatch()
	if out == nil {
		return "", fmt.Errorf("%w: %s returned no output parameters", ErrCall, wmiMethod)
	}
	defer out.Release()

	ret, err := oleutil.GetProperty(out, "Return")
	if err != nil {
		return "", fmt.Errorf("%w: reading Return: %v", ErrCall, err)
	}
	defer ret.Clear()
	return fmt.Sprint(ret.Value()), nil
}

// Close releases every COM object and uninitializes COM on this thread.
func (s *wmiSession) Close() {
	if s.inParams != nil {
		s.inParams.Release()
	}
	if s.service != nil {
		s.service.Release()
	}
	if s.wmi != nil {
		s.wmi.Release()
	}
	if s.locator != nil {
		s.locator.Release()
	}
	ole.CoUninitialize()
}

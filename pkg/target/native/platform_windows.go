//go:build windows

package native

import (
	"errors"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/go-dstub/dstub/pkg/target"
)

func defaultBackend() (DebugAPI, target.Platform, error) {
	return winAPI{}, winPlatform{}, nil
}

// winPlatform is the production Platform collaborator for Windows hosts.
type winPlatform struct{}

func (winPlatform) TranslateError(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case windows.ERROR_ACCESS_DENIED:
		return target.ErrPermissionDenied
	case windows.ERROR_INVALID_HANDLE:
		return target.ErrInvalidHandle
	case windows.ERROR_INVALID_PARAMETER:
		return target.ErrInvalidArgument
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_OUTOFMEMORY:
		return target.ErrNoMemory
	case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_NOT_FOUND:
		return target.ErrProcessNotFound
	}
	return err
}

func (winPlatform) CPUType() target.CPUType {
	switch runtime.GOARCH {
	case "amd64":
		return target.CPUTypeX8664
	case "386":
		return target.CPUTypeI386
	case "arm64":
		return target.CPUTypeARM64
	case "arm":
		return target.CPUTypeARM
	}
	return target.CPUTypeAny
}

func (winPlatform) CPUSubType() uint32 {
	return 0
}

func (winPlatform) PointerSize() int {
	return int(unsafe.Sizeof(uintptr(0)))
}

func (winPlatform) OSTypeName() string {
	return "windows"
}

func (winPlatform) OSVendorName() string {
	return "pc"
}

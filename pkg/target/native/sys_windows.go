//go:build windows

package native

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const _EXCEPTION_MAXIMUM_PARAMETERS = 15

type _EXCEPTION_RECORD struct {
	ExceptionCode        uint32
	ExceptionFlags       uint32
	ExceptionRecord      *_EXCEPTION_RECORD
	ExceptionAddress     uintptr
	NumberParameters     uint32
	ExceptionInformation [_EXCEPTION_MAXIMUM_PARAMETERS]uintptr
}

type _EXCEPTION_DEBUG_INFO struct {
	ExceptionRecord _EXCEPTION_RECORD
	FirstChance     uint32
}

type _CREATE_PROCESS_DEBUG_INFO struct {
	File                syscall.Handle
	Process             syscall.Handle
	Thread              syscall.Handle
	BaseOfImage         uintptr
	DebugInfoFileOffset uint32
	DebugInfoSize       uint32
	ThreadLocalBase     uintptr
	StartAddress        uintptr
	ImageName           uintptr
	Unicode             uint16
}

type _CREATE_THREAD_DEBUG_INFO struct {
	Thread          syscall.Handle
	ThreadLocalBase uintptr
	StartAddress    uintptr
}

type _EXIT_THREAD_DEBUG_INFO struct {
	ExitCode uint32
}

type _EXIT_PROCESS_DEBUG_INFO struct {
	ExitCode uint32
}

type _OUTPUT_DEBUG_STRING_INFO struct {
	DebugStringData   uintptr
	Unicode           uint16
	DebugStringLength uint16
}

type _LOAD_DLL_DEBUG_INFO struct {
	File                syscall.Handle
	BaseOfDll           uintptr
	DebugInfoFileOffset uint32
	DebugInfoSize       uint32
	ImageName           uintptr
	Unicode             uint16
}

type _DEBUG_EVENT struct {
	DebugEventCode uint32
	ProcessId      uint32
	ThreadId       uint32
	_              uint32 // to align Union properly
	U              [160]byte
}

const _DBG_CONTINUE = 0x00010002

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	modpsapi    = windows.NewLazySystemDLL("psapi.dll")

	procWaitForDebugEvent      = modkernel32.NewProc("WaitForDebugEvent")
	procContinueDebugEvent     = modkernel32.NewProc("ContinueDebugEvent")
	procDebugActiveProcess     = modkernel32.NewProc("DebugActiveProcess")
	procDebugActiveProcessStop = modkernel32.NewProc("DebugActiveProcessStop")
	procDebugBreakProcess      = modkernel32.NewProc("DebugBreakProcess")
	procReadProcessMemory      = modkernel32.NewProc("ReadProcessMemory")
	procWriteProcessMemory     = modkernel32.NewProc("WriteProcessMemory")
	procVirtualAllocEx         = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx          = modkernel32.NewProc("VirtualFreeEx")
	procSuspendThread          = modkernel32.NewProc("SuspendThread")
	procResumeThread           = modkernel32.NewProc("ResumeThread")
	procGetThreadId            = modkernel32.NewProc("GetThreadId")
	procEnumProcessModules     = modpsapi.NewProc("EnumProcessModules")
	procGetModuleFileNameExW   = modpsapi.NewProc("GetModuleFileNameExW")
)

// winAPI is the production DebugAPI, backed by the kernel32/psapi debug
// facilities.
type winAPI struct{}

func callErr(e1 error) error {
	if errno, ok := e1.(syscall.Errno); ok && errno != 0 {
		return errno
	}
	return syscall.EINVAL
}

func (winAPI) AttachProcess(pid int) error {
	r1, _, e1 := procDebugActiveProcess.Call(uintptr(pid))
	if r1 == 0 {
		return callErr(e1)
	}
	return nil
}

func (winAPI) DetachProcess(pid int) error {
	r1, _, e1 := procDebugActiveProcessStop.Call(uintptr(pid))
	if r1 == 0 {
		return callErr(e1)
	}
	return nil
}

func (winAPI) WaitForDebugEvent() (*DebugEvent, error) {
	var de _DEBUG_EVENT
	r1, _, e1 := procWaitForDebugEvent.Call(uintptr(unsafe.Pointer(&de)), uintptr(windows.INFINITE))
	if r1 == 0 {
		return nil, callErr(e1)
	}

	ev := &DebugEvent{
		Kind:      EventKind(de.DebugEventCode),
		ProcessID: int(de.ProcessId),
		ThreadID:  int(de.ThreadId),
	}
	unionPtr := unsafe.Pointer(&de.U[0])
	switch ev.Kind {
	case CreateProcessDebugEvent:
		info := (*_CREATE_PROCESS_DEBUG_INFO)(unionPtr)
		ev.Process = Handle(info.Process)
		ev.Thread = Handle(info.Thread)
		ev.File = Handle(info.File)
		ev.ImageBase = uint64(info.BaseOfImage)
	case CreateThreadDebugEvent:
		info := (*_CREATE_THREAD_DEBUG_INFO)(unionPtr)
		ev.Thread = Handle(info.Thread)
	case ExitThreadDebugEvent:
		info := (*_EXIT_THREAD_DEBUG_INFO)(unionPtr)
		ev.ExitCode = info.ExitCode
	case ExitProcessDebugEvent:
		info := (*_EXIT_PROCESS_DEBUG_INFO)(unionPtr)
		ev.ExitCode = info.ExitCode
	case LoadDllDebugEvent:
		info := (*_LOAD_DLL_DEBUG_INFO)(unionPtr)
		ev.File = Handle(info.File)
		ev.ImageBase = uint64(info.BaseOfDll)
	case OutputDebugStringEvent:
		info := (*_OUTPUT_DEBUG_STRING_INFO)(unionPtr)
		ev.DebugStringAddr = uint64(info.DebugStringData)
		ev.DebugStringLen = int(info.DebugStringLength)
		ev.DebugStringUnicode = info.Unicode != 0
	case ExceptionDebugEvent:
		info := (*_EXCEPTION_DEBUG_INFO)(unionPtr)
		ev.ExceptionCode = info.ExceptionRecord.ExceptionCode
		ev.ExceptionAddress = uint64(info.ExceptionRecord.ExceptionAddress)
		ev.FirstChance = info.FirstChance != 0
	}
	return ev, nil
}

func (winAPI) ContinueDebugEvent(pid, tid int) error {
	r1, _, e1 := procContinueDebugEvent.Call(uintptr(pid), uintptr(tid), _DBG_CONTINUE)
	if r1 == 0 {
		return callErr(e1)
	}
	return nil
}

func (winAPI) BreakProcess(process Handle) error {
	r1, _, e1 := procDebugBreakProcess.Call(uintptr(process))
	if r1 == 0 {
		return callErr(e1)
	}
	return nil
}

func (winAPI) TerminateProcess(process Handle, exitCode uint32) error {
	return windows.TerminateProcess(windows.Handle(process), exitCode)
}

func (winAPI) ExitCode(process Handle) (uint32, error) {
	var code uint32
	err := windows.GetExitCodeProcess(windows.Handle(process), &code)
	return code, err
}

func (winAPI) SuspendThread(thread Handle) error {
	r1, _, e1 := procSuspendThread.Call(uintptr(thread))
	if r1 == 0xffffffff {
		return callErr(e1)
	}
	return nil
}

func (winAPI) ResumeThread(thread Handle) error {
	r1, _, e1 := procResumeThread.Call(uintptr(thread))
	if r1 == 0xffffffff {
		return callErr(e1)
	}
	return nil
}

func (winAPI) ThreadID(thread Handle) (int, error) {
	r1, _, e1 := procGetThreadId.Call(uintptr(thread))
	if r1 == 0 {
		return 0, callErr(e1)
	}
	return int(r1), nil
}

func (winAPI) CloseHandle(h Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}

func (winAPI) ReadProcessMemory(process Handle, addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var read uintptr
	r1, _, e1 := procReadProcessMemory.Call(uintptr(process), uintptr(addr),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), uintptr(unsafe.Pointer(&read)))
	if r1 == 0 {
		return int(read), wrapPartialCopy(callErr(e1))
	}
	return int(read), nil
}

func (winAPI) WriteProcessMemory(process Handle, addr uint64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var written uintptr
	r1, _, e1 := procWriteProcessMemory.Call(uintptr(process), uintptr(addr),
		uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)), uintptr(unsafe.Pointer(&written)))
	if r1 == 0 {
		return int(written), wrapPartialCopy(callErr(e1))
	}
	return int(written), nil
}

func wrapPartialCopy(err error) error {
	if err == syscall.Errno(windows.ERROR_PARTIAL_COPY) {
		return fmt.Errorf("%w: %v", ErrPartialCopy, err)
	}
	return err
}

func (winAPI) AllocateMemory(process Handle, size int, pageProtection uint32) (uint64, error) {
	const memCommit, memReserve = 0x1000, 0x2000
	r1, _, e1 := procVirtualAllocEx.Call(uintptr(process), 0, uintptr(size),
		memCommit|memReserve, uintptr(pageProtection))
	if r1 == 0 {
		return 0, callErr(e1)
	}
	return uint64(r1), nil
}

func (winAPI) FreeMemory(process Handle, addr uint64) error {
	const memRelease = 0x8000
	r1, _, e1 := procVirtualFreeEx.Call(uintptr(process), uintptr(addr), 0, memRelease)
	if r1 == 0 {
		return callErr(e1)
	}
	return nil
}

func (winAPI) EnumProcessModules(process Handle, modules []Handle) (int, error) {
	var base uintptr
	if len(modules) > 0 {
		base = uintptr(unsafe.Pointer(&modules[0]))
	}
	var needed uint32
	handleSize := int(unsafe.Sizeof(Handle(0)))
	r1, _, e1 := procEnumProcessModules.Call(uintptr(process), base,
		uintptr(len(modules)*handleSize), uintptr(unsafe.Pointer(&needed)))
	if r1 == 0 {
		return 0, callErr(e1)
	}
	return int(needed), nil
}

func (winAPI) ModuleFileName(process Handle, module Handle) (string, error) {
	buf := make([]uint16, windows.MAX_PATH)
	r1, _, e1 := procGetModuleFileNameExW.Call(uintptr(process), uintptr(module),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r1 == 0 {
		return "", callErr(e1)
	}
	return syscall.UTF16ToString(buf[:r1]), nil
}

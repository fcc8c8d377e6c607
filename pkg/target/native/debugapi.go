// Package native implements the Windows target-process controller: it
// drives the OS debug-event loop and exposes the process as a single
// synchronous state machine to the protocol dispatch layer above it.
package native

import "errors"

// Handle is a native object handle owned by exactly one Process or Thread.
type Handle uintptr

// EventKind identifies the kind of a native debug event. The values mirror
// the native event codes so the real backend can pass them through.
type EventKind uint32

const (
	ExceptionDebugEvent EventKind = iota + 1
	CreateThreadDebugEvent
	CreateProcessDebugEvent
	ExitThreadDebugEvent
	ExitProcessDebugEvent
	LoadDllDebugEvent
	UnloadDllDebugEvent
	OutputDebugStringEvent
)

func (k EventKind) String() string {
	switch k {
	case ExceptionDebugEvent:
		return "EXCEPTION_DEBUG_EVENT"
	case CreateThreadDebugEvent:
		return "CREATE_THREAD_DEBUG_EVENT"
	case CreateProcessDebugEvent:
		return "CREATE_PROCESS_DEBUG_EVENT"
	case ExitThreadDebugEvent:
		return "EXIT_THREAD_DEBUG_EVENT"
	case ExitProcessDebugEvent:
		return "EXIT_PROCESS_DEBUG_EVENT"
	case LoadDllDebugEvent:
		return "LOAD_DLL_DEBUG_EVENT"
	case UnloadDllDebugEvent:
		return "UNLOAD_DLL_DEBUG_EVENT"
	case OutputDebugStringEvent:
		return "OUTPUT_DEBUG_STRING_EVENT"
	}
	return "unknown"
}

// Native exception codes carried by ExceptionDebugEvent.
const (
	excGuardPage            = 0x80000001
	excDatatypeMisalignment = 0x80000002
	excBreakpoint           = 0x80000003
	excSingleStep           = 0x80000004
	excAccessViolation      = 0xC0000005
	excInPageError          = 0xC0000006
	excInvalidDisposition   = 0xC0000026
	excNoncontinuable       = 0xC0000025
	excArrayBoundsExceeded  = 0xC000008C
	excFltDenormalOperand   = 0xC000008D
	excFltDivideByZero      = 0xC000008E
	excFltInexactResult     = 0xC000008F
	excFltInvalidOperation  = 0xC0000090
	excFltOverflow          = 0xC0000091
	excFltStackCheck        = 0xC0000092
	excFltUnderflow         = 0xC0000093
	excIntDivideByZero      = 0xC0000094
	excIntOverflow          = 0xC0000095
	excPrivInstruction      = 0xC0000096
	excIllegalInstruction   = 0xC000001D
	excStackOverflow        = 0xC00000FD
	excUncaughtCxx          = 0xE06D7363

	// Part of the VisualC protocol to set thread names. Must be swallowed or
	// it can crash the target.
	excMSVCThreadName = 0x406D1388
)

// Native page protection constants used by AllocateMemory.
const (
	pageNoAccess         = 0x01
	pageReadOnly         = 0x02
	pageReadWrite        = 0x04
	pageExecute          = 0x10
	pageExecuteRead      = 0x20
	pageExecuteReadWrite = 0x40
)

// DebugEvent is the OS-neutral form of one native debug event. Only the
// fields relevant to the event kind are populated.
type DebugEvent struct {
	Kind      EventKind
	ProcessID int
	ThreadID  int

	// CreateProcessDebugEvent: the process and initial thread handles,
	// exclusively owned by the receiver. File, when nonzero, is an open
	// handle on the image that must be closed (also on LoadDllDebugEvent).
	Process Handle
	Thread  Handle
	File    Handle

	// Module base for CreateProcessDebugEvent and LoadDllDebugEvent.
	ImageBase uint64

	// ExceptionDebugEvent.
	ExceptionCode    uint32
	ExceptionAddress uint64
	FirstChance      bool

	// ExitThreadDebugEvent and ExitProcessDebugEvent.
	ExitCode uint32

	// OutputDebugStringEvent: location of the message in the target's
	// address space. The length includes the terminating NUL.
	DebugStringAddr    uint64
	DebugStringLen     int
	DebugStringUnicode bool
}

// ErrPartialCopy wraps native errors reporting a partial memory transfer.
// A partial transfer with at least one byte moved is not a failure.
var ErrPartialCopy = errors.New("partial copy")

// DebugAPI is the slice of the OS debugging facility consumed by the
// controller. The production implementation talks to the Windows Debug API;
// tests substitute a scripted fake.
type DebugAPI interface {
	// AttachProcess starts debugging an already running process.
	AttachProcess(pid int) error
	// DetachProcess stops debugging the process, leaving it running.
	DetachProcess(pid int) error

	// WaitForDebugEvent blocks until the OS delivers the next debug event.
	WaitForDebugEvent() (*DebugEvent, error)
	// ContinueDebugEvent releases the thread held by the most recently
	// delivered debug event.
	ContinueDebugEvent(pid, tid int) error

	// BreakProcess requests an asynchronous break into the process.
	BreakProcess(process Handle) error
	// TerminateProcess kills the process with the given exit code.
	TerminateProcess(process Handle, exitCode uint32) error
	// ExitCode retrieves the exit code of a terminated process.
	ExitCode(process Handle) (uint32, error)

	SuspendThread(thread Handle) error
	ResumeThread(thread Handle) error
	// ThreadID maps a thread handle to its thread id.
	ThreadID(thread Handle) (int, error)

	CloseHandle(h Handle) error

	// ReadProcessMemory copies up to len(buf) bytes from the target address
	// space. Partial transfers return the byte count and an error wrapping
	// ErrPartialCopy.
	ReadProcessMemory(process Handle, addr uint64, buf []byte) (int, error)
	// WriteProcessMemory is symmetric to ReadProcessMemory.
	WriteProcessMemory(process Handle, addr uint64, data []byte) (int, error)

	// AllocateMemory commits a region with the given native page protection
	// and returns its base address.
	AllocateMemory(process Handle, size int, pageProtection uint32) (uint64, error)
	// FreeMemory releases a region returned by AllocateMemory.
	FreeMemory(process Handle, addr uint64) error

	// EnumProcessModules fills modules with the handles of the currently
	// loaded modules and reports the total byte size needed to hold them
	// all. Calling it with an empty slice is the sizing pass.
	EnumProcessModules(process Handle, modules []Handle) (bytesNeeded int, err error)
	// ModuleFileName resolves the on-disk path of a loaded module.
	ModuleFileName(process Handle, module Handle) (string, error)
}

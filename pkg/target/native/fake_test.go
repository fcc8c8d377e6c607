package native

import (
	"fmt"
	"unsafe"

	"github.com/go-dstub/dstub/pkg/target"
)

// fakeAPI is a scripted DebugAPI. Every native call is recorded so tests
// can assert how many times the controller touched the OS.
type fakeAPI struct {
	calls     []string
	events    []*DebugEvent
	continued []int
	closed    []Handle
	threadIDs map[Handle]int

	attachErr    error
	detachErr    error
	waitErr      error
	breakErr     error
	terminateErr error

	exitCode    uint32
	exitCodeErr error

	readFunc  func(addr uint64, buf []byte) (int, error)
	writeFunc func(addr uint64, data []byte) (int, error)

	allocs   []fakeAlloc
	allocErr error
	freed    []uint64
	freeErr  error

	modules     []Handle
	moduleNames map[Handle]string
	moduleErr   error
}

type fakeAlloc struct {
	size int
	prot uint32
}

func (f *fakeAPI) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeAPI) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) AttachProcess(pid int) error {
	f.record("AttachProcess")
	return f.attachErr
}

func (f *fakeAPI) DetachProcess(pid int) error {
	f.record("DetachProcess")
	return f.detachErr
}

func (f *fakeAPI) WaitForDebugEvent() (*DebugEvent, error) {
	f.record("WaitForDebugEvent")
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	if len(f.events) == 0 {
		panic("fakeAPI: no scripted debug events left")
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeAPI) ContinueDebugEvent(pid, tid int) error {
	f.record("ContinueDebugEvent")
	f.continued = append(f.continued, tid)
	return nil
}

func (f *fakeAPI) BreakProcess(process Handle) error {
	f.record("BreakProcess")
	return f.breakErr
}

func (f *fakeAPI) TerminateProcess(process Handle, exitCode uint32) error {
	f.record("TerminateProcess")
	return f.terminateErr
}

func (f *fakeAPI) ExitCode(process Handle) (uint32, error) {
	f.record("ExitCode")
	return f.exitCode, f.exitCodeErr
}

func (f *fakeAPI) SuspendThread(thread Handle) error {
	f.record("SuspendThread")
	return nil
}

func (f *fakeAPI) ResumeThread(thread Handle) error {
	f.record("ResumeThread")
	return nil
}

func (f *fakeAPI) ThreadID(thread Handle) (int, error) {
	f.record("ThreadID")
	if tid, ok := f.threadIDs[thread]; ok {
		return tid, nil
	}
	return int(thread), nil
}

func (f *fakeAPI) CloseHandle(h Handle) error {
	f.record("CloseHandle")
	f.closed = append(f.closed, h)
	return nil
}

func (f *fakeAPI) ReadProcessMemory(process Handle, addr uint64, buf []byte) (int, error) {
	f.record("ReadProcessMemory")
	if f.readFunc != nil {
		return f.readFunc(addr, buf)
	}
	return len(buf), nil
}

func (f *fakeAPI) WriteProcessMemory(process Handle, addr uint64, data []byte) (int, error) {
	f.record("WriteProcessMemory")
	if f.writeFunc != nil {
		return f.writeFunc(addr, data)
	}
	return len(data), nil
}

func (f *fakeAPI) AllocateMemory(process Handle, size int, pageProtection uint32) (uint64, error) {
	f.record("AllocateMemory")
	if f.allocErr != nil {
		return 0, f.allocErr
	}
	f.allocs = append(f.allocs, fakeAlloc{size: size, prot: pageProtection})
	return 0xdead0000, nil
}

func (f *fakeAPI) FreeMemory(process Handle, addr uint64) error {
	f.record("FreeMemory")
	if f.freeErr != nil {
		return f.freeErr
	}
	f.freed = append(f.freed, addr)
	return nil
}

func (f *fakeAPI) EnumProcessModules(process Handle, modules []Handle) (int, error) {
	f.record("EnumProcessModules")
	if f.moduleErr != nil {
		return 0, f.moduleErr
	}
	copy(modules, f.modules)
	return len(f.modules) * int(unsafe.Sizeof(Handle(0))), nil
}

func (f *fakeAPI) ModuleFileName(process Handle, module Handle) (string, error) {
	f.record("ModuleFileName")
	name, ok := f.moduleNames[module]
	if !ok {
		return "", fmt.Errorf("no such module %#x", uint64(module))
	}
	return name, nil
}

// fakePlatform marks translated errors so tests can tell the translation
// path was taken.
type fakePlatform struct{}

func (fakePlatform) TranslateError(err error) error {
	return fmt.Errorf("translated: %w", err)
}

func (fakePlatform) CPUType() target.CPUType { return target.CPUTypeX8664 }
func (fakePlatform) CPUSubType() uint32      { return 0 }
func (fakePlatform) PointerSize() int        { return 8 }
func (fakePlatform) OSTypeName() string      { return "windows" }
func (fakePlatform) OSVendorName() string    { return "pc" }

type fakeSpawner struct {
	pid int
	err error
}

func (s *fakeSpawner) Run() error {
	return s.err
}

func (s *fakeSpawner) Pid() int {
	return s.pid
}

// Scripted event constructors.

const (
	testPid        = 42
	testProcHandle = Handle(100)
	mainThreadID   = 1001
	mainThread     = Handle(200)
)

func evCreateProcess() *DebugEvent {
	return &DebugEvent{
		Kind:      CreateProcessDebugEvent,
		ProcessID: testPid,
		ThreadID:  mainThreadID,
		Process:   testProcHandle,
		Thread:    mainThread,
		ImageBase: 0x400000,
	}
}

func evException(tid int, code uint32) *DebugEvent {
	return &DebugEvent{
		Kind:          ExceptionDebugEvent,
		ProcessID:     testPid,
		ThreadID:      tid,
		ExceptionCode: code,
		FirstChance:   true,
	}
}

func evCreateThread(tid int, h Handle) *DebugEvent {
	return &DebugEvent{Kind: CreateThreadDebugEvent, ProcessID: testPid, ThreadID: tid, Thread: h}
}

func evExitThread(tid int, code uint32) *DebugEvent {
	return &DebugEvent{Kind: ExitThreadDebugEvent, ProcessID: testPid, ThreadID: tid, ExitCode: code}
}

func evExitProcess(tid int) *DebugEvent {
	return &DebugEvent{Kind: ExitProcessDebugEvent, ProcessID: testPid, ThreadID: tid}
}

// startTestProcess runs the full spawn-and-initialize sequence against the
// fake, leaving the controller stopped at the initial breakpoint.
func startTestProcess(api *fakeAPI) (*Process, error) {
	if api.threadIDs == nil {
		api.threadIDs = map[Handle]int{mainThread: mainThreadID}
	}
	api.events = append([]*DebugEvent{
		evCreateProcess(),
		evException(mainThreadID, excBreakpoint),
	}, api.events...)
	return createWith(&fakeSpawner{pid: testPid}, api, fakePlatform{})
}

// stoppedTestProcess builds a controller with one stopped thread and a
// bound process handle, bypassing the event loop. Used by the memory and
// module tests.
func stoppedTestProcess(api *fakeAPI) *Process {
	dbp := newProcess(testPid, api, fakePlatform{})
	dbp.handle = testProcHandle
	th := dbp.addThread(mainThreadID, mainThread)
	th.state = threadStopped
	dbp.currentThread = th
	return dbp
}

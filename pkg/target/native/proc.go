package native

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/go-dstub/dstub/pkg/logflags"
	"github.com/go-dstub/dstub/pkg/target"
)

// Process is the Windows per-process controller. It owns the native process
// handle, the thread collection and the pending-event guard, and drives the
// debug-event loop.
//
// The owning dispatch layer serializes all calls into a Process; only
// Interrupt and Terminate may additionally be issued from another goroutine
// while Wait is blocked.
type Process struct {
	api      DebugAPI
	platform target.Platform
	log      logflags.Logger

	pid      int
	attached bool
	spawned  bool

	handle        Handle
	threads       map[int]*Thread
	currentThread *Thread
	pending       pendingEvent
	info          target.ProcessInfo
	pathCache     *moduleNameCache
	debugString   debugStringRef

	terminated  atomic.Bool
	releaseOnce sync.Once
}

// Create launches a stopped child process through spawner and initializes a
// controller for it. On failure no partially constructed Process escapes to
// the caller.
func Create(spawner target.Spawner) (*Process, error) {
	api, platform, err := defaultBackend()
	if err != nil {
		return nil, err
	}
	return createWith(spawner, api, platform)
}

func createWith(spawner target.Spawner, api DebugAPI, platform target.Platform) (*Process, error) {
	if err := spawner.Run(); err != nil {
		return nil, err
	}

	dbp := newProcess(spawner.Pid(), api, platform)
	dbp.spawned = true
	dbp.log.Debugf("created process %d", dbp.pid)

	if err := dbp.initialize(); err != nil {
		return nil, err
	}
	return dbp, nil
}

// Attach takes control of an already running process.
func Attach(pid int) (*Process, error) {
	api, platform, err := defaultBackend()
	if err != nil {
		return nil, err
	}
	return attachWith(pid, api, platform)
}

func attachWith(pid int, api DebugAPI, platform target.Platform) (*Process, error) {
	if pid <= 0 {
		return nil, target.ErrProcessNotFound
	}

	if err := api.AttachProcess(pid); err != nil {
		return nil, platform.TranslateError(err)
	}

	dbp := newProcess(pid, api, platform)
	dbp.attached = true
	dbp.log.Debugf("attached to process %d", pid)

	if err := dbp.initialize(); err != nil {
		return nil, err
	}
	return dbp, nil
}

func newProcess(pid int, api DebugAPI, platform target.Platform) *Process {
	return &Process{
		api:       api,
		platform:  platform,
		log:       logflags.TargetLogger(),
		pid:       pid,
		threads:   make(map[int]*Thread),
		pathCache: newModuleNameCache(),
	}
}

// initialize drives the event loop until the process is stopped at a
// breakpoint. The first Wait consumes the process-creation event, binding
// the native process handle and the main thread. The loop then resumes the
// target past the intermediate events the OS emits before the process is in
// a debuggable state: when spawning, the first breakpoint is raised from a
// system library before any user code; when attaching, the break comes from
// the remote break-in thread the OS injects.
func (dbp *Process) initialize() error {
	if err := dbp.Wait(); err != nil {
		return err
	}

	if err := dbp.UpdateInfo(); err != nil {
		return err
	}

	for {
		if err := dbp.Resume(); err != nil {
			return err
		}
		if err := dbp.Wait(); err != nil {
			return err
		}
		si := dbp.currentThread.stop
		if si.Event == target.EventStop && si.Reason == target.ReasonBreakpoint {
			return nil
		}
		if si.Event == target.EventExit || si.Event == target.EventKill {
			return target.ErrProcessExited{Pid: dbp.pid, Status: int(si.Status)}
		}
	}
}

var _ target.Process = (*Process)(nil)

// Pid returns the process ID of the controlled process.
func (dbp *Process) Pid() int {
	return dbp.pid
}

// Attached reports whether the controller attached to an already running
// process rather than spawning it.
func (dbp *Process) Attached() bool {
	return dbp.attached
}

// Spawned reports whether the controller launched the process itself.
func (dbp *Process) Spawned() bool {
	return dbp.spawned
}

// Info returns the identity snapshot captured by UpdateInfo.
func (dbp *Process) Info() *target.ProcessInfo {
	return &dbp.info
}

// CurrentThread returns the thread the last surfaced event belongs to.
func (dbp *Process) CurrentThread() *Thread {
	return dbp.currentThread
}

// CurrentStop reports the stop information of the thread that caused the
// last Wait to return.
func (dbp *Process) CurrentStop() target.StopInfo {
	if dbp.currentThread == nil {
		return target.StopInfo{}
	}
	return dbp.currentThread.stop
}

// IsAlive reports whether the process can still deliver debug events.
func (dbp *Process) IsAlive() bool {
	return !dbp.terminated.Load()
}

// Wait blocks until the target reaches a state that requires a debugger
// decision and records which thread caused it. Thread creation and thread
// exit are bookkeeping: they are consumed and resumed here and never
// surface to the caller.
func (dbp *Process) Wait() error {
	// Termination already observed: no further OS interaction, synthesize a
	// kill stop on the last known current thread.
	if dbp.terminated.Load() {
		if dbp.currentThread == nil {
			panic("process terminated with no current thread")
		}
		dbp.currentThread.stop = target.StopInfo{Event: target.EventKill}
		return nil
	}

	events := logflags.EventsLogger()
	for {
		dbp.currentThread = nil

		ev, err := dbp.api.WaitForDebugEvent()
		if err != nil {
			return dbp.platform.TranslateError(err)
		}

		// The event's thread is suspended separately from continuing the
		// event itself so that other threads can later be single-stepped
		// independently while this one stays put.

		events.Debugf("debug event from inferior, event=%s tid=%d", ev.Kind, ev.ThreadID)

		switch ev.Kind {
		case CreateProcessDebugEvent:
			if dbp.handle != 0 {
				panic("process handle bound twice")
			}
			if ev.Process == 0 || ev.Thread == 0 {
				panic("process-creation event carries no handles")
			}
			dbp.closeEventFile(ev)

			dbp.handle = ev.Process
			tid, err := dbp.api.ThreadID(ev.Thread)
			if err != nil {
				return dbp.platform.TranslateError(err)
			}
			dbp.currentThread = dbp.addThread(tid, ev.Thread)
			return dbp.pending.mark(dbp.currentThread)

		case ExitProcessDebugEvent:
			// Every other thread must already have reported its own exit.
			if len(dbp.threads) != 1 {
				panic(fmt.Sprintf("%d threads still tracked at process exit", len(dbp.threads)))
			}
			dbp.currentThread = dbp.findThread(ev.ThreadID)
			if err := dbp.pending.mark(dbp.currentThread); err != nil {
				return err
			}

			dbp.terminated.Store(true)
			dbp.currentThread.state = threadTerminated

			exitCode, err := dbp.api.ExitCode(dbp.handle)
			if err != nil {
				return dbp.platform.TranslateError(err)
			}

			dbp.currentThread.stop = target.StopInfo{Event: target.EventExit, Status: exitCode}
			dbp.log.Debugf("process %d exited with status %d", dbp.pid, exitCode)
			dbp.release()
			return nil

		case CreateThreadDebugEvent:
			// New threads are not a stoppable event by themselves: track and
			// let the target keep going.
			dbp.currentThread = dbp.addThread(ev.ThreadID, ev.Thread)
			if err := dbp.api.ContinueDebugEvent(dbp.pid, ev.ThreadID); err != nil {
				return dbp.platform.TranslateError(err)
			}
			continue

		case ExitThreadDebugEvent:
			dbp.currentThread = dbp.findThread(ev.ThreadID)
			dbp.currentThread.updateFromEvent(ev)
			if err := dbp.api.ContinueDebugEvent(dbp.pid, ev.ThreadID); err != nil {
				return dbp.platform.TranslateError(err)
			}
			dbp.removeThread(ev.ThreadID)
			continue

		case ExceptionDebugEvent, LoadDllDebugEvent, UnloadDllDebugEvent, OutputDebugStringEvent:
			dbp.closeEventFile(ev)
			if ev.Kind == OutputDebugStringEvent {
				dbp.debugString = debugStringRef{
					addr:    ev.DebugStringAddr,
					length:  ev.DebugStringLen,
					unicode: ev.DebugStringUnicode,
				}
			}
			dbp.currentThread = dbp.findThread(ev.ThreadID)
			dbp.currentThread.updateFromEvent(ev)
			if err := dbp.pending.mark(dbp.currentThread); err != nil {
				return err
			}

			// Hold the whole process so memory reads do not race with
			// still-running threads.
			if err := dbp.suspendAll(); err != nil {
				return err
			}
			return nil

		default:
			// Indicates an unsupported OS version; continuing would corrupt
			// controller state.
			panic(fmt.Sprintf("unknown debug event code: %d", uint32(ev.Kind)))
		}
	}
}

// Resume resumes every stopped thread. The pending debug event, if any, is
// continued by the first thread resumed.
func (dbp *Process) Resume() error {
	for _, t := range dbp.threads {
		if t.state != threadStopped {
			continue
		}
		if err := t.resume(); err != nil {
			return err
		}
	}
	return nil
}

// Interrupt requests an asynchronous break into the process. It does not
// wait for the resulting stop; the next Wait observes it.
func (dbp *Process) Interrupt() error {
	if err := dbp.api.BreakProcess(dbp.handle); err != nil {
		return dbp.platform.TranslateError(err)
	}
	return nil
}

// Terminate kills the process. The controller is marked terminated even if
// the request fails, so subsequent Waits short-circuit.
func (dbp *Process) Terminate() error {
	err := dbp.api.TerminateProcess(dbp.handle, 0)
	dbp.terminated.Store(true)
	if err != nil {
		return dbp.platform.TranslateError(err)
	}
	dbp.release()
	return nil
}

// Detach stops controlling the process and leaves it running. A failure to
// detach returns the translated OS error with the controller still
// attached.
func (dbp *Process) Detach() error {
	// Let go of the held event and our suspensions so the target can run
	// once we are detached.
	if err := dbp.Resume(); err != nil {
		return err
	}

	if err := dbp.api.DetachProcess(dbp.pid); err != nil {
		return dbp.platform.TranslateError(err)
	}

	dbp.attached = false
	dbp.release()
	dbp.threads = make(map[int]*Thread)
	dbp.currentThread = nil
	return nil
}

// UpdateInfo populates the process identity snapshot once.
func (dbp *Process) UpdateInfo() error {
	if dbp.info.PID == dbp.pid {
		return target.ErrAlreadyExists
	}

	dbp.info.PID = dbp.pid

	// Windows has no simple integer user identities.
	dbp.info.RealUID = 0
	dbp.info.RealGID = 0

	dbp.info.CPUType = dbp.platform.CPUType()
	dbp.info.CPUSubType = dbp.platform.CPUSubType()

	// For ELF targets the native fields come from the ELF header. PE targets
	// have no equivalent source, so they mirror the host values.
	dbp.info.NativeCPUType = dbp.info.CPUType
	dbp.info.NativeCPUSubType = dbp.info.CPUSubType

	// No big endian on Windows.
	dbp.info.Endian = target.EndianLittle

	dbp.info.PointerSize = dbp.platform.PointerSize()

	// Unused by every known consumer; reported as zero.
	dbp.info.ArchFlags = 0

	dbp.info.OSType = dbp.platform.OSTypeName()
	dbp.info.OSVendor = dbp.platform.OSVendorName()

	return nil
}

// debugStringRef locates the message of the most recent debug-string stop
// in the target's address space.
type debugStringRef struct {
	addr    uint64
	length  int
	unicode bool
}

// ReadDebugString reads the message of the most recent debug-string stop,
// capped at maxLen bytes. It fails with ErrUnsupported when the current
// stop is not a debug-string stop or the message is a wide string.
func (dbp *Process) ReadDebugString(maxLen int) (string, error) {
	if dbp.currentThread == nil || dbp.currentThread.stop.Reason != target.ReasonDebugOutput {
		return "", target.ErrUnsupported
	}
	if dbp.debugString.unicode {
		return "", target.ErrUnsupported
	}
	if dbp.debugString.length < maxLen {
		maxLen = dbp.debugString.length
	}
	return dbp.ReadString(dbp.debugString.addr, maxLen)
}

// suspendAll suspends every thread that is still running.
func (dbp *Process) suspendAll() error {
	for _, t := range dbp.threads {
		if t.state != threadRunning {
			continue
		}
		if err := t.suspend(); err != nil {
			return err
		}
	}
	return nil
}

// removeThread drops a thread whose exit has been recorded and closes its
// handle.
func (dbp *Process) removeThread(tid int) {
	t := dbp.findThread(tid)
	delete(dbp.threads, tid)
	dbp.api.CloseHandle(t.handle)
	t.handle = 0
}

func (dbp *Process) closeEventFile(ev *DebugEvent) {
	if ev.File != 0 {
		dbp.api.CloseHandle(ev.File)
		ev.File = 0
	}
}

// release closes every native handle still owned by the controller. It runs
// at most once, on the first of: process exit observed, successful detach,
// terminate.
func (dbp *Process) release() {
	dbp.releaseOnce.Do(func() {
		for _, t := range dbp.threads {
			if t.handle != 0 {
				dbp.api.CloseHandle(t.handle)
				t.handle = 0
			}
		}
		if dbp.handle != 0 {
			dbp.api.CloseHandle(dbp.handle)
			dbp.handle = 0
		}
	})
}

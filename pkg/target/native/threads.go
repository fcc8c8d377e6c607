package native

import (
	"fmt"

	"github.com/go-dstub/dstub/pkg/target"
)

type threadState uint8

const (
	threadRunning threadState = iota
	threadStopped
	threadTerminated
)

func (s threadState) String() string {
	switch s {
	case threadRunning:
		return "running"
	case threadStopped:
		return "stopped"
	case threadTerminated:
		return "terminated"
	}
	return fmt.Sprintf("threadState(%d)", uint8(s))
}

// Thread represents one native thread of the controlled process. It
// exclusively owns its native handle; the handle is closed exactly once,
// when the thread is removed from the process or the process releases its
// resources.
type Thread struct {
	// ID is the native thread id.
	ID int

	dbp    *Process
	handle Handle
	state  threadState
	stop   target.StopInfo
}

func (dbp *Process) addThread(tid int, handle Handle) *Thread {
	t := &Thread{
		ID:     tid,
		dbp:    dbp,
		handle: handle,
		state:  threadRunning,
	}
	dbp.threads[tid] = t
	return t
}

// findThread locates an existing thread the OS attributed an event to.
// Receiving an event for an untracked thread is an internal-consistency
// fault.
func (dbp *Process) findThread(tid int) *Thread {
	t, ok := dbp.threads[tid]
	if !ok {
		panic(fmt.Sprintf("debug event for unknown thread %d", tid))
	}
	return t
}

// StopInfo returns the record of the thread's most recent stop.
func (t *Thread) StopInfo() target.StopInfo {
	return t.stop
}

// suspend suspends the thread at the OS level. A thread that was running
// is recorded as stopped with no specific reason; a thread already stopped
// by an event keeps its stop record.
func (t *Thread) suspend() error {
	if t.state == threadTerminated {
		panic(fmt.Sprintf("suspending terminated thread %d", t.ID))
	}
	if err := t.dbp.api.SuspendThread(t.handle); err != nil {
		return t.dbp.platform.TranslateError(err)
	}
	if t.state == threadRunning {
		t.state = threadStopped
		t.stop = target.StopInfo{Event: target.EventStop, Reason: target.ReasonNone}
	}
	return nil
}

// resume undoes suspend. If the process still holds a pending debug event
// the event is continued first, whichever thread it belongs to.
func (t *Thread) resume() error {
	switch t.state {
	case threadRunning:
		panic(fmt.Sprintf("resuming thread %d which is already running", t.ID))
	case threadTerminated:
		return target.ErrProcessNotFound
	}

	if t.dbp.pending.valid {
		if err := t.dbp.api.ContinueDebugEvent(t.dbp.pid, t.dbp.pending.tid); err != nil {
			return t.dbp.platform.TranslateError(err)
		}
		t.dbp.pending.clear()
	}

	if err := t.dbp.api.ResumeThread(t.handle); err != nil {
		return t.dbp.platform.TranslateError(err)
	}
	t.state = threadRunning
	return nil
}

// updateFromEvent derives the thread's state and stop record from a native
// debug event attributed to it. The previous stop record is replaced
// wholesale.
func (t *Thread) updateFromEvent(ev *DebugEvent) {
	if ev.ThreadID != t.ID {
		panic(fmt.Sprintf("debug event for thread %d applied to thread %d", ev.ThreadID, t.ID))
	}

	switch ev.Kind {
	case ExceptionDebugEvent:
		t.state = threadStopped
		t.stop = target.StopInfo{
			Event:  target.EventStop,
			Reason: exceptionReason(ev.ExceptionCode),
			Status: ev.ExceptionCode,
		}
		t.dbp.log.Debugf("exception from inferior, tid=%d, code=%#x, address=%#x",
			t.ID, ev.ExceptionCode, ev.ExceptionAddress)

	case LoadDllDebugEvent, UnloadDllDebugEvent:
		t.state = threadStopped
		t.stop = target.StopInfo{Event: target.EventStop, Reason: target.ReasonLibraryEvent}

	case ExitThreadDebugEvent:
		t.state = threadStopped
		t.stop = target.StopInfo{
			Event:  target.EventStop,
			Reason: target.ReasonThreadExit,
			Status: ev.ExitCode,
		}

	case OutputDebugStringEvent:
		t.state = threadStopped
		t.stop = target.StopInfo{Event: target.EventStop, Reason: target.ReasonDebugOutput}

	default:
		panic(fmt.Sprintf("cannot derive thread state from %s", ev.Kind))
	}
}

// exceptionReason maps a native exception code onto the stop reason
// reported to the debugger.
func exceptionReason(code uint32) target.StopReason {
	switch code {
	case excBreakpoint:
		return target.ReasonBreakpoint
	case excSingleStep:
		return target.ReasonTrap
	case excAccessViolation, excArrayBoundsExceeded, excInPageError, excStackOverflow, excGuardPage:
		return target.ReasonMemoryError
	case excDatatypeMisalignment:
		return target.ReasonMemoryAlignment
	case excFltDenormalOperand, excFltDivideByZero, excFltInexactResult,
		excFltInvalidOperation, excFltOverflow, excFltStackCheck,
		excFltUnderflow, excIntDivideByZero, excIntOverflow:
		return target.ReasonMathError
	case excIllegalInstruction, excPrivInstruction,
		excInvalidDisposition, excNoncontinuable, excUncaughtCxx:
		return target.ReasonInstructionError
	case excMSVCThreadName:
		// Thread-naming protocol exception; nothing actually stopped the
		// thread for a debugger-relevant reason.
		return target.ReasonNone
	}
	panic(fmt.Sprintf("unsupported exception code: %#x", code))
}

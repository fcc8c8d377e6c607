package target

import "fmt"

// StopEvent describes what happened to a thread the last time it stopped.
type StopEvent uint8

const (
	EventNone StopEvent = iota
	EventStop
	EventExit
	EventKill
)

func (e StopEvent) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventStop:
		return "stop"
	case EventExit:
		return "exit"
	case EventKill:
		return "kill"
	}
	return fmt.Sprintf("StopEvent(%d)", uint8(e))
}

// StopReason refines EventStop with the cause of the stop.
type StopReason uint8

const (
	ReasonNone StopReason = iota
	ReasonBreakpoint
	ReasonTrap
	ReasonMemoryError
	ReasonMemoryAlignment
	ReasonMathError
	ReasonInstructionError
	ReasonLibraryEvent
	ReasonThreadExit
	ReasonDebugOutput
)

func (r StopReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBreakpoint:
		return "breakpoint"
	case ReasonTrap:
		return "trap"
	case ReasonMemoryError:
		return "memory error"
	case ReasonMemoryAlignment:
		return "memory alignment"
	case ReasonMathError:
		return "math error"
	case ReasonInstructionError:
		return "instruction error"
	case ReasonLibraryEvent:
		return "library event"
	case ReasonThreadExit:
		return "thread exit"
	case ReasonDebugOutput:
		return "debug output"
	}
	return fmt.Sprintf("StopReason(%d)", uint8(r))
}

// StopInfo records the most recent stop of a thread. It is immutable once
// produced for a given stop and replaced wholesale on the next event.
// Status holds the exit code for EventExit and the native exception code
// for EventStop.
type StopInfo struct {
	Event  StopEvent
	Reason StopReason
	Status uint32
}

func (si StopInfo) String() string {
	switch si.Event {
	case EventExit:
		return fmt.Sprintf("exit (status=%d)", si.Status)
	case EventStop:
		return fmt.Sprintf("stop (reason=%s, status=%#x)", si.Reason, si.Status)
	}
	return si.Event.String()
}

package native

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-dstub/dstub/pkg/target"
)

func TestExceptionReason(t *testing.T) {
	tests := []struct {
		code uint32
		want target.StopReason
	}{
		{excBreakpoint, target.ReasonBreakpoint},
		{excSingleStep, target.ReasonTrap},
		{excAccessViolation, target.ReasonMemoryError},
		{excInPageError, target.ReasonMemoryError},
		{excStackOverflow, target.ReasonMemoryError},
		{excGuardPage, target.ReasonMemoryError},
		{excDatatypeMisalignment, target.ReasonMemoryAlignment},
		{excIntDivideByZero, target.ReasonMathError},
		{excFltDivideByZero, target.ReasonMathError},
		{excFltOverflow, target.ReasonMathError},
		{excIllegalInstruction, target.ReasonInstructionError},
		{excPrivInstruction, target.ReasonInstructionError},
		{excUncaughtCxx, target.ReasonInstructionError},
		{excMSVCThreadName, target.ReasonNone},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, exceptionReason(tt.code), "code %#x", tt.code)
	}
}

func TestExceptionReasonUnknownCodePanics(t *testing.T) {
	require.Panics(t, func() { exceptionReason(0x12345678) })
}

func TestUpdateFromEventMismatchedThreadPanics(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	th := p.findThread(mainThreadID)
	require.Panics(t, func() {
		th.updateFromEvent(evException(9999, excBreakpoint))
	})
}

func TestFindThreadUnknownPanics(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	require.Panics(t, func() { p.findThread(9999) })
}

func TestResumeTerminatedThread(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	th := p.findThread(mainThreadID)
	th.state = threadTerminated
	require.ErrorIs(t, th.resume(), target.ErrProcessNotFound)
}

func TestResumeRunningThreadPanics(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	th := p.findThread(mainThreadID)
	th.state = threadRunning
	require.Panics(t, func() { _ = th.resume() })
}

func TestSuspendTerminatedThreadPanics(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	th := p.findThread(mainThreadID)
	th.state = threadTerminated
	require.Panics(t, func() { _ = th.suspend() })
}

func TestSuspendKeepsEventStopRecord(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	th := p.findThread(mainThreadID)
	th.updateFromEvent(evException(mainThreadID, excAccessViolation))

	require.NoError(t, th.suspend())

	// An event-reported stop is not downgraded to a plain suspension.
	require.Equal(t, target.ReasonMemoryError, th.stop.Reason)
	require.Equal(t, uint32(excAccessViolation), th.stop.Status)
}

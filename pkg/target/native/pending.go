package native

import "fmt"

// pendingEvent enforces the invariant that at most one thread is held
// suspended awaiting controller action. It records the thread identity
// only; it never owns the thread.
//
// mark must be called exactly once between consecutive successful resumes.
// Violating the ordering is a programming defect, not a runtime condition,
// and panics.
type pendingEvent struct {
	valid bool
	tid   int
}

// mark records that tid's event must be reported to the caller and
// suspends the thread at the OS level.
func (pe *pendingEvent) mark(t *Thread) error {
	if pe.valid {
		panic(fmt.Sprintf("pending event already set for thread %d while marking thread %d", pe.tid, t.ID))
	}
	pe.valid = true
	pe.tid = t.ID
	return t.suspend()
}

// clear forgets the pending thread. Called by the resume path before the
// OS is asked to continue the event.
func (pe *pendingEvent) clear() {
	if !pe.valid {
		panic("pending event cleared without being set")
	}
	pe.valid = false
	pe.tid = 0
}

// Package target defines the data model shared by all debugging backends
// and the interface every per-OS process controller implements.
package target

// Process is the per-process controller surface consumed by the protocol
// dispatch layer. Calls into a given Process are serialized by the owning
// layer; the controller itself performs no internal locking.
type Process interface {
	// Pid returns the process ID of the controlled process.
	Pid() int

	// Wait blocks until the target reaches a state that requires a debugger
	// decision. Bookkeeping events (thread creation and thread exit) are
	// consumed and resumed internally and never surface here. After
	// Terminate, Wait returns immediately with a synthesized kill stop.
	Wait() error

	// Resume resumes every stopped thread, releasing the pending debug event
	// first if one is held.
	Resume() error

	// Detach stops controlling the process and leaves it running.
	Detach() error

	// Interrupt requests an asynchronous break into the process. The
	// resulting stop is observed by the next Wait.
	Interrupt() error

	// Terminate kills the process and marks the controller terminated.
	Terminate() error

	IsAlive() bool

	// UpdateInfo captures the process identity snapshot. It fails with
	// ErrAlreadyExists if the snapshot was already captured for this pid.
	UpdateInfo() error
	Info() *ProcessInfo

	// CurrentStop reports the stop information of the thread that caused the
	// last Wait to return.
	CurrentStop() StopInfo

	// ReadMemory reads len(buf) bytes at addr. A partial read with at least
	// one byte transferred is reported as success; callers must check n.
	ReadMemory(addr uint64, buf []byte) (n int, err error)

	// WriteMemory is symmetric to ReadMemory.
	WriteMemory(addr uint64, data []byte) (n int, err error)

	// ReadString reads bytes one at a time until a NUL terminator or maxLen
	// bytes, stopping at the first error from the underlying read.
	ReadString(addr uint64, maxLen int) (string, error)

	AllocateMemory(size int, prot MemoryProtection) (uint64, error)
	DeallocateMemory(addr uint64, size int) error

	// MemoryRegionInfo describes the region containing addr. Backends may
	// opt out of this capability by returning ErrUnsupported.
	MemoryRegionInfo(addr uint64) (*MemoryRegion, error)

	// EnumerateSharedLibraries calls visit once per currently loaded module,
	// in enumeration order. The snapshot is best effort, not transactional.
	EnumerateSharedLibraries(visit func(SharedLibraryInfo)) error
}

// Spawner launches a child process stopped under debug control. It is an
// external collaborator, used as given.
type Spawner interface {
	Run() error
	Pid() int
}

// Platform provides OS-error translation and host identity. It is an
// external collaborator, used as given.
type Platform interface {
	// TranslateError maps a native OS error to the shared error taxonomy.
	TranslateError(err error) error

	CPUType() CPUType
	CPUSubType() uint32
	PointerSize() int
	OSTypeName() string
	OSVendorName() string
}

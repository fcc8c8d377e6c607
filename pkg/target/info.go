package target

// CPUType identifies a CPU family using Mach-O style constants, which is
// what remote debuggers expect on the wire.
type CPUType uint32

const (
	CPUTypeAny   CPUType = 0
	CPUTypeI386  CPUType = 0x00000007
	CPUTypeX8664 CPUType = 0x01000007
	CPUTypeARM   CPUType = 0x0000000c
	CPUTypeARM64 CPUType = 0x0100000c
)

// Endian describes the byte order of the target.
type Endian uint8

const (
	EndianUnknown Endian = iota
	EndianLittle
	EndianBig
)

// ProcessInfo is a snapshot of the identity of a controlled process,
// computed once by UpdateInfo.
type ProcessInfo struct {
	PID int

	// Windows has no simple integer user identities, both are reported as 0.
	RealUID int
	RealGID int

	CPUType    CPUType
	CPUSubType uint32

	// The native fields duplicate CPUType/CPUSubType for now. For ELF targets
	// they come from the ELF header; PE targets have no equivalent source.
	NativeCPUType    CPUType
	NativeCPUSubType uint32

	Endian      Endian
	PointerSize int

	// ArchFlags is reported as zero. No consumer of the field is known.
	ArchFlags uint32

	OSType   string
	OSVendor string
}

// SharedLibraryInfo describes one module loaded in the target. The first
// module reported by an enumeration is the main executable.
type SharedLibraryInfo struct {
	Main bool
	Path string

	// Sections holds the address-space sections of the module. Windows
	// modules have a single section, the module base address.
	Sections []uint64
}

// MemoryProtection is the abstract protection of an allocated region.
type MemoryProtection uint8

const (
	ProtRead MemoryProtection = 1 << iota
	ProtWrite
	ProtExecute
)

// MemoryRegion describes a mapped region of the target's address space.
type MemoryRegion struct {
	Start      uint64
	Size       uint64
	Protection MemoryProtection
}

package native

import (
	"errors"

	"github.com/go-dstub/dstub/pkg/logflags"
	"github.com/go-dstub/dstub/pkg/target"
)

// ReadMemory reads len(buf) bytes of the target's address space at addr.
// A partial copy that transferred at least one byte is a success; callers
// must check n for truncation. A transfer of zero bytes surfaces the
// translated OS error.
func (dbp *Process) ReadMemory(addr uint64, buf []byte) (int, error) {
	n, err := dbp.api.ReadProcessMemory(dbp.handle, addr, buf)
	if err != nil {
		if !errors.Is(err, ErrPartialCopy) || n == 0 {
			return n, dbp.platform.TranslateError(err)
		}
	}
	if logflags.Memory() {
		logflags.MemoryLogger().Debugf("read %d bytes at %#x", n, addr)
	}
	return n, nil
}

// WriteMemory writes data to the target's address space at addr, with the
// same partial-transfer contract as ReadMemory.
func (dbp *Process) WriteMemory(addr uint64, data []byte) (int, error) {
	n, err := dbp.api.WriteProcessMemory(dbp.handle, addr, data)
	if err != nil {
		if !errors.Is(err, ErrPartialCopy) || n == 0 {
			return n, dbp.platform.TranslateError(err)
		}
	}
	if logflags.Memory() {
		logflags.MemoryLogger().Debugf("wrote %d bytes at %#x", n, addr)
	}
	return n, nil
}

// ReadString reads bytes one at a time starting at addr until a NUL
// terminator or maxLen bytes. The first error from the underlying read
// stops the scan; the bytes accumulated so far are returned with it.
func (dbp *Process) ReadString(addr uint64, maxLen int) (string, error) {
	var c [1]byte
	str := make([]byte, 0, 64)
	for i := 0; i < maxLen; i++ {
		if _, err := dbp.ReadMemory(addr+uint64(i), c[:]); err != nil {
			return string(str), err
		}
		if c[0] == 0 {
			break
		}
		str = append(str, c[0])
	}
	return string(str), nil
}

// AllocateMemory commits a region of the given size in the target and
// returns its base address. The abstract protection bits map onto the
// finest-grained native protection constant: Execute selects among the
// execute variants based on the Read/Write bits, otherwise the plain
// variants apply.
func (dbp *Process) AllocateMemory(size int, prot target.MemoryProtection) (uint64, error) {
	var pageProtection uint32
	if prot&target.ProtExecute != 0 {
		switch {
		case prot&target.ProtWrite != 0:
			pageProtection = pageExecuteReadWrite
		case prot&target.ProtRead != 0:
			pageProtection = pageExecuteRead
		default:
			pageProtection = pageExecute
		}
	} else {
		switch {
		case prot&target.ProtWrite != 0:
			pageProtection = pageReadWrite
		case prot&target.ProtRead != 0:
			pageProtection = pageReadOnly
		default:
			pageProtection = pageNoAccess
		}
	}

	addr, err := dbp.api.AllocateMemory(dbp.handle, size, pageProtection)
	if err != nil {
		return 0, dbp.platform.TranslateError(err)
	}
	return addr, nil
}

// DeallocateMemory releases a region previously returned by AllocateMemory.
func (dbp *Process) DeallocateMemory(addr uint64, size int) error {
	if err := dbp.api.FreeMemory(dbp.handle, addr); err != nil {
		return dbp.platform.TranslateError(err)
	}
	return nil
}

// MemoryRegionInfo is not implemented on this backend.
func (dbp *Process) MemoryRegionInfo(addr uint64) (*target.MemoryRegion, error) {
	return nil, target.ErrUnsupported
}

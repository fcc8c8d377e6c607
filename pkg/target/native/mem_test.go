package native

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-dstub/dstub/pkg/target"
)

func TestReadMemory(t *testing.T) {
	api := &fakeAPI{
		readFunc: func(addr uint64, buf []byte) (int, error) {
			for i := range buf {
				buf[i] = byte(addr) + byte(i)
			}
			return len(buf), nil
		},
	}
	p := stoppedTestProcess(api)

	buf := make([]byte, 4)
	n, err := p.ReadMemory(0x10, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0x10, 0x11, 0x12, 0x13}, buf)
}

func TestReadMemoryZeroBytesFails(t *testing.T) {
	readErr := errors.New("access is denied")
	api := &fakeAPI{
		readFunc: func(addr uint64, buf []byte) (int, error) {
			return 0, readErr
		},
	}
	p := stoppedTestProcess(api)

	n, err := p.ReadMemory(0x10, make([]byte, 4))
	require.ErrorIs(t, err, readErr)
	require.Equal(t, 0, n)
}

func TestReadMemoryPartialIsSuccess(t *testing.T) {
	api := &fakeAPI{
		readFunc: func(addr uint64, buf []byte) (int, error) {
			return 5, fmt.Errorf("%w: page boundary", ErrPartialCopy)
		},
	}
	p := stoppedTestProcess(api)

	n, err := p.ReadMemory(0x10, make([]byte, 16))
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestReadMemoryPartialZeroBytesFails(t *testing.T) {
	api := &fakeAPI{
		readFunc: func(addr uint64, buf []byte) (int, error) {
			return 0, fmt.Errorf("%w: unmapped", ErrPartialCopy)
		},
	}
	p := stoppedTestProcess(api)

	n, err := p.ReadMemory(0x10, make([]byte, 16))
	require.ErrorIs(t, err, ErrPartialCopy)
	require.Equal(t, 0, n)
}

func TestWriteMemory(t *testing.T) {
	var got []byte
	api := &fakeAPI{
		writeFunc: func(addr uint64, data []byte) (int, error) {
			got = append([]byte(nil), data...)
			return len(data), nil
		},
	}
	p := stoppedTestProcess(api)

	n, err := p.WriteMemory(0x10, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestWriteMemoryPartialIsSuccess(t *testing.T) {
	api := &fakeAPI{
		writeFunc: func(addr uint64, data []byte) (int, error) {
			return 2, fmt.Errorf("%w: page boundary", ErrPartialCopy)
		},
	}
	p := stoppedTestProcess(api)

	n, err := p.WriteMemory(0x10, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestWriteMemoryZeroBytesFails(t *testing.T) {
	writeErr := errors.New("access is denied")
	api := &fakeAPI{
		writeFunc: func(addr uint64, data []byte) (int, error) {
			return 0, writeErr
		},
	}
	p := stoppedTestProcess(api)

	n, err := p.WriteMemory(0x10, []byte{1})
	require.ErrorIs(t, err, writeErr)
	require.Equal(t, 0, n)
}

// stringReader serves single-byte reads from an in-memory image, failing
// at the addresses listed in bad.
func stringReader(base uint64, image string, bad map[uint64]error) func(uint64, []byte) (int, error) {
	return func(addr uint64, buf []byte) (int, error) {
		if err, ok := bad[addr]; ok {
			return 0, err
		}
		for i := range buf {
			buf[i] = image[addr-base+uint64(i)]
		}
		return len(buf), nil
	}
}

func TestReadString(t *testing.T) {
	api := &fakeAPI{readFunc: stringReader(0x100, "hello\x00world", nil)}
	p := stoppedTestProcess(api)

	s, err := p.ReadString(0x100, 64)
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestReadStringMaxLen(t *testing.T) {
	api := &fakeAPI{readFunc: stringReader(0x100, "hello\x00", nil)}
	p := stoppedTestProcess(api)

	s, err := p.ReadString(0x100, 3)
	require.NoError(t, err)
	require.Equal(t, "hel", s)
}

func TestReadStringStopsAtFirstError(t *testing.T) {
	readErr := errors.New("access is denied")
	api := &fakeAPI{
		readFunc: stringReader(0x100, "hello\x00", map[uint64]error{0x103: readErr}),
	}
	p := stoppedTestProcess(api)

	s, err := p.ReadString(0x100, 64)
	require.ErrorIs(t, err, readErr)
	require.Equal(t, "hel", s)
}

func TestAllocateMemoryProtectionMapping(t *testing.T) {
	tests := []struct {
		prot target.MemoryProtection
		want uint32
	}{
		{0, pageNoAccess},
		{target.ProtRead, pageReadOnly},
		{target.ProtWrite, pageReadWrite},
		{target.ProtRead | target.ProtWrite, pageReadWrite},
		{target.ProtExecute, pageExecute},
		{target.ProtExecute | target.ProtRead, pageExecuteRead},
		{target.ProtExecute | target.ProtWrite, pageExecuteReadWrite},
		{target.ProtExecute | target.ProtRead | target.ProtWrite, pageExecuteReadWrite},
	}
	for _, tt := range tests {
		api := &fakeAPI{}
		p := stoppedTestProcess(api)

		addr, err := p.AllocateMemory(4096, tt.prot)
		require.NoError(t, err, "prot %v", tt.prot)
		require.NotZero(t, addr)
		require.Equal(t, []fakeAlloc{{size: 4096, prot: tt.want}}, api.allocs, "prot %v", tt.prot)
	}
}

func TestAllocateMemoryFailureTranslated(t *testing.T) {
	allocErr := errors.New("not enough memory")
	api := &fakeAPI{allocErr: allocErr}
	p := stoppedTestProcess(api)

	_, err := p.AllocateMemory(4096, target.ProtRead)
	require.ErrorIs(t, err, allocErr)
}

func TestDeallocateMemory(t *testing.T) {
	api := &fakeAPI{}
	p := stoppedTestProcess(api)

	require.NoError(t, p.DeallocateMemory(0xdead0000, 4096))
	require.Equal(t, []uint64{0xdead0000}, api.freed)

	api.freeErr = errors.New("invalid address")
	require.ErrorIs(t, p.DeallocateMemory(0xdead0000, 4096), api.freeErr)
}

func TestMemoryRegionInfoUnsupported(t *testing.T) {
	p := stoppedTestProcess(&fakeAPI{})
	region, err := p.MemoryRegionInfo(0x1000)
	require.ErrorIs(t, err, target.ErrUnsupported)
	require.Nil(t, region)
}

//go:build darwin

package physdisk

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

const (
	dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
	dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
)

func readGeometry(f *os.File) (int64, int, error) {
	var blockSize uint32
	var blockCount uint64

	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), dkiocGetBlockSize, uintptr(unsafe.Pointer(&blockSize)))
	if errno != 0 {
		return 0, 0, fmt.Errorf("%w: block size: %v", errNoSize, errno)
	}
	_, _, errno = syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), dkiocGetBlockCount, uintptr(unsafe.Pointer(&blockCount)))
	if errno != 0 {
		return 0, 0, fmt.Errorf("%w: block count: %v", errNoSize, errno)
	}
	return int64(blockSize) * int64(blockCount), int(blockSize), nil
}

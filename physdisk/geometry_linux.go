//go:build linux

package physdisk

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// readGeometry returns the size in bytes and the logical sector size of a
// block device.
func readGeometry(f *os.File) (int64, int, error) {
	fd := int(f.Fd())
	bps, err := unix.IoctlGetInt(fd, unix.BLKSSZGET)
	if err != nil {
		// Character devices and other oddities: fall back to seeking.
		size, serr := f.Seek(0, io.SeekEnd)
		if serr != nil {
			return 0, 0, fmt.Errorf("%w: %v", errNoSize, err)
		}
		_, _ = f.Seek(0, io.SeekStart)
		return size, imageSectorSize, nil
	}

	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, 0, fmt.Errorf("%w: %v", errNoSize, errno)
	}
	return int64(size), bps, nil
}

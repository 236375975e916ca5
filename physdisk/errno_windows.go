//go:build windows

package physdisk

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func isMediaErrno(errno syscall.Errno) bool {
	switch errno {
	case windows.ERROR_IO_DEVICE, windows.ERROR_CRC:
		return true
	}
	return false
}

//go:build !windows

package physdisk

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// isMediaErrno reports errors raised for unreadable or corrupt sectors while
// the device itself keeps responding.
func isMediaErrno(errno syscall.Errno) bool {
	switch errno {
	case unix.EIO, unix.EBADMSG:
		return true
	}
	return false
}

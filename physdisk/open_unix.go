//go:build !windows

package physdisk

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"hdvalidator/logbook"
)

// openFlags picks the open(2) flags. Devices bypass the page cache where the
// platform allows it; on Linux O_EXCL makes the open of a block device fail
// while any partition is mounted.
func openFlags(image bool, opts Options) int {
	flags := os.O_RDONLY
	if opts.Writable {
		flags = os.O_RDWR | os.O_SYNC
	}
	if image {
		return flags
	}
	flags |= directIO
	if opts.Exclusive && runtime.GOOS == "linux" {
		flags |= unix.O_EXCL
	}
	return flags
}

// openDevice opens path and, when asked, locks it.
func openDevice(path string, image bool, opts Options) (*os.File, func(), error) {
	f, err := os.OpenFile(path, openFlags(image, opts), 0)
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil, nil, fmt.Errorf("%w: %s (unmount it first)", ErrBusy, path)
		}
		return nil, nil, fmt.Errorf("cannot open device %s: %w", path, err)
	}
	if !opts.Exclusive {
		return f, nil, nil
	}

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, nil, fmt.Errorf("%w: %s is locked by another process", ErrBusy, path)
		}
		return nil, nil, fmt.Errorf("cannot lock %s: %w", path, err)
	}
	logbook.LogDebug(logbook.ComponentDisk, "device locked", "path", path)
	return f, func() { _ = unix.Flock(fd, unix.LOCK_UN) }, nil
}

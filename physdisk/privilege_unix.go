//go:build !windows

package physdisk

import "golang.org/x/sys/unix"

// Privileged reports whether the process may open raw devices.
func Privileged() bool {
	return unix.Geteuid() == 0
}

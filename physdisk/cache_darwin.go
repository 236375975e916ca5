//go:build darwin

package physdisk

import (
	"os"

	"golang.org/x/sys/unix"
)

const directIO = 0

// adviseUncached turns off the unified buffer cache for the descriptor.
func adviseUncached(f *os.File) {
	_, _ = unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1)
}

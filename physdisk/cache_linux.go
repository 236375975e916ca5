//go:build linux

package physdisk

import (
	"os"

	"golang.org/x/sys/unix"
)

// directIO makes the kernel transfer exactly the sectors asked for. Buffered
// reads fail a whole page when one sector in it is unreadable.
const directIO = unix.O_DIRECT

func adviseUncached(*os.File) {}

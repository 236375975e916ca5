//go:build !linux && !darwin

package physdisk

import "os"

const directIO = 0

func adviseUncached(*os.File) {}

//go:build !linux && !darwin && !windows

package physdisk

import (
	"fmt"
	"io"
	"os"
)

func readGeometry(f *os.File) (int64, int, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errNoSize, err)
	}
	_, _ = f.Seek(0, io.SeekStart)
	return size, imageSectorSize, nil
}

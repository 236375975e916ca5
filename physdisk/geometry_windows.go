//go:build windows

package physdisk

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const ioctlDiskGetDriveGeometryEx = 0x000700A0

// readGeometry decodes DISK_GEOMETRY_EX: BytesPerSector sits at offset 20 and
// DiskSize at offset 24.
func readGeometry(f *os.File) (int64, int, error) {
	var buf [256]byte
	var n uint32
	err := windows.DeviceIoControl(windows.Handle(f.Fd()), ioctlDiskGetDriveGeometryEx,
		nil, 0, &buf[0], uint32(len(buf)), &n, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errNoSize, err)
	}
	if n < 32 {
		return 0, 0, fmt.Errorf("%w: short geometry (%d bytes)", errNoSize, n)
	}
	bps := binary.LittleEndian.Uint32(buf[20:24])
	size := binary.LittleEndian.Uint64(buf[24:32])
	return int64(size), int(bps), nil
}

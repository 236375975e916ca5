//go:build windows

package physdisk

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sys/windows"

	"hdvalidator/logbook"
)

const (
	ioctlVolumeGetVolumeDiskExtents = 0x00560000
	diskExtentSize                  = 24
)

func driveTypeString(t uint32) string {
	switch t {
	case windows.DRIVE_REMOVABLE:
		return "removable"
	case windows.DRIVE_FIXED:
		return "fixed"
	case windows.DRIVE_REMOTE:
		return "network"
	case windows.DRIVE_CDROM:
		return "cdrom"
	case windows.DRIVE_RAMDISK:
		return "ramdisk"
	default:
		return "unknown"
	}
}

// ListMounted returns every drive letter with a root directory.
func ListMounted() []Mount {
	var out []Mount
	for l := 'A'; l <= 'Z'; l++ {
		root := fmt.Sprintf(`%c:\`, l)
		p, _ := windows.UTF16PtrFromString(root)
		typ := windows.GetDriveType(p)
		if typ == windows.DRIVE_UNKNOWN || typ == windows.DRIVE_NO_ROOT_DIR {
			continue
		}
		var total uint64
		_ = windows.GetDiskFreeSpaceEx(p, nil, &total, nil)
		m := Mount{
			MountPoint: root,
			Device:     fmt.Sprintf(`\\.\%c:`, l),
			FSType:     driveTypeString(typ),
			SizeBytes:  int64(total),
		}
		if typ == windows.DRIVE_FIXED || typ == windows.DRIVE_REMOVABLE {
			m.Disks = volumeDisks(m.Device)
		}
		out = append(out, m)
	}
	return out
}

func deviceForMount(target string) (string, string) {
	if len(target) >= 2 && target[1] == ':' {
		l := strings.ToUpper(target[:1])
		return `\\.\` + l + `:`, l + `:\`
	}
	return "", ""
}

// volumeDisks asks the volume manager which physical drives hold vol.
func volumeDisks(vol string) []string {
	p, err := windows.UTF16PtrFromString(vol)
	if err != nil {
		return nil
	}
	h, err := windows.CreateFile(p, 0, windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil
	}
	defer windows.CloseHandle(h)

	buf := make([]byte, 8+32*diskExtentSize)
	var n uint32
	err = windows.DeviceIoControl(h, ioctlVolumeGetVolumeDiskExtents, nil, 0, &buf[0], uint32(len(buf)), &n, nil)
	if err != nil {
		logbook.LogDebug(logbook.ComponentDisk, "no disk extents", "volume", vol, "error", err)
		return nil
	}
	return decodeDiskExtents(buf[:n])
}

// decodeDiskExtents reads VOLUME_DISK_EXTENTS: a DWORD count padded to 8
// bytes, then DISK_EXTENT records that start with the DWORD disk number.
func decodeDiskExtents(b []byte) []string {
	if len(b) < 8 {
		return nil
	}
	var out []string
	count := int(binary.LittleEndian.Uint32(b[:4]))
	for i := 0; i < count; i++ {
		off := 8 + i*diskExtentSize
		if off+diskExtentSize > len(b) {
			break
		}
		disk := fmt.Sprintf(`\\.\PhysicalDrive%d`, binary.LittleEndian.Uint32(b[off:off+4]))
		if !slices.Contains(out, disk) {
			out = append(out, disk)
		}
	}
	return out
}

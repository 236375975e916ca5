//go:build darwin

package physdisk

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ListMounted returns every mounted file system reported by getfsstat.
func ListMounted() []Mount {
	n, err := unix.Getfsstat(nil, unix.MNT_NOWAIT)
	if err != nil || n <= 0 {
		return nil
	}
	buf := make([]unix.Statfs_t, n)
	if _, err := unix.Getfsstat(buf, unix.MNT_NOWAIT); err != nil {
		return nil
	}
	out := make([]Mount, 0, len(buf))
	for _, st := range buf {
		out = append(out, Mount{
			MountPoint: filepath.Clean(unix.ByteSliceToString(st.Mntonname[:])),
			Device:     unix.ByteSliceToString(st.Mntfromname[:]),
			FSType:     unix.ByteSliceToString(st.Fstypename[:]),
			SizeBytes:  int64(st.Blocks) * int64(st.Bsize),
		})
	}
	return out
}

func deviceForMount(target string) (string, string) {
	for _, m := range ListMounted() {
		if m.MountPoint == filepath.Clean(target) {
			return m.Device, m.MountPoint
		}
	}
	return "", ""
}

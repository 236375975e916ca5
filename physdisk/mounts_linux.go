//go:build linux

package physdisk

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ListMounted parses /proc/self/mounts. Pseudo file systems are skipped.
func ListMounted() []Mount {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Mount
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// <src> <target> <fstype> <opts> ...
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		m := Mount{Device: fields[0], MountPoint: filepath.Clean(fields[1]), FSType: fields[2]}
		var st unix.Statfs_t
		if unix.Statfs(m.MountPoint, &st) == nil {
			m.SizeBytes = int64(st.Blocks) * int64(st.Bsize)
		}
		out = append(out, m)
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

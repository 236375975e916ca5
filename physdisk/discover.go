package physdisk

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// Candidate is a device node found by List.
type Candidate struct {
	Path       string
	Compatible bool
	Reason     string
}

// List enumerates device nodes that may be tested. Only whole disks are
// marked compatible; partitions are listed with a reason.
func List() ([]Candidate, error) {
	switch runtime.GOOS {
	case "darwin":
		return discoverDarwin()
	case "linux":
		return discoverLinux()
	case "windows":
		return discoverWindows()
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func discoverDarwin() ([]Candidate, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "disk") && !strings.HasPrefix(name, "rdisk") {
			continue
		}
		path := filepath.Join("/dev", name)
		if isPartitionDarwin(name) {
			out = append(out, Candidate{Path: path, Reason: "partition"})
		} else {
			out = append(out, Candidate{Path: path, Compatible: true})
		}
	}
	return out, nil
}

// isPartitionDarwin matches diskNsM and rdiskNsM.
func isPartitionDarwin(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == 's' && name[i+1] >= '0' && name[i+1] <= '9' {
			return true
		}
	}
	return false
}

func discoverLinux() ([]Candidate, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join("/dev", name)
		switch {
		case isWholeLinuxDevice(name):
			out = append(out, Candidate{Path: path, Compatible: true})
		case isPartitionLinux(name):
			out = append(out, Candidate{Path: path, Reason: "partition"})
		case strings.HasPrefix(name, "loop"):
			out = append(out, Candidate{Path: path, Reason: "loop device"})
		}
	}
	return out, nil
}

func isWholeLinuxDevice(name string) bool {
	// sdX, vdX
	if len(name) == 3 && (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && name[2] >= 'a' && name[2] <= 'z' {
		return true
	}
	// nvmeXnY
	if strings.HasPrefix(name, "nvme") && !strings.Contains(name, "p") {
		parts := strings.Split(strings.TrimPrefix(name, "nvme"), "n")
		return len(parts) == 2 && parts[0] != "" && parts[1] != ""
	}
	// mmcblkX
	return strings.HasPrefix(name, "mmcblk") && !strings.Contains(name, "p")
}

func isPartitionLinux(name string) bool {
	if (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && len(name) >= 4 {
		last := name[len(name)-1]
		return last >= '0' && last <= '9'
	}
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		return strings.Contains(name, "p")
	}
	return false
}

func discoverWindows() ([]Candidate, error) {
	var out []Candidate
	for i := 0; i < 32; i++ {
		path := fmt.Sprintf(`\\.\PhysicalDrive%d`, i)
		f, err := os.Open(path)
		if err == nil {
			_ = f.Close()
			out = append(out, Candidate{Path: path, Compatible: true})
		} else if i < 8 {
			out = append(out, Candidate{Path: path, Reason: "not accessible"})
		}
	}
	return out, nil
}

// Mount is a mounted file system or volume.
type Mount struct {
	MountPoint string
	Device     string
	FSType     string
	SizeBytes  int64
	// Disks lists the whole disks the volume spans when the platform
	// addresses volumes apart from disks (\\.\PhysicalDriveN on Windows).
	Disks []string
}

// WholeDevice maps a partition node to the disk holding it. Other paths are
// returned unchanged.
func WholeDevice(dev string) string {
	b := filepath.Base(dev)
	switch {
	case strings.HasPrefix(dev, "/dev/") && (strings.HasPrefix(b, "disk") || strings.HasPrefix(b, "rdisk")):
		for i := 0; i+1 < len(b); i++ {
			if b[i] == 's' && b[i+1] >= '0' && b[i+1] <= '9' {
				return filepath.Join("/dev", b[:i])
			}
		}
	case strings.HasPrefix(dev, "/dev/") && isPartitionLinux(b):
		if strings.HasPrefix(b, "nvme") || strings.HasPrefix(b, "mmcblk") {
			return filepath.Join("/dev", b[:strings.LastIndexByte(b, 'p')])
		}
		return filepath.Join("/dev", strings.TrimRight(b, "0123456789"))
	}
	return dev
}

// Resolve maps a mount point or device path to its device node and mount
// point.
func Resolve(p string) (device, mountpoint string, err error) {
	if strings.HasPrefix(p, `\\.\`) {
		return p, "", nil
	}
	p = filepath.Clean(p)
	if strings.HasPrefix(p, "/dev/") {
		for _, m := range ListMounted() {
			if m.Device == p {
				return p, m.MountPoint, nil
			}
		}
		return p, "", nil
	}
	dev, mnt := deviceForMount(p)
	if dev == "" {
		return "", "", fmt.Errorf("cannot resolve device for %s", p)
	}
	return dev, mnt, nil
}

// MountedOn returns the mounted file systems that live on dev or one of its
// partitions.
func MountedOn(dev string) []Mount {
	return mountsOn(ListMounted(), dev)
}

func mountsOn(mounts []Mount, dev string) []Mount {
	var out []Mount
	for _, m := range mounts {
		if m.Device == dev || WholeDevice(m.Device) == dev ||
			slices.ContainsFunc(m.Disks, func(d string) bool { return strings.EqualFold(d, dev) }) {
			out = append(out, m)
		}
	}
	return out
}

// Details describes a device for listings and the run log header.
type Details struct {
	Type   string
	Model  string
	Serial string
	Size   int64 // -1 when unknown
}

func (d Details) String() string {
	s := d.Model
	if s == "" {
		s = d.Type
	}
	if d.Serial != "" && d.Serial != "-" {
		s += ", serial " + d.Serial
	}
	return s
}

// SizeString formats Size for humans.
func (d Details) SizeString() string {
	if d.Size < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(d.Size))
}

// Describe gathers read-only details about path.
func Describe(path string) Details {
	d := Details{Type: "Disk", Serial: "-", Size: sizeOf(path)}
	if IsImage(path) {
		d.Type = "Image File"
		d.Model = filepath.Base(path)
		return d
	}
	switch runtime.GOOS {
	case "linux":
		sysPath := filepath.Join("/sys/block", filepath.Base(path))
		if _, err := os.Stat(sysPath); err != nil {
			sysPath = filepath.Join("/sys/class/block", filepath.Base(path))
		}
		if b, err := os.ReadFile(filepath.Join(sysPath, "removable")); err == nil {
			if strings.TrimSpace(string(b)) == "1" {
				d.Type = "Removable Disk"
			} else {
				d.Type = "Fixed Disk"
			}
		}
		vendor, _ := os.ReadFile(filepath.Join(sysPath, "device", "vendor"))
		model, _ := os.ReadFile(filepath.Join(sysPath, "device", "model"))
		d.Model = strings.TrimSpace(strings.TrimSpace(string(vendor)) + " " + strings.TrimSpace(string(model)))
		if b, err := os.ReadFile(filepath.Join(sysPath, "device", "serial")); err == nil {
			d.Serial = strings.TrimSpace(string(b))
		}
	case "windows":
		d.Type = "PhysicalDrive"
	}
	if t := mediaTypeBySize(d.Size); t != "" {
		d.Type = t
	}
	return d
}

func sizeOf(path string) int64 {
	f, err := os.Open(path)
	if err != nil {
		return -1
	}
	defer f.Close()
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		return fi.Size()
	}
	size, _, err := readGeometry(f)
	if err != nil {
		return -1
	}
	return size
}

func mediaTypeBySize(size int64) string {
	switch size {
	case 360 * 1024, 720 * 1024, 1200 * 1024, 1440 * 1024, 2880 * 1024:
		return "Floppy"
	default:
		return ""
	}
}

// Package physdisk opens raw block devices and disk image files as
// surface.Disk values.
package physdisk

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/dustin/go-humanize"

	"hdvalidator/logbook"
	"hdvalidator/surface"
)

// DefaultMaxTransferBytes caps a single device call when Options does not.
const DefaultMaxTransferBytes = 1 << 20

// Image files are always addressed in 512 byte sectors.
const imageSectorSize = 512

var (
	// ErrNotPrivileged is returned when a raw device is opened without root or
	// an elevated token.
	ErrNotPrivileged = errors.New("raw device access requires administrator privileges")

	// ErrBusy is returned when an exclusive open finds the device in use.
	ErrBusy = errors.New("device is in use")

	// ErrReadOnly is returned by WriteSectors on a device opened read-only.
	ErrReadOnly = errors.New("device opened read-only")

	errOutOfRange = errors.New("sector range beyond end of device")
	errNoSize     = errors.New("cannot determine device size")
)

// Options controls how Open accesses the device.
type Options struct {
	// Writable opens the device for writing with write-through semantics.
	Writable bool
	// Exclusive locks the device against other users for the lifetime of
	// the Device.
	Exclusive bool
	// MaxTransferBytes caps one read or write call. Zero means
	// DefaultMaxTransferBytes.
	MaxTransferBytes int
}

// Device is an open block device or image file.
type Device struct {
	f           *os.File
	path        string
	image       bool
	size        int64
	bps         int
	maxTransfer int
	writable    bool
	direct      bool
	release     func()
}

var _ surface.Disk = (*Device)(nil)

// IsImage reports whether path names a regular file rather than a device node.
func IsImage(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Open opens path according to opts.
func Open(path string, opts Options) (*Device, error) {
	image := IsImage(path)
	if !image && !Privileged() {
		return nil, fmt.Errorf("%w: %s", ErrNotPrivileged, path)
	}

	f, release, err := openDevice(path, image, opts)
	if err != nil {
		return nil, err
	}
	d := &Device{f: f, path: path, image: image, writable: opts.Writable, direct: !image && directIO != 0, release: release}

	if image {
		fi, err := f.Stat()
		if err != nil {
			d.Close()
			return nil, err
		}
		d.size, d.bps = fi.Size(), imageSectorSize
	} else {
		d.size, d.bps, err = readGeometry(f)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		adviseUncached(f)
	}
	if d.bps <= 0 || d.size < int64(d.bps) {
		d.Close()
		return nil, fmt.Errorf("%s: %w (size %d, sector %d)", path, errNoSize, d.size, d.bps)
	}

	limit := opts.MaxTransferBytes
	if limit <= 0 {
		limit = DefaultMaxTransferBytes
	}
	d.maxTransfer = limit / d.bps
	if d.maxTransfer < 1 {
		d.Close()
		return nil, fmt.Errorf("transfer size %d is smaller than one %d byte sector", limit, d.bps)
	}

	logbook.LogInfo(logbook.ComponentDisk, "opened device",
		"path", path,
		"image", image,
		"writable", opts.Writable,
		"exclusive", opts.Exclusive,
		"direct", d.direct,
		"size", humanize.IBytes(uint64(d.size)),
		"bytes_per_sector", d.bps,
		"max_transfer_sectors", d.maxTransfer)
	return d, nil
}

// Close releases any lock and closes the device.
func (d *Device) Close() error {
	if d.release != nil {
		d.release()
		d.release = nil
	}
	return d.f.Close()
}

// Path returns the path the device was opened with.
func (d *Device) Path() string { return d.path }

// IsImage reports whether the device is a regular file.
func (d *Device) IsImage() bool { return d.image }

// Size returns the usable size in bytes, a whole number of sectors.
func (d *Device) Size() int64 { return int64(d.TotalSectors()) * int64(d.bps) }

func (d *Device) BytesPerSector() int     { return d.bps }
func (d *Device) TotalSectors() uint64    { return uint64(d.size / int64(d.bps)) }
func (d *Device) MaxTransferSectors() int { return d.maxTransfer }

func (d *Device) checkRange(op string, sector uint64, count int) error {
	if count <= 0 || sector+uint64(count) > d.TotalSectors() {
		return &surface.DeviceError{Op: op, Sector: sector, Count: count, Code: -1, Err: errOutOfRange}
	}
	return nil
}

// ReadSectors reads count sectors starting at sector with a single call.
func (d *Device) ReadSectors(sector uint64, count int) ([]byte, error) {
	if err := d.checkRange("read", sector, count); err != nil {
		return nil, err
	}
	buf := d.buffer(count * d.bps)
	if _, err := d.f.ReadAt(buf, int64(sector)*int64(d.bps)); err != nil {
		return nil, deviceError("read", sector, count, err)
	}
	return buf, nil
}

// ReadSector reads one sector.
func (d *Device) ReadSector(sector uint64) ([]byte, error) {
	return d.ReadSectors(sector, 1)
}

// WriteSectors writes data, a whole number of sectors, at sector.
func (d *Device) WriteSectors(sector uint64, data []byte) error {
	if !d.writable {
		return &surface.DeviceError{Op: "write", Sector: sector, Code: -1, Err: ErrReadOnly}
	}
	if len(data)%d.bps != 0 {
		return fmt.Errorf("write of %d bytes is not a whole number of %d byte sectors", len(data), d.bps)
	}
	count := len(data) / d.bps
	if err := d.checkRange("write", sector, count); err != nil {
		return err
	}
	if d.direct && !isAligned(data, d.align()) {
		b := d.buffer(len(data))
		copy(b, data)
		data = b
	}
	if _, err := d.f.WriteAt(data, int64(sector)*int64(d.bps)); err != nil {
		return deviceError("write", sector, count, err)
	}
	return nil
}

// align is the memory alignment unbuffered transfers need.
func (d *Device) align() int {
	if d.bps > pageAlign && d.bps&(d.bps-1) == 0 {
		return d.bps
	}
	return pageAlign
}

func (d *Device) buffer(n int) []byte {
	if d.direct {
		return alignedBuffer(n, d.align())
	}
	return make([]byte, n)
}

// deviceError classifies an I/O failure by its platform error code.
func deviceError(op string, sector uint64, count int, err error) error {
	de := &surface.DeviceError{Op: op, Sector: sector, Count: count, Code: -1, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		de.Code = int(errno)
		de.Media = isMediaErrno(errno)
	}
	logbook.LogDebug(logbook.ComponentDisk, "device call failed",
		"op", op, "sector", sector, "count", count, "code", de.Code, "media", de.Media)
	return de
}

// Package surface implements the sector I/O and test-execution engine used to
// validate the surface of a block device.
//
// The engine works purely on absolute sector indices (LBAs). A Disk supplies
// the raw primitives; SectorReader adds chunked reads with tiered recovery and
// Tester composes reads, writes and the verification pattern into the six
// test algorithms.
package surface

import (
	"errors"
	"fmt"
)

// Disk is the raw device boundary. Implementations must be safe to call from
// the single goroutine running a test; no concurrent calls are made.
type Disk interface {
	// BytesPerSector is the logical sector size.
	BytesPerSector() int
	// TotalSectors is the number of addressable sectors.
	TotalSectors() uint64
	// MaxTransferSectors is the largest sector count accepted by one I/O call.
	MaxTransferSectors() int

	ReadSectors(sector uint64, count int) ([]byte, error)
	ReadSector(sector uint64) ([]byte, error)
	WriteSectors(sector uint64, data []byte) error
}

var (
	// ErrMedia marks a transient media failure (unreadable sector, CRC error).
	// The device is still responsive and finer grained retries may succeed.
	ErrMedia = errors.New("media error")

	// ErrCancelled is returned by the read primitives once Cancel was called.
	ErrCancelled = errors.New("test cancelled")

	// ErrUnexplainedBulkFailure is returned when a bulk read failed with a
	// media error but every sector of the range could be read individually.
	// Drives behaving this way are treated as failing.
	ErrUnexplainedBulkFailure = errors.New("bulk read failed although every sector read back")

	// ErrShortTransfer is returned when a device call transferred fewer bytes
	// than requested without reporting an error.
	ErrShortTransfer = errors.New("short transfer")

	errUnaligned = errors.New("buffer is not a whole number of sectors")
)

// DeviceError is a failed device call. Code carries the platform error code
// (errno on unix, Win32 error on windows).
type DeviceError struct {
	Op     string
	Sector uint64
	Count  int
	Code   int
	Media  bool
	Err    error
}

func (e *DeviceError) Error() string {
	class := "device"
	if e.Media {
		class = "media"
	}
	return fmt.Sprintf("%s %s error %d at sector %d (+%d): %v", e.Op, class, e.Code, e.Sector, e.Count, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Is reports ErrMedia for media class failures so callers can use errors.Is.
func (e *DeviceError) Is(target error) bool {
	return target == ErrMedia && e.Media
}

// IsTransient reports whether err is a media failure that may be retried at a
// finer granularity. Every other failure is fatal for the running test.
func IsTransient(err error) bool {
	return err != nil && errors.Is(err, ErrMedia)
}

// ErrorCode extracts the platform error code from err, or -1 when err does not
// carry one.
func ErrorCode(err error) int {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code
	}
	return -1
}

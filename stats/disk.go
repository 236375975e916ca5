package stats

import (
	"time"

	"hdvalidator/surface"
)

// instrumentedDisk counts and times every call of the wrapped Disk.
type instrumentedDisk struct {
	surface.Disk
}

// Instrument returns d with every device call recorded in the disk metrics.
func Instrument(d surface.Disk) surface.Disk {
	return instrumentedDisk{Disk: d}
}

func observe(op string, start time.Time, n int, err error) {
	DiskOpHistogram.WithLabelValues(op).Observe(time.Since(start).Seconds())
	DiskOpCounter.WithLabelValues(op, resultLabel(err)).Inc()
	if err == nil {
		DiskBytesCounter.WithLabelValues(op).Add(float64(n))
	}
}

func (d instrumentedDisk) ReadSectors(sector uint64, count int) ([]byte, error) {
	start := time.Now()
	b, err := d.Disk.ReadSectors(sector, count)
	observe("read", start, len(b), err)
	return b, err
}

func (d instrumentedDisk) ReadSector(sector uint64) ([]byte, error) {
	start := time.Now()
	b, err := d.Disk.ReadSector(sector)
	observe("read_sector", start, len(b), err)
	return b, err
}

func (d instrumentedDisk) WriteSectors(sector uint64, data []byte) error {
	start := time.Now()
	err := d.Disk.WriteSectors(sector, data)
	observe("write", start, len(data), err)
	return err
}

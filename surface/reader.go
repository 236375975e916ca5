package surface

import (
	"fmt"
	"sync/atomic"
)

// Recovered is the result of ReadRangeExhaustive. Data covers the whole
// requested range; bytes of sectors listed in Damaged are zero.
type Recovered struct {
	Data    []byte
	Damaged []uint64
}

// SectorReader performs bounded reads against a Disk. Requests larger than the
// device transfer cap are split into segments and reassembled by absolute
// sector index.
type SectorReader struct {
	disk  Disk
	obs   Observer
	abort atomic.Bool
}

// NewSectorReader returns a reader for disk. obs may be nil.
func NewSectorReader(disk Disk, obs Observer) *SectorReader {
	if obs == nil {
		obs = ObserverFuncs{}
	}
	return &SectorReader{disk: disk, obs: obs}
}

// Disk returns the device the reader operates on.
func (r *SectorReader) Disk() Disk { return r.disk }

// Cancel requests that the running operation stops at the next I/O boundary.
// It cannot be undone and never interrupts a device call in flight.
func (r *SectorReader) Cancel() { r.abort.Store(true) }

// Cancelled reports whether Cancel has been called.
func (r *SectorReader) Cancelled() bool { return r.abort.Load() }

func (r *SectorReader) maxTransfer() int {
	if n := r.disk.MaxTransferSectors(); n > 0 {
		return n
	}
	return 1
}

func (r *SectorReader) position(sector uint64) uint64 {
	return sector * uint64(r.disk.BytesPerSector())
}

// ReadRange reads count sectors starting at sector. It returns ErrCancelled
// once cancellation is observed, or the device error of the first failing
// segment; use IsTransient to tell media failures from fatal ones.
func (r *SectorReader) ReadRange(sector uint64, count int) ([]byte, error) {
	limit := r.maxTransfer()
	if count <= limit {
		if r.Cancelled() {
			return nil, ErrCancelled
		}
		return r.readUnbuffered(sector, count)
	}

	bps := r.disk.BytesPerSector()
	buf := make([]byte, count*bps)
	for start, n := range chunks(sector, uint64(count), limit) {
		if r.Cancelled() {
			return nil, ErrCancelled
		}
		segment, err := r.readUnbuffered(start, n)
		if err != nil {
			return nil, err
		}
		copy(buf[int(start-sector)*bps:], segment)
	}
	return buf, nil
}

// readUnbuffered issues exactly one device read.
func (r *SectorReader) readUnbuffered(sector uint64, count int) ([]byte, error) {
	data, err := r.disk.ReadSectors(sector, count)
	if err == nil && len(data) != count*r.disk.BytesPerSector() {
		err = fmt.Errorf("%w: read %d of %d bytes", ErrShortTransfer, len(data), count*r.disk.BytesPerSector())
	}
	if err != nil {
		return nil, err
	}
	r.obs.StatusUpdate(r.position(sector))
	return data, nil
}

// ReadRangeExhaustive reads count sectors starting at sector and recovers as
// much data as possible. A segment whose bulk read fails with a media error is
// re-read one sector at a time; sectors that still fail are reported in
// Damaged and left zero. Any fatal failure, and a bulk failure that no single
// sector explains, returns an error and no data.
func (r *SectorReader) ReadRangeExhaustive(sector uint64, count int) (*Recovered, error) {
	bps := r.disk.BytesPerSector()
	rec := &Recovered{Data: make([]byte, count*bps)}
	for start, n := range chunks(sector, uint64(count), r.maxTransfer()) {
		off := int(start-sector) * bps
		if err := r.recoverSegment(start, n, rec.Data[off:off+n*bps], &rec.Damaged); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// recoverSegment fills dst, which must be zeroed, with one segment.
func (r *SectorReader) recoverSegment(sector uint64, count int, dst []byte, damaged *[]uint64) error {
	if r.Cancelled() {
		return ErrCancelled
	}
	data, bulkErr := r.readUnbuffered(sector, count)
	if bulkErr == nil {
		copy(dst, data)
		return nil
	}
	logf(r.obs, "Read failure (error: %d) at sectors %s", ErrorCode(bulkErr), sectorSpan(sector, count))
	if !IsTransient(bulkErr) {
		return bulkErr
	}

	bps := r.disk.BytesPerSector()
	found := len(*damaged)
	for i := 0; i < count; i++ {
		idx := sector + uint64(i)
		r.obs.StatusUpdate(r.position(idx))
		b, err := r.disk.ReadSector(idx)
		if err == nil && len(b) != bps {
			err = fmt.Errorf("%w: read %d of %d bytes", ErrShortTransfer, len(b), bps)
		}
		switch {
		case err == nil:
			copy(dst[i*bps:], b)
		case IsTransient(err):
			logf(r.obs, "Read failure (error: %d) at sector %s", ErrorCode(err), sectorNum(idx))
			*damaged = append(*damaged, idx)
		default:
			logf(r.obs, "Read failure (error: %d) at sector %s", ErrorCode(err), sectorNum(idx))
			return err
		}
		if r.Cancelled() {
			return ErrCancelled
		}
	}

	if len(*damaged) == found {
		logf(r.obs, "Read failure at sectors %s could not be attributed to any sector", sectorSpan(sector, count))
		return fmt.Errorf("%w: sectors %d-%d: %v", ErrUnexplainedBulkFailure, sector, sector+uint64(count)-1, bulkErr)
	}
	return nil
}

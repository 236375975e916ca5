package surface

import (
	"errors"
	"fmt"
)

// LargeTransferBytes is the chunk size used by the read-first algorithms. It
// must exceed the drive's cache so repeated passes reach the medium.
const LargeTransferBytes = 64 << 20

// Tester runs one TestKind over sector ranges of a single disk. One test runs
// at a time; Cancel may be called from any goroutine.
type Tester struct {
	kind   TestKind
	reader *SectorReader
	obs    Observer

	// LargeChunkSectors is the chunk size of ReadWipeDamagedRead and
	// ReadWriteVerifyRestore.
	LargeChunkSectors int
}

// NewTester returns a Tester running kind against disk. obs may be nil.
func NewTester(kind TestKind, disk Disk, obs Observer) *Tester {
	if obs == nil {
		obs = ObserverFuncs{}
	}
	t := &Tester{
		kind:   kind,
		reader: NewSectorReader(disk, obs),
		obs:    obs,
	}
	t.LargeChunkSectors = DefaultLargeChunkSectors(disk)
	return t
}

// DefaultLargeChunkSectors converts LargeTransferBytes to sectors of disk,
// never going below the disk's direct transfer cap.
func DefaultLargeChunkSectors(disk Disk) int {
	n := LargeTransferBytes / disk.BytesPerSector()
	if m := disk.MaxTransferSectors(); n < m {
		n = m
	}
	return n
}

// Kind returns the algorithm selected at construction.
func (t *Tester) Kind() TestKind { return t.kind }

// Reader exposes the underlying read primitives.
func (t *Tester) Reader() *SectorReader { return t.reader }

// Cancel requests the running test to stop at the next chunk boundary.
func (t *Tester) Cancel() { t.reader.Cancel() }

// Cancelled reports whether Cancel has been called.
func (t *Tester) Cancelled() bool { return t.reader.Cancelled() }

func (t *Tester) disk() Disk { return t.reader.Disk() }

// WriteRange writes data, a whole number of sectors, starting at sector. The
// write is split at the device transfer cap. The first failing segment ends
// the call; nothing is retried.
func (t *Tester) WriteRange(sector uint64, data []byte) error {
	bps := t.disk().BytesPerSector()
	if len(data)%bps != 0 {
		return fmt.Errorf("%w: %d bytes, %d bytes per sector", errUnaligned, len(data), bps)
	}
	count := uint64(len(data) / bps)
	for start, n := range chunks(sector, count, t.reader.maxTransfer()) {
		off := int(start-sector) * bps
		t.obs.StatusUpdate(start * uint64(bps))
		if err := t.disk().WriteSectors(start, data[off:off+n*bps]); err != nil {
			return err
		}
	}
	return nil
}

// PerformTest runs the selected algorithm over count sectors starting at
// sector and classifies the whole range.
func (t *Tester) PerformTest(sector, count uint64) BlockStatus {
	switch t.kind {
	case Read:
		return t.readTest(sector, count)
	case ReadWipeDamagedRead:
		return t.readWipeDamagedReadTest(sector, count)
	case ReadWriteVerifyRestore:
		return t.readWriteVerifyRestoreTest(sector, count)
	case WriteVerify:
		return t.writeVerifyTest(sector, count)
	case Write:
		return t.writePattern(sector, count)
	default:
		return t.verifyTest(sector, count)
	}
}

// readStatus maps a ReadRange error to a block outcome.
func (t *Tester) readStatus(err error, sector uint64, count int, what string) BlockStatus {
	if errors.Is(err, ErrCancelled) {
		return Untested
	}
	logf(t.obs, "%s (error: %d) at sectors %s", what, ErrorCode(err), sectorSpan(sector, count))
	if IsTransient(err) {
		return Damaged
	}
	return IOError
}

func (t *Tester) readTest(sector, count uint64) BlockStatus {
	for start, n := range chunks(sector, count, t.reader.maxTransfer()) {
		if _, err := t.reader.ReadRange(start, n); err != nil {
			return t.readStatus(err, start, n, "Read failure")
		}
		if t.Cancelled() {
			return Untested
		}
	}
	return OK
}

func (t *Tester) readWipeDamagedReadTest(sector, count uint64) BlockStatus {
	bps := t.disk().BytesPerSector()
	foundDamaged := false
	for start, n := range chunks(sector, count, t.LargeChunkSectors) {
		rec, err := t.reader.ReadRangeExhaustive(start, n)
		if errors.Is(err, ErrCancelled) || t.Cancelled() {
			return Untested
		}
		if err != nil {
			return IOError
		}

		if len(rec.Damaged) > 0 {
			foundDamaged = true
			zero := make([]byte, bps)
			for _, idx := range rec.Damaged {
				if err := t.WriteRange(idx, zero); err != nil {
					logf(t.obs, "Write failure (error: %d) at sector %s", ErrorCode(err), sectorNum(idx))
					return IOError
				}
				logf(t.obs, "Sector %s has been overwritten", sectorNum(idx))
			}

			if _, err := t.reader.ReadRange(start, n); err != nil {
				return t.readStatus(err, start, n, "Second read failure")
			}
		}
		if t.Cancelled() {
			return Untested
		}
	}

	if foundDamaged {
		return OverwriteOK
	}
	return OK
}

func (t *Tester) readWriteVerifyRestoreTest(sector, count uint64) BlockStatus {
	foundDamaged := false
	for start, n := range chunks(sector, count, t.LargeChunkSectors) {
		rec, err := t.reader.ReadRangeExhaustive(start, n)
		if errors.Is(err, ErrCancelled) || t.Cancelled() {
			return Untested
		}
		if err != nil {
			return IOError
		}
		if len(rec.Damaged) > 0 {
			foundDamaged = true
		}

		status := t.writeVerifyTest(start, uint64(n))

		// The original content goes back even when the test was cancelled.
		if err := t.WriteRange(start, rec.Data); err != nil {
			logf(t.obs, "Restore failure (error: %d) at sectors %s", ErrorCode(err), sectorSpan(start, n))
			return IOError
		}
		if status != OK {
			return status
		}
		if t.Cancelled() {
			return Untested
		}
	}

	if foundDamaged {
		return OverwriteOK
	}
	return OK
}

// writeVerifyTest writes the whole range before reading any of it back.
func (t *Tester) writeVerifyTest(sector, count uint64) BlockStatus {
	if status := t.writePattern(sector, count); status != OK {
		return status
	}
	return t.verifyTest(sector, count)
}

func (t *Tester) writePattern(sector, count uint64) BlockStatus {
	bps := t.disk().BytesPerSector()
	for start, n := range chunks(sector, count, t.reader.maxTransfer()) {
		if t.Cancelled() {
			return Untested
		}
		if err := t.WriteRange(start, Pattern(start, n, bps)); err != nil {
			logf(t.obs, "Write failure (error: %d) at sectors %s", ErrorCode(err), sectorSpan(start, n))
			return IOError
		}
	}
	if t.Cancelled() {
		return Untested
	}
	return OK
}

func (t *Tester) verifyTest(sector, count uint64) BlockStatus {
	bps := t.disk().BytesPerSector()
	mismatch := false
	for start, n := range chunks(sector, count, t.reader.maxTransfer()) {
		data, err := t.reader.ReadRange(start, n)
		if err != nil {
			return t.readStatus(err, start, n, "Read failure")
		}
		if t.Cancelled() {
			return Untested
		}
		for _, m := range VerifyPattern(data, start, bps) {
			logf(t.obs, "Verification mismatch at sector %s", sectorNum(m.Sector))
			mismatch = true
		}
	}

	if mismatch {
		return Damaged
	}
	return OK
}

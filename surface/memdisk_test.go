package surface

import (
	"errors"
	"strings"
)

const (
	codeCRC          = 23
	codeNotConnected = 1167
)

var (
	errCRC     = errors.New("data error (cyclic redundancy check)")
	errRemoved = errors.New("the device is not connected")
)

func mediaError(op string, sector uint64, count int) error {
	return &DeviceError{Op: op, Sector: sector, Count: count, Code: codeCRC, Media: true, Err: errCRC}
}

func fatalError(op string, sector uint64, count int) error {
	return &DeviceError{Op: op, Sector: sector, Count: count, Code: codeNotConnected, Err: errRemoved}
}

type diskCall struct {
	Op     string
	Sector uint64
	Count  int
}

// memDisk is an in-memory Disk with fault injection.
type memDisk struct {
	bps  int
	max  int
	data []byte

	bad         map[uint64]bool // reads covering these sectors fail with a media error
	fatal       map[uint64]bool // reads covering these sectors fail fatally
	corrupt     map[uint64]bool // reads return altered content for these sectors
	failBulk    bool            // multi-sector reads fail with a media error
	healOnWrite bool            // writing a bad sector makes it readable

	// hook runs before every device call; a non-nil error is returned as the
	// call's result.
	hook func(c diskCall) error

	calls []diskCall
}

func newMemDisk(sectors, bps, max int) *memDisk {
	return &memDisk{
		bps:     bps,
		max:     max,
		data:    make([]byte, sectors*bps),
		bad:     map[uint64]bool{},
		fatal:   map[uint64]bool{},
		corrupt: map[uint64]bool{},
	}
}

func (d *memDisk) BytesPerSector() int     { return d.bps }
func (d *memDisk) TotalSectors() uint64    { return uint64(len(d.data) / d.bps) }
func (d *memDisk) MaxTransferSectors() int { return d.max }

func (d *memDisk) fill(fn func(sector uint64) []byte) {
	for i := uint64(0); i < d.TotalSectors(); i++ {
		copy(d.data[int(i)*d.bps:], fn(i))
	}
}

func (d *memDisk) sector(i uint64) []byte {
	return d.data[int(i)*d.bps : int(i+1)*d.bps]
}

func (d *memDisk) record(c diskCall) error {
	d.calls = append(d.calls, c)
	if d.hook != nil {
		return d.hook(c)
	}
	return nil
}

func (d *memDisk) read(op string, sector uint64, count int) ([]byte, error) {
	if err := d.record(diskCall{Op: op, Sector: sector, Count: count}); err != nil {
		return nil, err
	}
	if sector+uint64(count) > d.TotalSectors() {
		return nil, fatalError(op, sector, count)
	}
	for i := sector; i < sector+uint64(count); i++ {
		if d.fatal[i] {
			return nil, fatalError(op, sector, count)
		}
	}
	for i := sector; i < sector+uint64(count); i++ {
		if d.bad[i] {
			return nil, mediaError(op, sector, count)
		}
	}
	if d.failBulk && count > 1 {
		return nil, mediaError(op, sector, count)
	}
	out := make([]byte, count*d.bps)
	for i := 0; i < count; i++ {
		copy(out[i*d.bps:], d.sector(sector+uint64(i)))
		if d.corrupt[sector+uint64(i)] {
			out[i*d.bps] ^= 0xFF
		}
	}
	return out, nil
}

func (d *memDisk) ReadSectors(sector uint64, count int) ([]byte, error) {
	return d.read("read", sector, count)
}

func (d *memDisk) ReadSector(sector uint64) ([]byte, error) {
	return d.read("read1", sector, 1)
}

func (d *memDisk) WriteSectors(sector uint64, data []byte) error {
	count := len(data) / d.bps
	if err := d.record(diskCall{Op: "write", Sector: sector, Count: count}); err != nil {
		return err
	}
	if sector+uint64(count) > d.TotalSectors() {
		return fatalError("write", sector, count)
	}
	copy(d.data[int(sector)*d.bps:], data)
	if d.healOnWrite {
		for i := sector; i < sector+uint64(count); i++ {
			delete(d.bad, i)
		}
	}
	return nil
}

func (d *memDisk) callsOf(op string) []diskCall {
	var out []diskCall
	for _, c := range d.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// recorder collects observer events.
type recorder struct {
	positions []uint64
	lines     []string
}

func (r *recorder) StatusUpdate(position uint64) { r.positions = append(r.positions, position) }
func (r *recorder) Log(message string)           { r.lines = append(r.lines, message) }

func (r *recorder) matching(substr string) []string {
	var out []string
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			out = append(out, l)
		}
	}
	return out
}

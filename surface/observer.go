package surface

import (
	"fmt"
	"iter"

	"github.com/dustin/go-humanize"
)

// Observer receives progress and log events. Calls are made synchronously on
// the goroutine running the test; implementations marshal to their own
// goroutine if they need to.
type Observer interface {
	// StatusUpdate reports the absolute byte offset of the I/O about to
	// complete.
	StatusUpdate(position uint64)
	// Log reports a notable event (failure, overwrite, mismatch).
	Log(message string)
}

// ObserverFuncs adapts two functions to an Observer. Nil fields are ignored.
type ObserverFuncs struct {
	OnStatusUpdate func(position uint64)
	OnLog          func(message string)
}

func (o ObserverFuncs) StatusUpdate(position uint64) {
	if o.OnStatusUpdate != nil {
		o.OnStatusUpdate(position)
	}
}

func (o ObserverFuncs) Log(message string) {
	if o.OnLog != nil {
		o.OnLog(message)
	}
}

func logf(o Observer, format string, args ...any) {
	o.Log(fmt.Sprintf(format, args...))
}

// sectorNum formats an LBA with thousands separators.
func sectorNum(sector uint64) string {
	return humanize.Comma(int64(sector))
}

// sectorSpan formats the inclusive range covered by count sectors at sector.
func sectorSpan(sector uint64, count int) string {
	last := sector
	if count > 0 {
		last = sector + uint64(count) - 1
	}
	return sectorNum(sector) + "-" + sectorNum(last)
}

// chunks yields consecutive (start, count) pairs covering count sectors from
// sector, each at most size sectors long.
func chunks(sector, count uint64, size int) iter.Seq2[uint64, int] {
	return func(yield func(uint64, int) bool) {
		if size <= 0 {
			size = 1
		}
		for off := uint64(0); off < count; off += uint64(size) {
			n := uint64(size)
			if left := count - off; left < n {
				n = left
			}
			if !yield(sector+off, int(n)) {
				return
			}
		}
	}
}

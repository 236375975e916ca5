package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"hdvalidator/gridui"
	"hdvalidator/logbook"
	"hdvalidator/stats"
	"hdvalidator/surface"
)

// block is one grid cell worth of sectors.
type block struct {
	Start uint64
	Count uint64
}

// partition splits count sectors from start into at most n equal blocks. The
// last block absorbs the remainder. With fewer sectors than n every block is
// one sector.
func partition(start, count uint64, n int) []block {
	if count == 0 || n <= 0 {
		return nil
	}
	if uint64(n) > count {
		n = int(count)
	}
	size := count / uint64(n)
	out := make([]block, n)
	for i := range out {
		out[i] = block{Start: start + uint64(i)*size, Count: size}
	}
	out[n-1].Count = count - uint64(n-1)*size
	return out
}

// uiRefresh limits how often status updates redraw the screen.
const uiRefresh = 250 * time.Millisecond

// runner drives a Tester over the blocks of a grid and reports progress.
type runner struct {
	runID  uuid.UUID
	disk   surface.Disk
	desc   string
	book   *logbook.Logbook
	grid   *gridui.Grid
	ui     *gridui.UI
	tester *surface.Tester
	now    func() time.Time

	mu        sync.Mutex
	started   time.Time
	firstPos  uint64
	lastPos   uint64
	haveFirst bool
	lastDraw  time.Time
	lastLog   string
	block     int
	stopErr   error
}

func newRunner(kind surface.TestKind, disk surface.Disk, desc string, book *logbook.Logbook) *runner {
	r := &runner{
		runID: uuid.New(),
		disk:  disk,
		desc:  desc,
		book:  book,
		now:   time.Now,
	}
	r.tester = surface.NewTester(kind, disk, r)
	return r
}

// StatusUpdate implements surface.Observer.
func (r *runner) StatusUpdate(position uint64) {
	r.mu.Lock()
	if !r.haveFirst {
		r.firstPos, r.haveFirst = position, true
	}
	r.lastPos = position
	due := r.ui != nil && r.now().Sub(r.lastDraw) >= uiRefresh
	if due {
		r.lastDraw = r.now()
	}
	r.mu.Unlock()

	stats.RecordProgress(position, r.speed())
	if due {
		r.refresh()
	}
}

// Log implements surface.Observer.
func (r *runner) Log(message string) {
	r.mu.Lock()
	r.lastLog = message
	r.mu.Unlock()
	r.book.Add(message)
}

// speed is the average progress in bytes per second since the first status
// update.
func (r *runner) speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := r.now().Sub(r.started).Seconds()
	if !r.haveFirst || elapsed <= 0 || r.lastPos < r.firstPos {
		return 0
	}
	return float64(r.lastPos-r.firstPos) / elapsed
}

func (r *runner) statusLines() []string {
	speed := r.speed()
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := []string{
		fmt.Sprintf("Position: %s (%s)", humanize.Comma(int64(r.lastPos)), humanize.IBytes(r.lastPos)),
		fmt.Sprintf("Speed: %s/s   Elapsed: %s", humanize.IBytes(uint64(speed)), r.now().Sub(r.started).Truncate(time.Second)),
		fmt.Sprintf("Block: %d / %d   %s", r.block+1, r.grid.Len(), gridui.Summary(r.grid.Counts())),
	}
	if r.lastLog != "" {
		lines = append(lines, "Last: "+r.lastLog)
	}
	return lines
}

func (r *runner) refresh() {
	if r.ui == nil {
		return
	}
	r.ui.SetStatusLines(r.statusLines())
	r.ui.Draw()
}

func (r *runner) header(version string, blocks []block) {
	bps := r.disk.BytesPerSector()
	total := r.disk.TotalSectors()
	r.book.Addf("hdvalidator %s, run %s", version, r.runID)
	r.book.Addf("Starting %s Test", r.tester.Kind().Title())
	r.book.Addf("Disk: %s", r.desc)
	r.book.Addf("Disk size: %s (%s sectors, %d bytes per sector)",
		humanize.IBytes(total*uint64(bps)), humanize.Comma(int64(total)), bps)
	if len(blocks) > 0 {
		last := blocks[len(blocks)-1]
		r.book.Addf("Testing sectors %s-%s in %d blocks",
			humanize.Comma(int64(blocks[0].Start)), humanize.Comma(int64(last.Start+last.Count-1)), len(blocks))
	}
}

func (r *runner) footer(completed bool) {
	if completed {
		r.book.Add("Test Completed")
	} else {
		r.book.Add("Test Aborted")
	}
	r.book.Add(gridui.Summary(r.grid.Counts()))
	r.book.Addf("Elapsed: %s, average speed %s/s",
		r.now().Sub(r.started).Truncate(time.Second), humanize.IBytes(uint64(r.speed())))
}

// run tests every block in order. A run stopped before the last block
// finished returns ctx's error, or gridui.ErrInterrupted when the stop came
// from the UI.
func (r *runner) run(ctx context.Context, blocks []block) error {
	r.mu.Lock()
	r.started = r.now()
	r.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	var stopped <-chan struct{}
	if r.ui != nil {
		stopped = r.ui.Stopped()
	}
	go func() {
		var reason error
		select {
		case <-ctx.Done():
			reason = ctx.Err()
		case <-stopped:
			reason = gridui.ErrInterrupted
		case <-done:
			return
		}
		logbook.LogInfo(logbook.ComponentTester, "cancelling test", "reason", reason)
		r.mu.Lock()
		r.stopErr = reason
		r.mu.Unlock()
		r.tester.Cancel()
	}()

	for i, b := range blocks {
		r.mu.Lock()
		r.block = i
		r.mu.Unlock()
		r.grid.SetCurrent(i)
		r.refresh()

		status := r.tester.PerformTest(b.Start, b.Count)
		r.grid.Set(i, status)
		logbook.LogDebug(logbook.ComponentTester, "block tested",
			"block", i, "sector", b.Start, "count", b.Count, "status", status.String())
		if r.tester.Cancelled() {
			r.grid.SetCurrent(-1)
			r.refresh()
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.stopErr == nil {
				return surface.ErrCancelled
			}
			return r.stopErr
		}
		stats.RecordBlock(status)
	}
	r.grid.SetCurrent(-1)
	r.refresh()
	return nil
}

// Package gridui draws the full-screen block grid of a running surface test.
package gridui

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"hdvalidator/logbook"
	"hdvalidator/surface"
)

// ErrInterrupted is returned when the user requests to stop the operation.
var ErrInterrupted = errors.New("interrupted")

// Rows below the grid: status rule plus status lines.
const footerRows = 5

// UI renders a Grid with a title, summary, legend and status lines.
type UI struct {
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once
	mu       sync.Mutex

	grid         *Grid
	title        string
	summaryLines []string
	statusLines  []string
}

// New initializes a terminal screen and returns a UI drawing grid on it.
func New(grid *Grid) (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(s, grid)
}

// NewWithScreen is New on a caller supplied screen.
func NewWithScreen(s tcell.Screen, grid *Grid) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:        s,
		stopChan: make(chan struct{}),
		grid:     grid,
	}
	go u.eventLoop()
	return u, nil
}

// Close restores the terminal.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
}

// RequestStop signals that the user wants the test to stop. It can be called
// multiple times safely.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		logbook.LogInfo(logbook.ComponentUI, "stop requested")
		close(u.stopChan)
	})
}

// Stopped is closed once a stop was requested.
func (u *UI) Stopped() <-chan struct{} { return u.stopChan }

// IsStopped reports whether a stop was requested.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// SetTitle sets the title displayed at the top.
func (u *UI) SetTitle(t string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.title = t
}

// SetSummaryLines sets the info lines displayed below the title.
func (u *UI) SetSummaryLines(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.summaryLines = append([]string(nil), lines...)
}

// SetStatusLines sets the lines of the status block.
func (u *UI) SetStatusLines(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statusLines = append([]string(nil), lines...)
}

func putStr(s tcell.Screen, x, y int, str string, style tcell.Style) {
	w, _ := s.Size()
	for _, r := range str {
		if x >= w {
			break
		}
		s.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

// legend renders one colored sample per status on row y.
func legend(s tcell.Screen, y int) {
	x := 0
	for _, st := range surface.AllStatuses {
		s.SetContent(x, y, glyphBlock, nil, tcell.StyleDefault.Foreground(StatusColor(st)))
		label := " " + st.String() + "   "
		putStr(s, x+1, y, label, tcell.StyleDefault)
		x += 1 + runewidth.StringWidth(label)
	}
}

// Draw redraws the whole screen.
func (u *UI) Draw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	y := 0

	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w), tcell.StyleDefault)
		putStr(u.s, max(0, (w-runewidth.StringWidth(u.title))/2), y, u.title, tcell.StyleDefault.Bold(true))
		y++
	}
	for _, line := range u.summaryLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line, tcell.StyleDefault)
		y++
	}
	if y < h {
		legend(u.s, y)
		y++
	}

	if u.grid != nil {
		cellWidth := 1
		if w >= u.grid.Columns()*2 {
			cellWidth = 2
		}
		for _, row := range u.grid.window(h - y - footerRows) {
			if y >= h {
				break
			}
			for col, c := range row {
				style := tcell.StyleDefault.Foreground(c.color)
				for k := 0; k < cellWidth; k++ {
					u.s.SetContent(col*cellWidth+k, y, c.r, nil, style)
				}
			}
			y++
		}
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w), tcell.StyleDefault)
		putStr(u.s, 2, y, " Status ", tcell.StyleDefault)
		y++
		for _, line := range u.statusLines {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line, tcell.StyleDefault)
			y++
		}
	}
	u.s.Show()
}

func (u *UI) eventLoop() {
	for {
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s == nil {
			return
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				u.RequestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
			u.Draw()
		case nil:
			// PollEvent returns nil after Fini.
			return
		}
	}
}

// Summary formats block counts for the status block and the run log footer.
func Summary(counts map[surface.BlockStatus]int) string {
	parts := make([]string, 0, len(surface.AllStatuses))
	for _, s := range surface.AllStatuses {
		parts = append(parts, fmt.Sprintf("%s: %d", s, counts[s]))
	}
	return strings.Join(parts, ", ")
}

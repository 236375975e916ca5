package gridui

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"hdvalidator/surface"
)

// Glyphs used for grid cells.
const (
	glyphBlock   = '█'
	glyphCurrent = '▒'
)

// StatusColor returns the cell color of a block outcome.
func StatusColor(s surface.BlockStatus) tcell.Color {
	switch s {
	case surface.OK:
		return tcell.ColorLightGreen
	case surface.OverwriteOK:
		return tcell.ColorWhite
	case surface.Damaged:
		return tcell.ColorRed
	case surface.IOError:
		return tcell.ColorMaroon
	default:
		return tcell.ColorDarkGray
	}
}

// Grid holds the outcome of every block of a run, laid out row by row. It is
// safe for concurrent use.
type Grid struct {
	mu      sync.Mutex
	cols    int
	cells   []surface.BlockStatus
	current int
}

// NewGrid returns a grid of blocks cells, cols per row, all Untested.
func NewGrid(cols, blocks int) *Grid {
	if cols < 1 {
		cols = 1
	}
	return &Grid{cols: cols, cells: make([]surface.BlockStatus, blocks), current: -1}
}

// Columns returns the number of cells per row.
func (g *Grid) Columns() int { return g.cols }

// Rows returns the number of rows needed for all blocks.
func (g *Grid) Rows() int { return (len(g.cells) + g.cols - 1) / g.cols }

// Len returns the number of blocks.
func (g *Grid) Len() int { return len(g.cells) }

// Set records the outcome of block i.
func (g *Grid) Set(i int, s surface.BlockStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= 0 && i < len(g.cells) {
		g.cells[i] = s
	}
}

// Status returns the outcome of block i.
func (g *Grid) Status(i int) surface.BlockStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cells[i]
}

// SetCurrent marks block i as in progress; -1 clears the mark.
func (g *Grid) SetCurrent(i int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = i
}

// Counts returns the number of blocks per outcome.
func (g *Grid) Counts() map[surface.BlockStatus]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[surface.BlockStatus]int, len(surface.AllStatuses))
	for _, s := range g.cells {
		out[s]++
	}
	return out
}

type cell struct {
	r     rune
	color tcell.Color
}

// window returns up to maxRows rows starting at a row chosen so the current
// block stays visible.
func (g *Grid) window(maxRows int) [][]cell {
	g.mu.Lock()
	defer g.mu.Unlock()

	rows := (len(g.cells) + g.cols - 1) / g.cols
	if maxRows < 1 {
		maxRows = 1
	}
	start := 0
	if rows > maxRows && g.current >= 0 {
		if cur := g.current / g.cols; cur >= maxRows {
			start = cur - maxRows + 1
		}
	}
	end := min(start+maxRows, rows)

	out := make([][]cell, 0, end-start)
	for row := start; row < end; row++ {
		line := make([]cell, 0, g.cols)
		for col := 0; col < g.cols; col++ {
			i := row*g.cols + col
			if i >= len(g.cells) {
				break
			}
			c := cell{r: glyphBlock, color: StatusColor(g.cells[i])}
			if i == g.current {
				c.r = glyphCurrent
			}
			line = append(line, c)
		}
		out = append(out, line)
	}
	return out
}

// Package logbook keeps the human readable run log of a surface test and the
// diagnostic logger shared by the other packages.
package logbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// TimeFormat prefixes every run log line.
const TimeFormat = "2006-01-02 15:04:05"

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// Logbook is an append-only list of timestamped lines. It is safe for
// concurrent use.
type Logbook struct {
	mu    sync.Mutex
	lines []string
	tee   io.Writer
	now   func() time.Time
}

// New returns an empty Logbook.
func New() *Logbook {
	return &Logbook{now: time.Now}
}

// SetOutput mirrors every new line to w. A nil w stops mirroring.
func (l *Logbook) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tee = w
}

// Add appends msg with the current time.
func (l *Logbook) Add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := l.now().Format(TimeFormat) + ": " + msg
	l.lines = append(l.lines, line)
	if l.tee != nil {
		_, _ = io.WriteString(l.tee, line+"\n")
	}
}

// Addf is Add with fmt.Sprintf formatting.
func (l *Logbook) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Lines returns a copy of all lines so far.
func (l *Logbook) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Len returns the number of lines.
func (l *Logbook) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *Logbook) String() string {
	lines := l.Lines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteTo writes the whole log to w.
func (l *Logbook) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, l.String())
	return int64(n), err
}

// Save writes the log to path, replacing any existing file atomically.
func (l *Logbook) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPerms); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, strings.NewReader(l.String())); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	// atomic.WriteFile keeps the temp file's mode
	if err := os.Chmod(path, filePerms); err != nil {
		return fmt.Errorf("failed to set log file permissions: %w", err)
	}
	return nil
}

// FileName returns the default log file path for a run inside dir.
func FileName(dir string, runID uuid.UUID) string {
	return filepath.Join(dir, "hdvalidator-"+runID.String()+".log")
}

package sapi

import (
	"io"
	"os"
	"sync"
	"time"
)

const logTimeLayout = "2006-01-02 15:04:05.000"

// Logger appends timestamped lines to one stream chosen at construction.
type Logger struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewLogger writes to stdout for command-line invocations, where stdout is
// the console, and to stderr for every other mode, where stdout is the
// response.
func NewLogger(mode Mode) *Logger {
	if mode == ModeCLI {
		return NewLoggerTo(os.Stdout)
	}
	return NewLoggerTo(os.Stderr)
}

func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{w: w, now: time.Now}
}

// WithClock replaces the time source.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

// Log writes "YYYY-MM-DD HH:MM:SS.mmm message". Write errors are dropped.
func (l *Logger) Log(message string) {
	line := l.now().Format(logTimeLayout) + " " + message + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, line)
}

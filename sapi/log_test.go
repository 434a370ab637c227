package sapi

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 3, 9, 7, 5, 2, 345_678_000, time.Local)
	l := NewLoggerTo(&buf).WithClock(func() time.Time { return at })

	l.Log("hello")

	if got, want := buf.String(), "2024-03-09 07:05:02.345 hello\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLoggerRealClock(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf)

	before := time.Now()
	l.Log("hello")
	after := time.Now()

	re := regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}) hello\n$`)
	m := re.FindStringSubmatch(buf.String())
	if m == nil {
		t.Fatalf("unexpected line %q", buf.String())
	}

	stamp, err := time.ParseInLocation(logTimeLayout, m[1], time.Local)
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}
	if stamp.Before(before.Truncate(time.Millisecond)) || stamp.After(after) {
		t.Fatalf("timestamp %v outside [%v, %v]", stamp, before, after)
	}
}

func TestLoggerConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log("line")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 50 {
		t.Fatalf("expected 50 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, " line") {
			t.Fatalf("garbled line %q", line)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errBrokenPipe }

func TestLoggerSwallowsWriteErrors(t *testing.T) {
	NewLoggerTo(failingWriter{}).Log("dropped")
}

func TestNewLoggerPicksStream(t *testing.T) {
	if l := NewLogger(ModeCLI); l.w == nil {
		t.Fatalf("expected a stream for cli mode")
	}
	cgi := NewLogger(ModeCGI)
	srv := NewLogger(ModeCLIServer)
	if cgi.w != srv.w {
		t.Fatalf("non-cli modes should share the diagnostic stream")
	}
	if NewLogger(ModeCLI).w == cgi.w {
		t.Fatalf("cli mode must not log to the diagnostic stream")
	}
}

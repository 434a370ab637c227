package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-sapi/internal/fixture"
)

// TestMain lets the test binary stand in for the `sapi cgi` child that the
// dev server re-executes in process-per-request mode.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == "cgi" {
		root := newRootCmd()
		root.SetArgs(os.Args[1:])
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

const slowStreamConfig = `
routes:
  - path: /hello
    body: hello
  - path: /slow
    headers:
      Content-Type: [text/plain]
    chunks: [a, bc, d]
    interval_ms: 250
`

func newPerProcessServer(t *testing.T, config string) *httptest.Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), fixture.ConfigFile)
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}

	s := newDevServer(path, io.Discard)
	s.exe = exe

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestDevServerProcessPerRequestOmitsContentType(t *testing.T) {
	ts := newPerProcessServer(t, slowStreamConfig)

	resp, err := http.Get(ts.URL + "/hello")
	if err != nil {
		t.Fatalf("GET /hello: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || string(body) != "hello" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
	if ct, ok := resp.Header["Content-Type"]; ok {
		t.Fatalf("expected no Content-Type header, got %q", ct)
	}
}

func TestDevServerProcessPerRequestStreamsIncrementally(t *testing.T) {
	ts := newPerProcessServer(t, slowStreamConfig)

	resp, err := http.Get(ts.URL + "/slow")
	if err != nil {
		t.Fatalf("GET /slow: %v", err)
	}
	defer resp.Body.Close()

	first := make([]byte, 1)
	if _, err := io.ReadFull(resp.Body, first); err != nil {
		t.Fatalf("read first byte: %v", err)
	}
	firstAt := time.Now()

	rest, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	spread := time.Since(firstAt)

	if got := string(first) + string(rest); got != "abcd" {
		t.Fatalf("unexpected stream body %q", got)
	}
	// two 250ms pauses separate the first chunk from the last
	if spread < 250*time.Millisecond {
		t.Fatalf("expected chunks to arrive as produced, first byte came only %v before the end", spread)
	}
}

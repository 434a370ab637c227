package sapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdapterRunDevServer(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/echo?x=1", strings.NewReader("name=go"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	env, err := EnvironmentFromHTTP(r, "sapi-test")
	if err != nil {
		t.Fatalf("EnvironmentFromHTTP error: %v", err)
	}

	rr := httptest.NewRecorder()
	var logBuf bytes.Buffer
	a := NewAdapter(env, NewHost(HTTPSink(rr), BufferOutput()), NewLoggerTo(&logBuf))

	var seen *Request
	app := ApplicationFunc(func(ctx context.Context, req *Request) *Response {
		seen = req
		a.Log("handled " + req.URI().Path)
		return Text(http.StatusOK, "hi "+req.ParsedBody().Get("name"))
	})

	if err := a.Run(context.Background(), app); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if seen.URI().String() != "http://example.com/echo?x=1" {
		t.Fatalf("unexpected uri %q", seen.URI().String())
	}
	if string(seen.Body()) != "name=go" {
		t.Fatalf("unexpected body %q", seen.Body())
	}

	res := rr.Result()
	body, _ := io.ReadAll(res.Body)
	if string(body) != "hi go" {
		t.Fatalf("unexpected body %q", body)
	}
	if got := res.Header.Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected Content-Type %q", got)
	}
	if !strings.HasSuffix(logBuf.String(), " handled /echo\n") {
		t.Fatalf("unexpected log %q", logBuf.String())
	}
}

func TestAdapterRunNilResponse(t *testing.T) {
	var buf bytes.Buffer
	env, err := EnvironmentFromOS([]string{"GATEWAY_INTERFACE=CGI/1.1"}, nil)
	if err != nil {
		t.Fatalf("EnvironmentFromOS error: %v", err)
	}

	a := NewAdapter(env, NewHost(CGISink(&buf)), NewLoggerTo(io.Discard))
	app := ApplicationFunc(func(context.Context, *Request) *Response { return nil })

	if err := a.Run(context.Background(), app); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := "Status: 500 Internal Server Error\r\nContent-Length: 0\r\n\r\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestAdapterRunStreamsInDevServer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/stream", nil)
	env, err := EnvironmentFromHTTP(r, "sapi-test")
	if err != nil {
		t.Fatalf("EnvironmentFromHTTP error: %v", err)
	}

	rr := httptest.NewRecorder()
	a := NewAdapter(env, NewHost(HTTPSink(rr), BufferOutput()), NewLoggerTo(io.Discard))
	app := ApplicationFunc(func(context.Context, *Request) *Response {
		return NewResponse(http.StatusOK, Header{}, chunkStream("a", "bc", "d"))
	})

	if err := a.Run(context.Background(), app); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rr.Body.String() != "abcd" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if !rr.Flushed {
		t.Fatalf("expected streamed output to be flushed")
	}
}

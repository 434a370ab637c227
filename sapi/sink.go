package sapi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
)

type cgiSink struct {
	w *bufio.Writer
}

// CGISink writes an RFC 3875 response: a Status header, the header lines, a
// blank line, then the body.
func CGISink(w io.Writer) Sink {
	return &cgiSink{w: bufio.NewWriter(w)}
}

func (s *cgiSink) Commit(status StatusLine, fields []Field) error {
	if _, err := fmt.Fprintf(s.w, "Status: %d %s\r\n", status.Code, status.Reason); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(s.w, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return err
		}
	}
	_, err := s.w.WriteString("\r\n")
	return err
}

func (s *cgiSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *cgiSink) Flush() error { return s.w.Flush() }

type httpSink struct {
	rw http.ResponseWriter
	rc *http.ResponseController
}

// HTTPSink writes through a net/http ResponseWriter. The reason phrase is
// chosen by net/http and cannot be overridden.
func HTTPSink(rw http.ResponseWriter) Sink {
	return &httpSink{rw: rw, rc: http.NewResponseController(rw)}
}

func (s *httpSink) Commit(status StatusLine, fields []Field) error {
	h := s.rw.Header()
	for _, f := range fields {
		h.Add(f.Name, f.Value)
	}
	// A nil entry stops net/http from sniffing a Content-Type of its own.
	if !hasField(fields, "Content-Type") {
		h["Content-Type"] = nil
	}
	s.rw.WriteHeader(status.Code)
	return nil
}

func (s *httpSink) Write(p []byte) (int, error) { return s.rw.Write(p) }

func (s *httpSink) Flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

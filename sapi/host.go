package sapi

import (
	"bytes"
	"strings"
)

// Output is the set of host primitives the emitter drives.
type Output interface {
	// SetStatus queues the status line.
	SetStatus(protocol string, code int, reason string)
	// AddHeader queues one header line. Repeated names produce repeated lines.
	AddHeader(name, value string)
	// RemoveHeader drops every queued line for name and cancels any default
	// the host would otherwise send for it.
	RemoveHeader(name string)

	DefaultCharset() string
	SetDefaultCharset(charset string)

	Write(p []byte) (int, error)
	// Flush pushes pending output to the client.
	Flush() error
	// EndBuffer flushes and disables the host's output buffer, if any.
	EndBuffer() error
}

// StatusLine is the committed status of a response.
type StatusLine struct {
	Protocol string
	Code     int
	Reason   string
}

// Sink is where a Host sends the committed response.
type Sink interface {
	Commit(status StatusLine, fields []Field) error
	Write(p []byte) (int, error)
	Flush() error
}

// Host is an Output with the habits of a classic scripting host: a default
// Content-Type is injected unless removed, a default charset is appended to
// text/* Content-Type values, headers are committed lazily on first output,
// and output may sit in a buffer until it is ended.
type Host struct {
	// DefaultMimeType is sent when no Content-Type was set or removed.
	DefaultMimeType string

	sink      Sink
	status    StatusLine
	charset   string
	fields    []Field
	removed   map[string]bool
	committed bool
	buf       *bytes.Buffer
}

// HostOption configures a Host.
type HostOption func(*Host)

// BufferOutput starts the host with an active output buffer.
func BufferOutput() HostOption {
	return func(h *Host) { h.buf = new(bytes.Buffer) }
}

// WithCharset overrides the host's default charset.
func WithCharset(charset string) HostOption {
	return func(h *Host) { h.charset = charset }
}

func NewHost(sink Sink, opts ...HostOption) *Host {
	h := &Host{
		DefaultMimeType: "text/html",
		sink:            sink,
		status:          StatusLine{Protocol: "HTTP/1.1", Code: 200, Reason: "OK"},
		charset:         "UTF-8",
		removed:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Committed reports whether the status and headers were handed to the sink.
func (h *Host) Committed() bool { return h.committed }

func (h *Host) SetStatus(protocol string, code int, reason string) {
	if h.committed {
		return
	}
	h.status = StatusLine{Protocol: protocol, Code: code, Reason: reason}
}

func (h *Host) AddHeader(name, value string) {
	if h.committed {
		return
	}
	if strings.EqualFold(name, "Content-Type") {
		value = h.withCharset(value)
		delete(h.removed, "content-type")
	}
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

func (h *Host) withCharset(contentType string) string {
	if h.charset == "" || !strings.HasPrefix(strings.ToLower(contentType), "text/") ||
		strings.Contains(strings.ToLower(contentType), "charset=") {
		return contentType
	}
	return contentType + "; charset=" + h.charset
}

func (h *Host) RemoveHeader(name string) {
	if h.committed {
		return
	}
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
	h.removed[strings.ToLower(name)] = true
}

func (h *Host) DefaultCharset() string { return h.charset }

func (h *Host) SetDefaultCharset(charset string) { h.charset = charset }

func (h *Host) commit() error {
	if h.committed {
		return nil
	}
	h.committed = true

	fields := h.fields
	if !h.removed["content-type"] && h.DefaultMimeType != "" && !hasField(fields, "Content-Type") {
		fields = append(fields, Field{Name: "Content-Type", Value: h.withCharset(h.DefaultMimeType)})
	}
	return h.sink.Commit(h.status, fields)
}

func hasField(fields []Field, name string) bool {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func (h *Host) Write(p []byte) (int, error) {
	if h.buf != nil {
		return h.buf.Write(p)
	}
	if err := h.commit(); err != nil {
		return 0, err
	}
	return h.sink.Write(p)
}

// Flush pushes committed output to the client. Anything still held by an
// active output buffer stays there.
func (h *Host) Flush() error {
	if h.buf != nil {
		return nil
	}
	if err := h.commit(); err != nil {
		return err
	}
	return h.sink.Flush()
}

func (h *Host) EndBuffer() error {
	if h.buf == nil {
		return nil
	}
	pending := h.buf
	h.buf = nil
	if err := h.commit(); err != nil {
		return err
	}
	if pending.Len() == 0 {
		return nil
	}
	_, err := h.sink.Write(pending.Bytes())
	return err
}

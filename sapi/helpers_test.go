package sapi

import (
	"errors"
	"fmt"
	"strings"
)

// recordingOutput is an Output that remembers every primitive call in order.
// Headers are treated as sent once the first body byte is written.
type recordingOutput struct {
	ops     []string
	charset string
	status  StatusLine
	headers []Field
	writes  []string
	flushes int
	ended   int

	failWrite error
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{charset: "UTF-8"}
}

func (o *recordingOutput) SetStatus(protocol string, code int, reason string) {
	o.status = StatusLine{Protocol: protocol, Code: code, Reason: reason}
	o.ops = append(o.ops, fmt.Sprintf("status %s %d %s", protocol, code, reason))
}

func (o *recordingOutput) AddHeader(name, value string) {
	o.headers = append(o.headers, Field{Name: name, Value: value})
	o.ops = append(o.ops, fmt.Sprintf("header %s: %s [charset=%q]", name, value, o.charset))
}

func (o *recordingOutput) RemoveHeader(name string) {
	kept := o.headers[:0]
	for _, f := range o.headers {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	o.headers = kept
	o.ops = append(o.ops, "remove "+name)
}

func (o *recordingOutput) DefaultCharset() string { return o.charset }

func (o *recordingOutput) SetDefaultCharset(charset string) {
	o.charset = charset
	o.ops = append(o.ops, fmt.Sprintf("charset %q", charset))
}

func (o *recordingOutput) Write(p []byte) (int, error) {
	if o.failWrite != nil {
		return 0, o.failWrite
	}
	o.writes = append(o.writes, string(p))
	o.ops = append(o.ops, "write "+string(p))
	return len(p), nil
}

func (o *recordingOutput) Flush() error {
	o.flushes++
	o.ops = append(o.ops, "flush")
	return nil
}

func (o *recordingOutput) EndBuffer() error {
	o.ended++
	o.ops = append(o.ops, "endbuffer")
	return nil
}

func (o *recordingOutput) headerValues(name string) []string {
	var vals []string
	for _, f := range o.headers {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

func (o *recordingOutput) opIndex(prefix string) int {
	for i, op := range o.ops {
		if strings.HasPrefix(op, prefix) {
			return i
		}
	}
	return -1
}

var errBrokenPipe = errors.New("write: broken pipe")

// chunkStream returns a push-driven stream that yields chunks and closes.
func chunkStream(chunks ...string) *Stream {
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- []byte(c)
	}
	close(ch)
	return NewStream(ch)
}

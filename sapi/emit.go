package sapi

import (
	"context"
	"strconv"
	"strings"
)

const defaultServerProtocol = "HTTP/1.1"

// Emit sends resp through out. It must run exactly once per invocation and
// be the last thing the invocation does with out. I/O errors are returned as
// the host reported them.
func Emit(ctx context.Context, env *Environment, out Output, resp *Response) error {
	protocol := env.Protocol()
	if protocol == "" {
		protocol = defaultServerProtocol
	}
	out.SetStatus(protocol, resp.StatusCode(), resp.ReasonPhrase())

	header := resp.Header()
	if n, known := resp.Body().Size(); known && !header.Has("Content-Length") {
		header = header.With("Content-Length", strconv.FormatInt(n, 10))
	}

	// Cancel the host's default Content-Type.
	if !header.Has("Content-Type") {
		out.RemoveHeader("Content-Type")
	}

	// Values go out verbatim, without the host's charset suffix.
	withDefaultCharset(out, "", func() {
		for _, f := range header.Fields() {
			out.AddHeader(f.Name, f.Value)
		}
	})

	switch body := resp.Body().(type) {
	case *Stream:
		return emitStream(ctx, env, out, body)
	case Bytes:
		_, err := out.Write(body)
		return err
	}
	return nil
}

// withDefaultCharset runs fn with the host's default charset set to charset
// and restores the previous value on every exit path.
func withDefaultCharset(out Output, charset string, fn func()) {
	prev := out.DefaultCharset()
	out.SetDefaultCharset(charset)
	defer out.SetDefaultCharset(prev)
	fn()
}

func emitStream(ctx context.Context, env *Environment, out Output, body *Stream) error {
	if strings.HasPrefix(env.Software(), "nginx") {
		out.AddHeader("X-Accel-Buffering", "no")
	}

	if env.Mode == ModeCLIServer {
		if err := out.EndBuffer(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errc, err := body.open(ctx)
	if err != nil {
		return err
	}
	defer body.finish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if errc != nil {
					return <-errc
				}
				return nil
			}
			if _, err := out.Write(chunk); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return err
			}
		}
	}
}

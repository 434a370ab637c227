package sapi

import (
	"io"
	"net/url"
	"strings"
)

const (
	defaultMethod   = "GET"
	defaultHost     = "localhost"
	defaultTarget   = "/"
	defaultProtocol = "1.1"

	// protocolPrefix is the length of "HTTP/" in SERVER_PROTOCOL.
	protocolPrefix = 5
)

// Request is the structured form of one inbound invocation. It is immutable:
// every With* method returns a modified copy.
type Request struct {
	method     string
	uri        url.URL
	protocol   string
	header     Header
	body       []byte
	parsedBody url.Values
	server     map[string]string
}

func (r *Request) Method() string { return r.method }

// URI returns a copy of the reconstructed target URI.
func (r *Request) URI() *url.URL {
	u := r.uri
	return &u
}

func (r *Request) ProtocolVersion() string { return r.protocol }

func (r *Request) Header() Header { return r.header }

// Body returns the raw request body. Callers must not modify it.
func (r *Request) Body() []byte { return r.body }

// ParsedBody returns a copy of the parsed form submission.
func (r *Request) ParsedBody() url.Values {
	out := make(url.Values, len(r.parsedBody))
	for k, v := range r.parsedBody {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ServerParams returns a copy of the host metadata the request was built from.
func (r *Request) ServerParams() map[string]string {
	out := make(map[string]string, len(r.server))
	for k, v := range r.server {
		out[k] = v
	}
	return out
}

func (r *Request) with(fn func(*Request)) *Request {
	c := *r
	fn(&c)
	return &c
}

func (r *Request) WithMethod(method string) *Request {
	return r.with(func(c *Request) { c.method = method })
}

func (r *Request) WithHeader(name string, values ...string) *Request {
	return r.with(func(c *Request) { c.header = c.header.With(name, values...) })
}

func (r *Request) WithAddedHeader(name, value string) *Request {
	return r.with(func(c *Request) { c.header = c.header.WithAdded(name, value) })
}

func (r *Request) WithoutHeader(name string) *Request {
	return r.with(func(c *Request) { c.header = c.header.Without(name) })
}

func (r *Request) WithParsedBody(form url.Values) *Request {
	return r.with(func(c *Request) { c.parsedBody = copyValues(form) })
}

func copyValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// BuildRequest converts the ambient state in env into a Request. Missing
// values fall back to defaults; it never fails. It drains env.Input.
func BuildRequest(env *Environment) *Request {
	var (
		header  Header
		host    string
		hasHost bool
	)

	if env.Headers != nil {
		header = NewHeader(env.Headers...)
		for _, f := range env.Headers {
			if strings.EqualFold(f.Name, "Host") {
				host, hasHost = f.Value, true
				break
			}
		}
	} else {
		for _, key := range sortedKeys(env.Server) {
			name, ok := HeaderName(key)
			if !ok {
				continue
			}
			value := env.Server[key]
			header = header.WithAdded(name, value)
			if !hasHost && name == "Host" {
				host, hasHost = value, true
			}
		}
	}
	// An empty Host is as good as none.
	if host == "" {
		hasHost = false
	}

	var body []byte
	if env.Input != nil {
		// The host has already buffered the body; a short read keeps what arrived.
		body, _ = io.ReadAll(env.Input)
	}
	if body == nil {
		body = []byte{}
	}

	scheme := "http"
	if env.Secure {
		scheme = "https"
	}
	if !hasHost {
		host = defaultHost
	}

	req := &Request{
		method:   orDefault(env.Server["REQUEST_METHOD"], defaultMethod),
		uri:      targetURI(scheme, host, orDefault(env.Server["REQUEST_URI"], defaultTarget)),
		protocol: protocolVersion(env.Server["SERVER_PROTOCOL"]),
		header:   header,
		body:     body,
		server:   copyServer(env.Server),
	}

	if !hasHost {
		req = req.WithoutHeader("Host")
	}
	req = req.WithParsedBody(env.Form)

	// Hosts synthesize empty Content-Length/Content-Type entries.
	if req.header.Line("Content-Length") == "" {
		req = req.WithoutHeader("Content-Length")
	}
	if _, sent := env.Server["HTTP_CONTENT_TYPE"]; req.header.Line("Content-Type") == "" && !sent {
		req = req.WithoutHeader("Content-Type")
	}

	return req
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func protocolVersion(serverProtocol string) string {
	if len(serverProtocol) <= protocolPrefix {
		return defaultProtocol
	}
	return serverProtocol[protocolPrefix:]
}

func targetURI(scheme, host, requestURI string) url.URL {
	u := url.URL{Scheme: scheme, Host: host}
	target, err := url.ParseRequestURI(requestURI)
	if err != nil {
		u.Path = requestURI
		return u
	}
	u.Path = target.Path
	u.RawPath = target.RawPath
	u.RawQuery = target.RawQuery
	if u.Path == "" {
		u.Path = defaultTarget
	}
	return u
}

func copyServer(server map[string]string) map[string]string {
	out := make(map[string]string, len(server))
	for k, v := range server {
		out[k] = v
	}
	return out
}

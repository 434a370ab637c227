package sapi

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Mode identifies how the host invoked us.
type Mode string

const (
	// ModeCLI is a plain command-line invocation.
	ModeCLI Mode = "cli"
	// ModeCLIServer is the embedded development server.
	ModeCLIServer Mode = "cli-server"
	// ModeCGI is one process per request behind a web server.
	ModeCGI Mode = "cgi"
)

const serverHeaderPrefix = "HTTP_"

// Environment is one invocation's ambient request state, captured as a value
// so that BuildRequest and Emit never reach for process globals.
type Environment struct {
	Mode Mode

	// Server holds the host's metadata variables (REQUEST_METHOD,
	// SERVER_PROTOCOL, HTTP_* ...).
	Server map[string]string

	// Headers is the host's direct header facility. Nil means the host has
	// none and headers are recovered by scanning Server.
	Headers []Field

	// Input is the raw request body. BuildRequest drains it.
	Input io.Reader

	// Form is the host's parsed form submission.
	Form url.Values

	Secure bool
}

// Software returns the host's software identification string.
func (e *Environment) Software() string {
	return e.Server["SERVER_SOFTWARE"]
}

// Protocol returns the host's own protocol string, e.g. "HTTP/1.1".
func (e *Environment) Protocol() string {
	return e.Server["SERVER_PROTOCOL"]
}

// HeaderName turns a metadata key such as HTTP_X_FORWARDED_FOR into a
// canonical header name (X-Forwarded-For). ok is false for keys that do not
// follow the HTTP_ convention.
func HeaderName(key string) (name string, ok bool) {
	if !strings.HasPrefix(key, serverHeaderPrefix) {
		return "", false
	}
	words := strings.Split(strings.ToLower(key[len(serverHeaderPrefix):]), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "-"), true
}

// AllHeaders emulates a host's direct header facility over CGI metadata:
// every HTTP_* variable plus CONTENT_TYPE and CONTENT_LENGTH whenever they
// are set, even to "".
func AllHeaders(server map[string]string) []Field {
	fields := make([]Field, 0, len(server))
	for _, key := range sortedKeys(server) {
		if name, ok := HeaderName(key); ok {
			fields = append(fields, Field{Name: name, Value: server[key]})
		}
	}
	if v, ok := server["CONTENT_TYPE"]; ok {
		fields = append(fields, Field{Name: "Content-Type", Value: v})
	}
	if v, ok := server["CONTENT_LENGTH"]; ok {
		fields = append(fields, Field{Name: "Content-Length", Value: v})
	}
	return fields
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvironmentFromOS captures a CGI invocation (RFC 3875) from the process
// environment and stdin. Without GATEWAY_INTERFACE the invocation is treated
// as a command-line run.
func EnvironmentFromOS(environ []string, stdin io.Reader) (*Environment, error) {
	server := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		server[k] = v
	}

	mode := ModeCLI
	if server["GATEWAY_INTERFACE"] != "" {
		mode = ModeCGI
	}

	var body []byte
	if n, err := strconv.ParseInt(server["CONTENT_LENGTH"], 10, 64); err == nil && n > 0 && stdin != nil {
		body, err = io.ReadAll(io.LimitReader(stdin, n))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	https := server["HTTPS"]
	return &Environment{
		Mode:    mode,
		Server:  server,
		Headers: AllHeaders(server),
		Input:   bytes.NewReader(body),
		Form:    ParseForm(server["REQUEST_METHOD"], server["CONTENT_TYPE"], body),
		Secure:  https != "" && !strings.EqualFold(https, "off"),
	}, nil
}

// maxRequestBody bounds the body EnvironmentFromHTTP buffers.
var maxRequestBody int64 = 32 << 20

// EnvironmentFromHTTP captures a request received by the embedded development
// server. The metadata mirrors what a CGI host would export. A body over the
// limit fails with *http.MaxBytesError.
func EnvironmentFromHTTP(r *http.Request, software string) (*Environment, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	_ = r.Body.Close()

	// RequestURI may hold an absolute-form target; keep only path and query.
	requestURI := r.RequestURI
	if r.URL != nil {
		requestURI = r.URL.RequestURI()
	}
	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}

	server := map[string]string{
		"REQUEST_METHOD":  r.Method,
		"REQUEST_URI":     requestURI,
		"SERVER_PROTOCOL": proto,
		"SERVER_SOFTWARE": software,
	}
	if r.URL != nil {
		server["QUERY_STRING"] = r.URL.RawQuery
	}
	if host, port, err := net.SplitHostPort(r.Host); err == nil {
		server["SERVER_NAME"] = host
		server["SERVER_PORT"] = port
	} else if r.Host != "" {
		server["SERVER_NAME"] = r.Host
	}
	if ip, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		server["REMOTE_ADDR"] = ip
		server["REMOTE_PORT"] = port
	}
	if r.TLS != nil {
		server["HTTPS"] = "on"
	}

	fields := make([]Field, 0, len(r.Header)+1)
	if r.Host != "" {
		server["HTTP_HOST"] = r.Host
		fields = append(fields, Field{Name: "Host", Value: r.Host})
	}

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := r.Header[name]
		key := serverHeaderPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		// httpoxy: never let a client-supplied Proxy header become HTTP_PROXY.
		if key == "HTTP_PROXY" {
			continue
		}
		sep := ", "
		if key == "HTTP_COOKIE" {
			sep = "; "
		}
		server[key] = strings.Join(values, sep)
		for _, v := range values {
			fields = append(fields, Field{Name: name, Value: v})
		}
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		server["CONTENT_TYPE"] = ct
	}
	if r.ContentLength > 0 {
		server["CONTENT_LENGTH"] = strconv.FormatInt(r.ContentLength, 10)
	}

	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	server["UNIQUE_ID"] = id

	return &Environment{
		Mode:    ModeCLIServer,
		Server:  server,
		Headers: fields,
		Input:   bytes.NewReader(body),
		Form:    ParseForm(r.Method, server["CONTENT_TYPE"], body),
		Secure:  r.TLS != nil,
	}, nil
}

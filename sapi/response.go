package sapi

import "net/http"

// Body is a response body: either Bytes or a *Stream.
type Body interface {
	// Size reports the body length when it is known up front.
	Size() (n int64, known bool)

	body()
}

// Bytes is a fully materialized body.
type Bytes []byte

func (b Bytes) Size() (int64, bool) { return int64(len(b)), true }

func (Bytes) body() {}

// Response is the structured form of an outbound response. Like Request it is
// immutable, but a streamed body can only be emitted once.
type Response struct {
	status int
	reason string
	header Header
	body   Body
}

// NewResponse builds a response with the standard reason phrase for status.
// A nil body is an empty Bytes body.
func NewResponse(status int, header Header, body Body) *Response {
	if body == nil {
		body = Bytes(nil)
	}
	return &Response{
		status: status,
		reason: http.StatusText(status),
		header: header,
		body:   body,
	}
}

// Text is a shorthand for a buffered text/plain response.
func Text(status int, text string) *Response {
	return NewResponse(status, NewHeader(Field{Name: "Content-Type", Value: "text/plain; charset=utf-8"}), Bytes(text))
}

func (r *Response) StatusCode() int      { return r.status }
func (r *Response) ReasonPhrase() string { return r.reason }
func (r *Response) Header() Header       { return r.header }
func (r *Response) Body() Body           { return r.body }

func (r *Response) with(fn func(*Response)) *Response {
	c := *r
	fn(&c)
	return &c
}

// WithStatus sets the status code. An empty reason picks the standard phrase.
func (r *Response) WithStatus(status int, reason string) *Response {
	if reason == "" {
		reason = http.StatusText(status)
	}
	return r.with(func(c *Response) { c.status, c.reason = status, reason })
}

func (r *Response) WithHeader(name string, values ...string) *Response {
	return r.with(func(c *Response) { c.header = c.header.With(name, values...) })
}

func (r *Response) WithAddedHeader(name, value string) *Response {
	return r.with(func(c *Response) { c.header = c.header.WithAdded(name, value) })
}

func (r *Response) WithoutHeader(name string) *Response {
	return r.with(func(c *Response) { c.header = c.header.Without(name) })
}

func (r *Response) WithBody(body Body) *Response {
	if body == nil {
		body = Bytes(nil)
	}
	return r.with(func(c *Response) { c.body = body })
}

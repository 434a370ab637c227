package sapi

import (
	"context"
	"net/http"
)

// Application turns a request into a response.
type Application interface {
	Serve(ctx context.Context, req *Request) *Response
}

// ApplicationFunc adapts a plain function to Application.
type ApplicationFunc func(ctx context.Context, req *Request) *Response

func (f ApplicationFunc) Serve(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// Adapter binds one invocation's environment, output and log stream.
type Adapter struct {
	env *Environment
	out Output
	log *Logger
}

func NewAdapter(env *Environment, out Output, log *Logger) *Adapter {
	if log == nil {
		log = NewLogger(env.Mode)
	}
	return &Adapter{env: env, out: out, log: log}
}

// RequestFromEnvironment builds the invocation's request. Call it once: it
// drains the environment's input.
func (a *Adapter) RequestFromEnvironment() *Request {
	return BuildRequest(a.env)
}

// SendResponse emits resp.
func (a *Adapter) SendResponse(ctx context.Context, resp *Response) error {
	return Emit(ctx, a.env, a.out, resp)
}

func (a *Adapter) Log(message string) {
	a.log.Log(message)
}

// Run handles one invocation end to end and leaves nothing pending in the
// output. A nil response from app becomes an empty 500.
func (a *Adapter) Run(ctx context.Context, app Application) error {
	resp := app.Serve(ctx, a.RequestFromEnvironment())
	if resp == nil {
		resp = NewResponse(http.StatusInternalServerError, Header{}, nil)
	}
	if err := a.SendResponse(ctx, resp); err != nil {
		return err
	}
	if err := a.out.EndBuffer(); err != nil {
		return err
	}
	return a.out.Flush()
}

package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"go-sapi/sapi"
)

// App answers requests from the configured routes.
type App struct {
	router *mux.Router
	routes map[*mux.Route]Route
}

func NewApp(cfg *Config) *App {
	a := &App{
		router: mux.NewRouter(),
		routes: make(map[*mux.Route]Route, len(cfg.Routes)),
	}
	for _, rt := range cfg.Routes {
		r := a.router.Path(rt.Path)
		if len(rt.Methods) > 0 {
			r = r.Methods(rt.Methods...)
		}
		a.routes[r] = rt
	}
	return a
}

func (a *App) Serve(ctx context.Context, req *sapi.Request) *sapi.Response {
	hr := &http.Request{
		Method: req.Method(),
		URL:    req.URI(),
		Host:   req.URI().Host,
		Header: http.Header{},
	}

	var match mux.RouteMatch
	if !a.router.Match(hr, &match) {
		if errors.Is(match.MatchErr, mux.ErrMethodMismatch) {
			return sapi.Text(http.StatusMethodNotAllowed, "method not allowed\n")
		}
		return sapi.Text(http.StatusNotFound, "not found\n")
	}

	rt, ok := a.routes[match.Route]
	if !ok {
		return sapi.Text(http.StatusNotFound, "not found\n")
	}

	header := routeHeader(rt)
	switch {
	case rt.Echo:
		return echo(req, match.Vars, rt.Status, header)
	case len(rt.Chunks) > 0:
		return sapi.NewResponse(rt.Status, header, chunks(rt.Chunks, time.Duration(rt.IntervalMs)*time.Millisecond))
	default:
		return sapi.NewResponse(rt.Status, header, sapi.Bytes(rt.Body))
	}
}

func routeHeader(rt Route) sapi.Header {
	names := make([]string, 0, len(rt.Headers))
	for name := range rt.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var h sapi.Header
	for _, name := range names {
		for _, v := range rt.Headers[name] {
			h = h.WithAdded(name, v)
		}
	}
	return h
}

func chunks(parts []string, interval time.Duration) *sapi.Stream {
	return sapi.StreamFunc(func(ctx context.Context, emit func([]byte) error) error {
		for i, p := range parts {
			if i > 0 && interval > 0 {
				select {
				case <-time.After(interval):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := emit([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

type echoPayload struct {
	Method    string              `json:"method"`
	URI       string              `json:"uri"`
	Protocol  string              `json:"protocol"`
	Headers   [][2]string         `json:"headers"`
	Body      string              `json:"body"`
	Form      map[string][]string `json:"form"`
	Vars      map[string]string   `json:"vars,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

func echo(req *sapi.Request, vars map[string]string, status int, header sapi.Header) *sapi.Response {
	payload := echoPayload{
		Method:    req.Method(),
		URI:       req.URI().String(),
		Protocol:  req.ProtocolVersion(),
		Headers:   [][2]string{},
		Body:      string(req.Body()),
		Form:      req.ParsedBody(),
		Vars:      vars,
		RequestID: req.ServerParams()["UNIQUE_ID"],
	}
	for _, f := range req.Header().Fields() {
		payload.Headers = append(payload.Headers, [2]string{f.Name, f.Value})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return sapi.Text(http.StatusInternalServerError, err.Error())
	}
	if !header.Has("Content-Type") {
		header = header.With("Content-Type", "application/json")
	}
	return sapi.NewResponse(status, header, sapi.Bytes(append(data, '\n')))
}

// Live is an Application whose App can be swapped while requests are in
// flight.
type Live struct {
	app atomic.Pointer[App]
}

func NewLive(app *App) *Live {
	l := &Live{}
	l.app.Store(app)
	return l
}

func (l *Live) Store(app *App) { l.app.Store(app) }

func (l *Live) Serve(ctx context.Context, req *sapi.Request) *sapi.Response {
	return l.app.Load().Serve(ctx, req)
}

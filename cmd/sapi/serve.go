package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cgi"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go-sapi/internal/fixture"
	"go-sapi/sapi"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr       string
		perProcess bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the embedded development server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfgPath := resolveConfigPath(*configPath)
			s := newDevServer(cfgPath, os.Stderr)

			if perProcess {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("locate executable: %w", err)
				}
				s.exe = exe
			}

			if watch {
				if err := fixture.Watch(ctx, cfgPath, s.reload); err != nil {
					log.Println("Hot reload disabled:", err)
				} else {
					log.Println("Hot reload enabled")
				}
			}

			return s.listen(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("SAPI_ADDR", ":8080"), "listen address")
	cmd.Flags().BoolVar(&perProcess, "process-per-request", false, "re-execute the cgi command for every request")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the application when the config file changes")
	return cmd
}

type devServer struct {
	root    string
	cfgPath string
	cfg     atomic.Pointer[fixture.Config]
	app     *fixture.Live
	log     *sapi.Logger
	metrics *Metrics

	// exe is set when every request runs in a child `sapi cgi` process.
	exe string
}

func newDevServer(cfgPath string, logOut io.Writer) *devServer {
	if abs, err := filepath.Abs(cfgPath); err == nil {
		cfgPath = abs
	}
	cfg := fixture.Load(cfgPath)

	s := &devServer{
		root:    filepath.Dir(cfgPath),
		cfgPath: cfgPath,
		app:     fixture.NewLive(fixture.NewApp(cfg)),
		log:     sapi.NewLoggerTo(logOut),
		metrics: NewMetrics(),
	}
	s.cfg.Store(cfg)
	return s
}

func (s *devServer) reload(cfg *fixture.Config) {
	s.cfg.Store(cfg)
	s.app.Store(fixture.NewApp(cfg))
}

func (s *devServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/__sapi/metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.handle)
	return mux
}

// countingWriter records what reached the client for the access line.
type countingWriter struct {
	http.ResponseWriter
	status int
	n      int64
}

func (w *countingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.n += int64(n)
	return n, err
}

func (w *countingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (s *devServer) handle(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Load()

	if tryServeStatic(w, r, s.root, cfg.Static) {
		return
	}

	routeKey := r.URL.Path
	if routeKey == "" {
		routeKey = "/"
	}

	start := time.Now()
	s.metrics.StartRequest(routeKey)

	cw := &countingWriter{ResponseWriter: w}
	var err error
	if s.exe != "" {
		s.cgiHandler(cfg).ServeHTTP(newCGIWriter(cw), r)
	} else {
		err = s.invoke(cw, r, cfg)
	}

	elapsed := time.Since(start)
	s.metrics.EndRequest(routeKey, elapsed, err != nil)

	if err != nil {
		s.log.Log(fmt.Sprintf("%s %s -> error: %v", r.Method, r.URL.RequestURI(), err))
		return
	}
	s.log.Log(fmt.Sprintf("%s %s -> %d %s (%v)", r.Method, r.URL.RequestURI(), cw.status, humanize.Bytes(uint64(cw.n)), elapsed))
}

func (s *devServer) invoke(w http.ResponseWriter, r *http.Request, cfg *fixture.Config) error {
	env, err := sapi.EnvironmentFromHTTP(r, cfg.Software)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "bad request", http.StatusBadRequest)
		}
		return err
	}

	host := sapi.NewHost(sapi.HTTPSink(w), sapi.BufferOutput(), sapi.WithCharset(cfg.DefaultCharset))
	return sapi.NewAdapter(env, host, s.log).Run(r.Context(), s.app)
}

// cgiWriter relays a child process's response the way HTTPSink emits an
// in-process one: no sniffed Content-Type, and every chunk flushed as it
// arrives.
type cgiWriter struct {
	http.ResponseWriter
	rc *http.ResponseController
}

func newCGIWriter(w http.ResponseWriter) *cgiWriter {
	return &cgiWriter{ResponseWriter: w, rc: http.NewResponseController(w)}
}

func (w *cgiWriter) WriteHeader(code int) {
	h := w.Header()
	if _, ok := h["Content-Type"]; !ok {
		h["Content-Type"] = nil
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cgiWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

func (w *cgiWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (s *devServer) cgiHandler(cfg *fixture.Config) *cgi.Handler {
	return &cgi.Handler{
		Path: s.exe,
		Dir:  s.root,
		Args: []string{"cgi", "--config", s.cfgPath},
		Env:  []string{"SERVER_SOFTWARE=" + cfg.Software},
	}
}

func (s *devServer) listen(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		log.Println("[shutdown] signal received, shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[shutdown] http server shutdown error: %v", err)
		} else {
			log.Println("[shutdown] http server shut down cleanly")
		}
	}()

	cfg := s.cfg.Load()
	mode := "in-process"
	if s.exe != "" {
		mode = "process per request"
	}

	log.Println("=============================================")
	log.Printf(" sapi development server listening on %s", addr)
	log.Println("=============================================")
	log.Printf(" Config: %s", s.cfgPath)
	log.Printf(" Software: %s", cfg.Software)
	log.Printf(" Mode: %s", mode)
	log.Printf(" Routes: %d", len(cfg.Routes))
	log.Println(" Static rules:")
	for _, rule := range cfg.Static {
		log.Printf("   %s → %s", rule.Prefix, filepath.Join(s.root, rule.Dir))
	}
	log.Println("=============================================")

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

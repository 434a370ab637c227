package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go-sapi/internal/fixture"
	"go-sapi/sapi"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "sapi",
		Short:        "Run the fixture application behind the server adapter",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("SAPI_CONFIG", ""), "path to sapi.yaml")

	root.AddCommand(&cobra.Command{
		Use:   "cgi",
		Short: "Handle one CGI invocation from the process environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCGI(cmd.Context(), os.Environ(), os.Stdin, os.Stdout, os.Stderr, resolveConfigPath(configPath))
		},
	})
	root.AddCommand(newServeCmd(&configPath))

	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return filepath.Join(fixture.ProjectRoot(), fixture.ConfigFile)
}

// runCGI serves a single request. The response goes to stdout and the access
// line to stderr, leaving stdout to the host.
func runCGI(ctx context.Context, environ []string, stdin io.Reader, stdout, stderr io.Writer, cfgPath string) error {
	cfg := fixture.Load(cfgPath)

	env, err := sapi.EnvironmentFromOS(environ, stdin)
	if err != nil {
		return fmt.Errorf("cgi environment: %w", err)
	}

	logger := sapi.NewLoggerTo(stderr)
	host := sapi.NewHost(sapi.CGISink(stdout), sapi.WithCharset(cfg.DefaultCharset))
	adapter := sapi.NewAdapter(env, host, logger)

	start := time.Now()
	method, uri := env.Server["REQUEST_METHOD"], env.Server["REQUEST_URI"]
	if err := adapter.Run(ctx, fixture.NewApp(cfg)); err != nil {
		adapter.Log(fmt.Sprintf("%s %s -> error: %v", method, uri, err))
		return err
	}
	adapter.Log(fmt.Sprintf("%s %s -> done (%v)", method, uri, time.Since(start)))
	return nil
}

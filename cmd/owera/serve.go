package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/fyrsmithlabs/owera/internal/http"
	mcpserver "github.com/fyrsmithlabs/owera/internal/mcp"
	"github.com/fyrsmithlabs/owera/internal/services"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API. Submitted runs execute in the background and write
into <output.dir>/<run id>. With events enabled, GET /api/v1/runs/:id/events
streams lifecycle events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{configPath: g.configPath, offline: g.offline})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if host != "" {
				a.cfg.Server.Host = host
			}
			if port != 0 {
				a.cfg.Server.Port = port
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	return cmd
}

// serve blocks until ctx is done, then shuts down the server and the runs
// it started within server.shutdown_timeout.
func serve(ctx context.Context, a *app) error {
	runs := services.NewRuns(a.registry, services.Request{PerRunDir: true})

	var sub httpapi.Subscriber
	if a.events != nil {
		sub = a.events
	}
	srv, err := httpapi.NewServer(a.registry, runs, sub, &httpapi.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, "http shutdown failed", zap.Error(err))
	}
	if err := runs.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, "runs did not stop in time", zap.Error(err))
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools on stdio",
		Long: `Serve parse_spec, generate_project, extract_artifact and run_status as
MCP tools over stdin and stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{configPath: g.configPath, offline: g.offline, sink: sinkStderr})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			cfg := mcpserver.DefaultConfig()
			cfg.Version = version
			srv, err := mcpserver.NewServer(cfg, a.registry)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/config"
	"github.com/Aman-CERP/mcpvector/internal/engine"
	"github.com/Aman-CERP/mcpvector/internal/httpapi"
	"github.com/Aman-CERP/mcpvector/internal/mcp"
)

// Transports
const (
	transportHTTP  = "http"
	transportStdio = "stdio"
	transportBoth  = "both"
)

type serveOptions struct {
	transport string
	host      string
	port      int
	watch     []string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch folders and serve queries",
		Long: `Start the indexer: watch the configured folders, keep the vector index
in sync and answer queries.

Transports:
  http   REST API on --host:--port (default)
  stdio  Model Context Protocol over stdin/stdout
  both   HTTP plus MCP over stdio

With --transport stdio nothing but protocol messages is written to stdout.`,
		Example: `  # Serve over HTTP, watching two folders
  mcpvector serve --watch ~/Documents --watch ~/Notes

  # Serve MCP for an AI client
  mcpvector serve --transport stdio`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: http, stdio or both")
	cmd.Flags().StringVar(&opts.host, "host", "", "HTTP listen host")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "HTTP listen port")
	cmd.Flags().StringArrayVarP(&opts.watch, "watch", "w", nil, "Folder to watch (repeatable)")

	return cmd
}

// applyServeFlags overrides cfg with the flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, opts serveOptions) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Server.Transport = opts.transport
	}
	if flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("watch") {
		cfg.Watch.Folders = opts.watch
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg, opts)
	usedCwd, err := cfg.Finalize()
	if err != nil {
		return err
	}

	logger, cleanup, err := setupLogging(cfg, cfg.Logging.Stderr || debugMode)
	if err != nil {
		return err
	}
	defer cleanup()

	if usedCwd {
		logger.Warn("no watch folders configured, watching the working directory",
			slog.Any("folders", cfg.Watch.Folders))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, engine.Options{Logger: logger})
	if err := eng.Start(ctx); err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		return err
	}

	svc := api.ForEngine(eng, logger)
	g, gctx := errgroup.WithContext(ctx)

	transport := cfg.Server.Transport
	if transport == transportHTTP || transport == transportBoth {
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		srv := httpapi.NewServer(svc, addr, logger)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
		if transport == transportHTTP {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "mcpvector listening on http://%s\n", addr)
		}
	}
	if transport == transportStdio || transport == transportBoth {
		srv, err := mcp.NewServer(svc, logger)
		if err != nil {
			stop()
			_ = shutdownEngine(eng, cfg, logger)
			return err
		}
		g.Go(func() error {
			err := srv.Serve(gctx)
			if transport == transportStdio {
				// The client hung up; nothing else is listening.
				stop()
			}
			return err
		})
	}

	<-gctx.Done()
	stop()
	serveErr := g.Wait()

	if err := shutdownEngine(eng, cfg, logger); err != nil && serveErr == nil {
		serveErr = err
	}
	if serveErr != nil && !isCancellation(serveErr) {
		return serveErr
	}
	return nil
}

// shutdownEngine stops the engine within twice the worker join timeout.
func shutdownEngine(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) error {
	timeout := 2*cfg.Worker.JoinTimeout.Std() + 5*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := eng.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/app"
	"github.com/roach88/tablesync/internal/server"
	"github.com/roach88/tablesync/internal/session"
	"github.com/roach88/tablesync/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Database string
	PageSize int

	// Listener, when set, is served instead of listening on Listen.
	Listener net.Listener

	// RequestIDs overrides the request id generator.
	RequestIDs session.RequestIDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync endpoint over HTTP",
		Long: `Serve the sync endpoint over HTTP.

The database is created and migrated if needed. Flags override values from
the config file. The server stops gracefully on SIGINT or SIGTERM.

Example:
  tablesync serve --db ./tablesync.db --listen :8080
  tablesync serve --config /etc/tablesync.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "rows per table per response (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.PageSize != 0 {
		cfg.PageSize = opts.PageSize
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	logs, err := opts.setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logs.Close()

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	sess, err := app.NewSession(st, app.Options{
		PageSize:    cfg.PageSize,
		Parallelism: cfg.Parallelism,
		Logger:      slog.Default(),
		RequestIDs:  opts.RequestIDs,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build session", err)
	}

	srv := server.New(sess, server.Config{
		Addr:           cfg.Listen,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, slog.Default())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Listener != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", opts.Listener.Addr())
		err = srv.Serve(ctx, opts.Listener)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", cfg.Listen)
		err = srv.ListenAndServe(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

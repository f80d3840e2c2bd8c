package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor"
	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/pkg/inspect"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	configPath string
	data       string
	global     string
	addr       string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a runtime with the HTTP inspector",
		Long: `Run a runtime and serve it over HTTP.

Settings come from reactor.json (--config) and REACTOR_*
environment variables. Flags override both.

Examples:
  reactor serve --data @state.json
  reactor serve --config reactor.json --addr :7070`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, nil, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to reactor.json")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "Instance data as JSON or @file")
	cmd.Flags().StringVarP(&opts.global, "global", "g", "", "Global data as JSON or @file")
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

// runServe serves until ctx is done. A nil ln listens on the configured address.
func runServe(ctx context.Context, opts serveOptions, ln net.Listener, logOut io.Writer) error {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Inspector.Addr = opts.addr
	}
	logger := cfg.Logger(logOut)

	local, err := parseData("data", opts.data)
	if err != nil {
		return err
	}
	globals, err := parseData("global", opts.global)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := reactor.New(reactor.Config{
		Data:             local,
		GlobalData:       globals,
		Logger:           logger,
		SweepInterval:    cfg.SweepInterval.Std(),
		EvalTimeout:      cfg.EvalTimeout.Std(),
		ProgramCacheSize: cfg.ProgramCacheSize,
		Metrics:          telemetry.NewMetrics(telemetry.WithRegistry(registry)),
		Tracer:           telemetry.NewTracer(""),
	})
	if err != nil {
		return err
	}
	defer rt.Destroy()

	insp := inspect.New(rt, inspect.WithLogger(logger), inspect.WithGatherer(registry))
	defer insp.Close()

	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Inspector.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Inspector.Addr, err)
		}
	}

	srv := &http.Server{
		Handler:           insp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("inspector listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	insp.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		return err
	}
	return nil
}

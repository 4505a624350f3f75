package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicerelay/core"
	"voicerelay/factories"
	"voicerelay/metrics"
	"voicerelay/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	metricsNamespace = "voicerelay"
	shutdownTimeout  = 10 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the voice chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.settings)
		},
	}
}

// runServe builds the runtime and serves HTTP until SIGINT or SIGTERM.
func runServe(parent context.Context, settings factories.Settings) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := core.GetLogger().With(map[string]any{"component": "main"})
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(metricsNamespace, reg, logger)

	rt, err := factories.BuildRuntime(ctx, settings, collector, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.With(map[string]any{"error": err}).Warn("failed to close history storage")
		}
	}()

	srv := server.New(ctx, server.Config{Port: settings.Port, StaticDir: settings.StaticDir}, server.Deps{
		Sockets:  rt.Orchestrator,
		Chat:     rt.Orchestrator,
		Speech:   rt.Synthesizer,
		Gatherer: reg,
		Metrics:  collector,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

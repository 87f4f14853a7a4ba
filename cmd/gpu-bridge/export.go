package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/collector"
	"github.com/fxnlabs/gpu-bridge/internal/config"
	"github.com/fxnlabs/gpu-bridge/internal/gpu"
	"github.com/fxnlabs/gpu-bridge/internal/metrics"
)

func exportCommand(log **zap.Logger, cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Sample telemetry continuously and serve Prometheus metrics",
		Action: func(c *cli.Context) error {
			return runExporter(*log, *cfg)
		},
	}
}

func runExporter(log *zap.Logger, cfg *config.Config) error {
	banner := figure.NewFigure("GPU Bridge", "", true)
	banner.Print()
	fmt.Println("")

	bridge := gpu.NewBridge(log, cfg.Bridge.LibraryPath)
	if err := bridge.Open(); err != nil {
		return fmt.Errorf("open bridge: %w", err)
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			log.Warn("failed to close bridge", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Middleware(promhttp.Handler(), "/metrics"))
	server := &http.Server{
		Addr:    cfg.Exporter.ListenAddress,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("address", cfg.Exporter.ListenAddress))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	col := collector.New(bridge, log, cfg.Exporter.SampleInterval)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		col.Run(ctx)
	}()

	select {
	case err := <-serverErr:
		stop()
		<-collectorDone
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}

	<-collectorDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

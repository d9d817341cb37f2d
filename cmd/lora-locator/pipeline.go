package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lora-locator/internal/admin"
	"lora-locator/internal/config"
	"lora-locator/internal/geo"
	"lora-locator/internal/ingest"
	"lora-locator/internal/locator"
	"lora-locator/internal/logging"
	"lora-locator/internal/metadata"
	"lora-locator/internal/observability"
	"lora-locator/internal/rf"
	"lora-locator/internal/telemetry"
)

// engineOptions maps the config onto engine options.
func engineOptions(c *config.Config) locator.Options {
	return locator.Options{
		ReferencePower:  c.Engine.ReferencePowerDBM,
		Exponent:        c.Engine.PathLossExponent,
		Fallback:        geo.Point{Lat: c.Engine.FallbackLat, Lon: c.Engine.FallbackLon},
		MinGateways:     c.Engine.MinGateways,
		MaxDistanceM:    c.Engine.MaxDistanceM,
		PublishInterval: c.Engine.PublishInterval,
		Calibrate:       c.Calibration.Enabled,
		Calibration: rf.CalibratorOptions{
			Window:      c.Calibration.Window,
			MinExponent: c.Calibration.MinExponent,
			MaxExponent: c.Calibration.MaxExponent,
		},
	}
}

func loadCatalog(c *config.Config) (*metadata.Catalog, error) {
	catalog, err := metadata.Load(c.Metadata.GatewaysCSV, c.Metadata.SensorsCSV)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return catalog, nil
}

// pipelineLogger returns the process logger. With the TUI active, logs go to
// logging.file (or nowhere) so they do not corrupt the terminal.
func pipelineLogger(c *config.Config, tui bool) (*slog.Logger, func(), error) {
	if !tui {
		return slog.Default(), func() {}, nil
	}
	var out io.Writer = io.Discard
	cleanup := func() {}
	if c.Logging.File != "" {
		f, err := os.OpenFile(c.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		cleanup = func() { f.Close() }
	}
	return logging.New(logging.Config{Level: c.Logging.Level, Format: c.Logging.Format, Output: out}), cleanup, nil
}

// runPipeline wires source, engine, writers, metrics, tracing and the admin
// server, and blocks until the source is exhausted or the process is
// interrupted.
func runPipeline(c *config.Config, catalog *metadata.Catalog, src ingest.Source, sourceName string, out outputFlags) error {
	log, closeLog, err := pipelineLogger(c, out.tui)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewContext(ctx, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdownTracing, log)

	metrics, err := observability.NewLocatorCollector(nil)
	if err != nil {
		return err
	}
	metrics.SetExponent(c.Engine.PathLossExponent)

	runID := uuid.New().String()
	summary := &locator.Summary{
		RunID:          runID,
		Source:         sourceName,
		ReferencePower: c.Engine.ReferencePowerDBM,
		Exponent:       c.Engine.PathLossExponent,
		Calibration:    c.Calibration.Enabled,
		Gateways:       len(catalog.Gateways()),
		Sensors:        len(catalog.Sensors()),
	}
	writer, tui, cleanup, err := newWriters(c, summary, out, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := locator.NewEngine(engineOptions(c), catalog, writer,
		locator.WithRunID(runID),
		locator.WithMetrics(metrics),
	)

	addr := c.Admin.Addr
	if out.admin != "" {
		addr = out.admin
	}

	reports := make(chan telemetry.Report, c.Source.QueueSize)
	g, gctx := errgroup.WithContext(ctx)
	adminCtx, stopAdmin := context.WithCancel(gctx)
	defer stopAdmin()

	g.Go(func() error {
		defer close(reports)
		return src.Run(gctx, reports)
	})
	g.Go(func() error {
		defer stopAdmin()
		return engine.Run(gctx, reports)
	})
	if addr != "" {
		opts := admin.Options{
			AllowedOrigins: c.Admin.AllowedOrigins,
			Metrics:        metrics.Handler(),
		}
		if tui != nil {
			opts.OnStatus = tui.SetAdminStatus
		}
		srv := admin.NewServer(engine, opts)
		g.Go(func() error { return srv.Start(adminCtx, addr) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	snap := engine.Snapshot()
	log.Info("locator stopped",
		"run_id", runID,
		"sensors", len(snap.Sensors),
		"gateways", len(snap.Gateways),
		"path_loss_exponent", snap.Exponent,
	)
	return err
}

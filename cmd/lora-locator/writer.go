package main

import (
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"lora-locator/internal/config"
	"lora-locator/internal/locator"
)

// outputFlags selects where a pipeline sends its estimates.
type outputFlags struct {
	printOnly bool
	logFile   string
	tui       bool
	admin     string
}

// newWriters sets up estimate writers based on flags and env vars. It returns
// the writer, the TUI when one is running, and a cleanup function that closes
// every resource.
func newWriters(cfg *config.Config, summary *locator.Summary, out outputFlags, log *slog.Logger) (locator.EstimateWriter, *locator.TUIWriter, func(), error) {
	ws, tui, err := baseWriters(summary, out, log)
	if err != nil {
		return nil, nil, nil, err
	}
	if out.logFile != "" {
		calPath := ""
		if cfg == nil || cfg.Calibration.Enabled {
			calPath = out.logFile + ".calibration"
		}
		fw, err := locator.NewFileWriter(out.logFile, calPath)
		if err != nil {
			closeAll(ws)
			return nil, nil, nil, err
		}
		ws = append(ws, fw)
	}
	if len(ws) == 1 {
		w := ws[0]
		return w, tui, func() { closeAll(ws) }, nil
	}
	mw := locator.NewMultiWriter(ws...)
	return mw, tui, func() { mw.Close() }, nil
}

// baseWriters chooses the presentation writer and any database sinks.
func baseWriters(summary *locator.Summary, out outputFlags, log *slog.Logger) ([]locator.EstimateWriter, *locator.TUIWriter, error) {
	var ws []locator.EstimateWriter
	if !out.printOnly {
		if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
			w, err := locator.NewGreptimeDBWriter(greptimeConfig(endpoint), log)
			if err != nil {
				return nil, nil, err
			}
			ws = append(ws, w)
		}
		if url := os.Getenv("INFLUX_URL"); url != "" {
			ws = append(ws, locator.NewInfluxWriter(locator.InfluxConfig{
				URL:    url,
				Token:  os.Getenv("INFLUX_TOKEN"),
				Org:    os.Getenv("INFLUX_ORG"),
				Bucket: os.Getenv("INFLUX_BUCKET"),
			}))
		}
	}

	var tui *locator.TUIWriter
	switch {
	case out.tui:
		tui = locator.NewTUIWriter(summary)
		ws = append([]locator.EstimateWriter{tui}, ws...)
	case len(ws) == 0:
		ws = append(ws, locator.NewStdoutWriter(summary))
	}
	return ws, tui, nil
}

// greptimeConfig builds the sink config from an endpoint of the form host or
// host:port plus the optional GREPTIMEDB_* env vars.
func greptimeConfig(endpoint string) locator.GreptimeConfig {
	gc := locator.GreptimeConfig{
		Host:          endpoint,
		Database:      os.Getenv("GREPTIMEDB_DATABASE"),
		EstimateTable: os.Getenv("GREPTIMEDB_TABLE"),
	}
	if host, port, err := net.SplitHostPort(endpoint); err == nil {
		if p, err := strconv.Atoi(port); err == nil {
			gc.Host, gc.Port = host, p
		}
	}
	if gc.Database == "" {
		gc.Database = "public"
	}
	return gc
}

func closeAll(ws []locator.EstimateWriter) {
	for _, w := range ws {
		if c, ok := w.(io.Closer); ok {
			c.Close()
		}
	}
}

// Package ingest turns reception feeds into telemetry.Report values.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"lora-locator/internal/metadata"
	"lora-locator/internal/telemetry"
)

// ErrMalformedReport is returned for messages that cannot become a report.
var ErrMalformedReport = telemetry.ErrMalformedReport

// Source produces reports on out until ctx is done or the feed ends. Run
// returns nil on a clean end of feed.
type Source interface {
	Run(ctx context.Context, out chan<- telemetry.Report) error
}

// wireReport mirrors the feed JSON. Pointers tell missing fields from zero.
type wireReport struct {
	DeviceEUI  string     `json:"device_eui"`
	DeviceName string     `json:"device_name"`
	Gateway    string     `json:"gateway"`
	RSSI       *float64   `json:"rssi"`
	Time       *time.Time `json:"time"`
}

// DecodeReport decodes one wire message and normalizes its ids. now stamps
// messages without a time field.
func DecodeReport(data []byte, now time.Time) (telemetry.Report, error) {
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return telemetry.Report{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if w.RSSI == nil {
		return telemetry.Report{}, fmt.Errorf("%w: missing rssi", ErrMalformedReport)
	}
	r := telemetry.Report{
		SensorID:   metadata.NormalizeEUI(w.DeviceEUI),
		SensorName: w.DeviceName,
		GatewayID:  metadata.NormalizeEUI(w.Gateway),
		RSSI:       *w.RSSI,
		ReceivedAt: now,
	}
	if w.Time != nil && !w.Time.IsZero() {
		r.ReceivedAt = w.Time.UTC()
	}
	if math.IsInf(r.RSSI, 0) || math.IsNaN(r.RSSI) {
		return telemetry.Report{}, fmt.Errorf("%w: rssi %v", ErrMalformedReport, r.RSSI)
	}
	if err := r.Validate(); err != nil {
		return telemetry.Report{}, err
	}
	return r, nil
}

// send delivers r unless ctx ends first.
func send(ctx context.Context, out chan<- telemetry.Report, r telemetry.Report) error {
	select {
	case out <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

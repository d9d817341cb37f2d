package locator

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"lora-locator/internal/telemetry"
)

// pointWriter is the subset of api.WriteAPIBlocking used by InfluxWriter.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxConfig addresses an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxWriter writes estimates and calibration samples as InfluxDB points.
type InfluxWriter struct {
	client influxdb2.Client
	api    pointWriter
}

// NewInfluxWriter creates a blocking InfluxDB writer.
func NewInfluxWriter(cfg InfluxConfig) *InfluxWriter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxWriter{
		client: client,
		api:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// Write stores a single estimate row.
func (w *InfluxWriter) Write(row telemetry.EstimateRow) error {
	return w.WriteBatch([]telemetry.EstimateRow{row})
}

// WriteBatch stores estimate rows as one write request.
func (w *InfluxWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, estimatePoint(r))
	}
	if err := w.api.WritePoint(context.Background(), points...); err != nil {
		return fmt.Errorf("error writing estimates to InfluxDB: %w", err)
	}
	return nil
}

// WriteCalibration stores a single calibration row.
func (w *InfluxWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	return w.WriteCalibrations([]telemetry.CalibrationRow{row})
}

// WriteCalibrations stores calibration rows as one write request.
func (w *InfluxWriter) WriteCalibrations(rows []telemetry.CalibrationRow) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, influxdb2.NewPoint(
			telemetry.CalibrationTableName,
			map[string]string{"sensor_id": r.SensorID, "gateway_id": r.GatewayID, "run_id": r.RunID},
			map[string]interface{}{
				"rssi":               r.RSSI,
				"distance_m":         r.DistanceM,
				"refit":              r.Refit,
				"path_loss_exponent": r.Exponent,
				"samples":            r.Samples,
			},
			r.Timestamp,
		))
	}
	if err := w.api.WritePoint(context.Background(), points...); err != nil {
		return fmt.Errorf("error writing calibration to InfluxDB: %w", err)
	}
	return nil
}

// Close releases the client.
func (w *InfluxWriter) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}

func estimatePoint(r telemetry.EstimateRow) *write.Point {
	fields := map[string]interface{}{
		"lat":                r.Lat,
		"lon":                r.Lon,
		"known":              r.Known,
		"fixed":              r.Fixed,
		"gateways":           r.Gateways,
		"packets":            r.Packets,
		"path_loss_exponent": r.Exponent,
	}
	if r.Known {
		fields["error_m"] = r.ErrorM
	}
	tags := map[string]string{"sensor_id": r.SensorID, "run_id": r.RunID}
	if r.SensorName != "" {
		tags["sensor_name"] = r.SensorName
	}
	return influxdb2.NewPoint(telemetry.EstimateTableName, tags, fields, r.Timestamp)
}

package locator

import (
	"context"
	"log/slog"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"lora-locator/internal/telemetry"
)

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeConfig addresses a GreptimeDB instance.
type GreptimeConfig struct {
	Host             string
	Port             int
	Database         string
	EstimateTable    string
	CalibrationTable string
}

// GreptimeDBWriter writes estimates and calibration samples to GreptimeDB.
type GreptimeDBWriter struct {
	client           greptimeClient
	estimateTable    string
	calibrationTable string
	log              *slog.Logger
}

// NewGreptimeDBWriter connects to GreptimeDB. Empty table names fall back to
// the ESTIMATE_TABLE and CALIBRATION_TABLE defaults.
func NewGreptimeDBWriter(cfg GreptimeConfig, log *slog.Logger) (*GreptimeDBWriter, error) {
	gcfg := greptime.NewConfig(cfg.Host).WithDatabase(cfg.Database)
	if cfg.Port > 0 {
		gcfg = gcfg.WithPort(cfg.Port)
	}
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, err
	}
	if cfg.EstimateTable == "" {
		cfg.EstimateTable = telemetry.EstimateTableName
	}
	if cfg.CalibrationTable == "" {
		cfg.CalibrationTable = telemetry.CalibrationTableName
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{
		client:           client,
		estimateTable:    cfg.EstimateTable,
		calibrationTable: cfg.CalibrationTable,
		log:              log,
	}, nil
}

// Write inserts a single estimate row.
func (w *GreptimeDBWriter) Write(row telemetry.EstimateRow) error {
	return w.WriteBatch([]telemetry.EstimateRow{row})
}

// WriteBatch inserts multiple estimate rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.estimateTable)
	if err != nil {
		return err
	}
	for _, col := range []struct {
		name string
		typ  types.ColumnType
		tag  bool
	}{
		{"sensor_id", types.STRING, true},
		{"run_id", types.STRING, true},
		{"sensor_name", types.STRING, false},
		{"lat", types.FLOAT64, false},
		{"lon", types.FLOAT64, false},
		{"known", types.BOOLEAN, false},
		{"fixed", types.BOOLEAN, false},
		{"error_m", types.FLOAT64, false},
		{"gateways", types.INT64, false},
		{"packets", types.INT64, false},
		{"path_loss_exponent", types.FLOAT64, false},
	} {
		if col.tag {
			err = tbl.AddTagColumn(col.name, col.typ)
		} else {
			err = tbl.AddFieldColumn(col.name, col.typ)
		}
		if err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(
			r.SensorID, r.RunID, r.SensorName,
			r.Lat, r.Lon, r.Known, r.Fixed, r.ErrorM,
			int64(r.Gateways), int64(r.Packets), r.Exponent,
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, w.estimateTable, len(rows))
}

// WriteCalibration inserts a single calibration row.
func (w *GreptimeDBWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	return w.WriteCalibrations([]telemetry.CalibrationRow{row})
}

// WriteCalibrations inserts multiple calibration rows.
func (w *GreptimeDBWriter) WriteCalibrations(rows []telemetry.CalibrationRow) error {
	if len(rows) == 0 || w.calibrationTable == "" {
		return nil
	}
	tbl, err := table.New(w.calibrationTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("sensor_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("gateway_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		typ  types.ColumnType
	}{
		{"rssi", types.FLOAT64},
		{"distance_m", types.FLOAT64},
		{"refit", types.BOOLEAN},
		{"path_loss_exponent", types.FLOAT64},
		{"samples", types.INT64},
	} {
		if err := tbl.AddFieldColumn(f.name, f.typ); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(
			r.SensorID, r.GatewayID, r.RunID,
			r.RSSI, r.DistanceM, r.Refit, r.Exponent, int64(r.Samples),
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, w.calibrationTable, len(rows))
}

func (w *GreptimeDBWriter) write(tbl *table.Table, name string, n int) error {
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Error("greptime write failed", "table", name, "err", err)
		return err
	}
	w.log.Debug("greptime write", "table", name, "rows", n)
	return nil
}

// Report and export row types with greptime tags
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"
)

// ErrMalformedReport is returned for reports missing a sensor id, a gateway id
// or a finite signal strength.
var ErrMalformedReport = errors.New("malformed report")

// Report is one reception of one sensor transmission by one gateway, with ids
// already normalized.
type Report struct {
	SensorID   string    `json:"device_eui"`
	SensorName string    `json:"device_name,omitempty"`
	GatewayID  string    `json:"gateway"`
	RSSI       float64   `json:"rssi"`
	ReceivedAt time.Time `json:"time"`
}

// Validate checks the fields the engine cannot do without.
func (r Report) Validate() error {
	switch {
	case r.SensorID == "":
		return fmt.Errorf("%w: missing device_eui", ErrMalformedReport)
	case r.GatewayID == "":
		return fmt.Errorf("%w: missing gateway", ErrMalformedReport)
	case math.IsNaN(r.RSSI) || math.IsInf(r.RSSI, 0):
		return fmt.Errorf("%w: rssi %v", ErrMalformedReport, r.RSSI)
	}
	return nil
}

// EstimateRow is the exported state of one sensor after a publish.
type EstimateRow struct {
	RunID      string    `json:"run_id"`                // TAG
	SensorID   string    `json:"sensor_id"`             // TAG
	SensorName string    `json:"sensor_name,omitempty"` // FIELD
	Lat        float64   `json:"lat"`                   // FIELD
	Lon        float64   `json:"lon"`                   // FIELD
	Known      bool      `json:"known"`                 // FIELD
	Fixed      bool      `json:"fixed"`                 // FIELD
	ErrorM     float64   `json:"error_m,omitempty"`     // FIELD, known sensors only
	Gateways   int       `json:"gateways"`              // FIELD
	Packets    int       `json:"packets"`               // FIELD
	Exponent   float64   `json:"path_loss_exponent"`    // FIELD
	Timestamp  time.Time `json:"ts"`                    // TIME INDEX
}

// CalibrationRow records one calibration sample and the outcome of the refit.
type CalibrationRow struct {
	RunID     string    `json:"run_id"`             // TAG
	SensorID  string    `json:"sensor_id"`          // TAG
	GatewayID string    `json:"gateway_id"`         // TAG
	RSSI      float64   `json:"rssi"`               // FIELD
	DistanceM float64   `json:"distance_m"`         // FIELD
	Refit     bool      `json:"refit"`              // FIELD
	Exponent  float64   `json:"path_loss_exponent"` // FIELD
	Samples   int       `json:"samples"`            // FIELD
	Timestamp time.Time `json:"ts"`                 // TIME INDEX
}

// EstimateTableName holds the table used for estimate rows. It defaults to
// "sensor_estimates" and can be overridden via ESTIMATE_TABLE.
var EstimateTableName = func() string {
	if env := os.Getenv("ESTIMATE_TABLE"); env != "" {
		return env
	}
	return "sensor_estimates"
}()

// CalibrationTableName holds the table used for calibration rows. It defaults
// to "calibration_samples" and can be overridden via CALIBRATION_TABLE.
var CalibrationTableName = func() string {
	if env := os.Getenv("CALIBRATION_TABLE"); env != "" {
		return env
	}
	return "calibration_samples"
}()

func (EstimateRow) TableName() string { return EstimateTableName }

func (CalibrationRow) TableName() string { return CalibrationTableName }

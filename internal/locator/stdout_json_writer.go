package locator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lora-locator/internal/telemetry"
)

// JSONStdoutWriter prints estimates and calibration rows as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs an estimate row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.EstimateRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteBatch outputs multiple estimate rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteCalibration outputs a calibration row in JSON format.
func (w *JSONStdoutWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

package locator

import (
	"encoding/json"
	"os"

	"lora-locator/internal/telemetry"
)

// FileWriter writes estimate and calibration rows to JSONL files.
type FileWriter struct {
	estFile *os.File
	calFile *os.File
	estEnc  *json.Encoder
	calEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. calibrationPath may be empty to skip
// calibration logging.
func NewFileWriter(estimatePath, calibrationPath string) (*FileWriter, error) {
	ef, err := os.Create(estimatePath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{estFile: ef, estEnc: json.NewEncoder(ef)}
	if calibrationPath != "" {
		cf, err := os.Create(calibrationPath)
		if err != nil {
			ef.Close()
			return nil, err
		}
		fw.calFile = cf
		fw.calEnc = json.NewEncoder(cf)
	}
	return fw, nil
}

// Write logs a single estimate row.
func (f *FileWriter) Write(row telemetry.EstimateRow) error {
	return f.estEnc.Encode(row)
}

// WriteBatch logs multiple estimate rows.
func (f *FileWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCalibration logs a calibration row, if enabled.
func (f *FileWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	if f.calEnc == nil {
		return nil
	}
	return f.calEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.estFile != nil {
		if e := f.estFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.calFile != nil {
		if e := f.calFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

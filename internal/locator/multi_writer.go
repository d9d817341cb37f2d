package locator

import (
	"io"

	"lora-locator/internal/registry"
	"lora-locator/internal/telemetry"
)

// MultiWriter fans out estimates, calibration rows and snapshots to every
// writer that supports them.
type MultiWriter struct {
	writers []EstimateWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(writers ...EstimateWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write sends an estimate row to all writers.
func (mw *MultiWriter) Write(row telemetry.EstimateRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple estimate rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	for _, w := range mw.writers {
		if err := writeEstimates(w, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteCalibration sends a calibration row to all calibration writers.
func (mw *MultiWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	return mw.WriteCalibrations([]telemetry.CalibrationRow{row})
}

// WriteCalibrations sends calibration rows to all calibration writers.
func (mw *MultiWriter) WriteCalibrations(rows []telemetry.CalibrationRow) error {
	for _, w := range mw.writers {
		cw, ok := w.(CalibrationWriter)
		if !ok {
			continue
		}
		if err := writeCalibrations(cw, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshot sends a snapshot to all snapshot writers.
func (mw *MultiWriter) WriteSnapshot(snap *registry.Snapshot) error {
	for _, w := range mw.writers {
		sw, ok := w.(SnapshotWriter)
		if !ok {
			continue
		}
		if err := sw.WriteSnapshot(snap); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer that holds resources and reports the first error.
func (mw *MultiWriter) Close() error {
	var err error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			if e := c.Close(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}

package locator

import (
	"lora-locator/internal/registry"
	"lora-locator/internal/telemetry"
)

// EstimateWriter receives the state of every sensor touched since the last publish.
type EstimateWriter interface {
	Write(row telemetry.EstimateRow) error
}

// batchWriter is implemented by writers that can accept multiple rows at once.
type batchWriter interface {
	WriteBatch(rows []telemetry.EstimateRow) error
}

// CalibrationWriter receives calibration samples and refit outcomes.
type CalibrationWriter interface {
	WriteCalibration(row telemetry.CalibrationRow) error
}

// batchCalibrationWriter is implemented by writers that accept calibration rows in bulk.
type batchCalibrationWriter interface {
	WriteCalibrations(rows []telemetry.CalibrationRow) error
}

// SnapshotWriter receives every published snapshot.
type SnapshotWriter interface {
	WriteSnapshot(snap *registry.Snapshot) error
}

func writeEstimates(w EstimateWriter, rows []telemetry.EstimateRow) error {
	if len(rows) == 0 {
		return nil
	}
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func writeCalibrations(w CalibrationWriter, rows []telemetry.CalibrationRow) error {
	if len(rows) == 0 {
		return nil
	}
	if bw, ok := w.(batchCalibrationWriter); ok {
		return bw.WriteCalibrations(rows)
	}
	for _, r := range rows {
		if err := w.WriteCalibration(r); err != nil {
			return err
		}
	}
	return nil
}

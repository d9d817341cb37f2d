package rf

import (
	"errors"
	"math"
	"testing"

	"lora-locator/internal/geo"
)

func TestCalibratorSingleSampleLeavesExponent(t *testing.T) {
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{})
	err := c.Add(Sample{RSSI: -90, DistanceM: 120})
	if !errors.Is(err, ErrCalibrationFit) {
		t.Fatalf("expected ErrCalibrationFit, got %v", err)
	}
	if !errors.Is(err, ErrUnderdetermined) {
		t.Fatalf("expected ErrUnderdetermined, got %v", err)
	}
	if m.Exponent() != 2 {
		t.Fatalf("exponent changed to %v", m.Exponent())
	}
}

func TestCalibratorIdenticalDistancesLeaveExponent(t *testing.T) {
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{})
	_ = c.Add(Sample{RSSI: -90, DistanceM: 120})
	if err := c.Add(Sample{RSSI: -95, DistanceM: 120}); !errors.Is(err, ErrUnderdetermined) {
		t.Fatalf("expected ErrUnderdetermined, got %v", err)
	}
	if m.Exponent() != 2 {
		t.Fatalf("exponent changed to %v", m.Exponent())
	}
}

func TestCalibratorRecoversExponent(t *testing.T) {
	truth := NewPathLossModel(-40, 3.2)
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{})
	for _, d := range []float64{15, 80, 240, 600, 1300} {
		_ = c.Add(Sample{RSSI: truth.RSSIAt(d), DistanceM: d})
	}
	if math.Abs(m.Exponent()-3.2) > 1e-9 {
		t.Fatalf("exponent = %v, want 3.2", m.Exponent())
	}
	if c.Len() != 5 {
		t.Fatalf("Len = %d, want 5", c.Len())
	}
}

func TestCalibratorRejectsOutOfBoundsFit(t *testing.T) {
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{MinExponent: 1.5, MaxExponent: 4})
	_ = c.Add(Sample{RSSI: -200, DistanceM: 10})
	err := c.Add(Sample{RSSI: -300, DistanceM: 20})
	if !errors.Is(err, ErrCalibrationFit) {
		t.Fatalf("expected ErrCalibrationFit, got %v", err)
	}
	if m.Exponent() != 2 {
		t.Fatalf("exponent changed to %v", m.Exponent())
	}
}

func TestCalibratorRejectsZeroDistance(t *testing.T) {
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{})
	if err := c.Add(Sample{RSSI: -40, DistanceM: 0}); !errors.Is(err, ErrCalibrationFit) {
		t.Fatalf("expected ErrCalibrationFit, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("zero distance sample retained")
	}
}

func TestCalibratorWindowEvictsOldest(t *testing.T) {
	old := NewPathLossModel(-40, 2.0)
	recent := NewPathLossModel(-40, 3.5)
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{Window: 3})
	for _, d := range []float64{10, 100, 1000} {
		_ = c.Add(Sample{RSSI: old.RSSIAt(d), DistanceM: d})
	}
	for _, d := range []float64{20, 200, 2000} {
		_ = c.Add(Sample{RSSI: recent.RSSIAt(d), DistanceM: d})
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if math.Abs(m.Exponent()-3.5) > 1e-6 {
		t.Fatalf("exponent = %v, want 3.5 after eviction", m.Exponent())
	}
	samples := c.Samples()
	if len(samples) != 3 || samples[0].DistanceM != 20 || samples[2].DistanceM != 2000 {
		t.Fatalf("unexpected retained samples: %+v", samples)
	}
}

func TestCalibratorIngestUsesGreatCircleDistance(t *testing.T) {
	m := NewPathLossModel(-40, 2)
	c := NewCalibrator(m, CalibratorOptions{})
	ref := geo.Point{Lat: 52.232, Lon: 6.862}
	gw := geo.Point{Lat: 52.235, Lon: 6.860}
	s, _ := c.Ingest(ref, gw, -80)
	if math.Abs(s.DistanceM-geo.DistanceMeters(ref, gw)) > 1e-9 {
		t.Fatalf("sample distance = %v", s.DistanceM)
	}
}

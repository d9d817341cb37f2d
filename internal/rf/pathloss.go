// Package rf converts received signal strength to distance and keeps the
// path-loss exponent calibrated against sensors of known position.
package rf

import (
	"math"
	"sync/atomic"
)

// Defaults for the log-distance model.
const (
	DefaultReferencePower = -40.0
	DefaultExponent       = 2.0
)

// PathLossModel implements the log-distance model d = 10^((P0 - s) / (10 n)).
// P0 is fixed for the lifetime of the model; n may be replaced by a
// Calibrator while other goroutines read it.
type PathLossModel struct {
	referencePower float64
	exponent       atomic.Uint64
}

// NewPathLossModel returns a model with reference power p0 (dBm at 1 m) and
// initial exponent n.
func NewPathLossModel(p0, n float64) *PathLossModel {
	m := &PathLossModel{referencePower: p0}
	m.setExponent(n)
	return m
}

// Distance converts rssi (dBm) to meters. The result is not clamped: an rssi
// above P0 yields a distance below one meter.
func (m *PathLossModel) Distance(rssi float64) float64 {
	return math.Pow(10, (m.referencePower-rssi)/(10*m.Exponent()))
}

// RSSIAt is the inverse of Distance for the current exponent.
func (m *PathLossModel) RSSIAt(distance float64) float64 {
	return m.referencePower - 10*m.Exponent()*math.Log10(distance)
}

// Exponent returns the current path-loss exponent.
func (m *PathLossModel) Exponent() float64 {
	return math.Float64frombits(m.exponent.Load())
}

// ReferencePower returns P0.
func (m *PathLossModel) ReferencePower() float64 { return m.referencePower }

func (m *PathLossModel) setExponent(n float64) {
	m.exponent.Store(math.Float64bits(n))
}

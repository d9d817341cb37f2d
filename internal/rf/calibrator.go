package rf

import (
	"errors"
	"fmt"
	"math"

	"lora-locator/internal/geo"
)

var (
	// ErrCalibrationFit is returned when a refit cannot produce a usable
	// exponent. The model keeps its previous exponent.
	ErrCalibrationFit = errors.New("calibration fit failed")
	// ErrUnderdetermined wraps ErrCalibrationFit when the retained samples do
	// not span at least two distinct distances.
	ErrUnderdetermined = fmt.Errorf("%w: need samples at two or more distinct distances", ErrCalibrationFit)
)

// Exponent bounds applied when CalibratorOptions leaves them unset.
const (
	DefaultMinExponent = 1.0
	DefaultMaxExponent = 8.0
)

const varianceTolerance = 1e-9

// Sample is one calibration observation.
type Sample struct {
	RSSI      float64 `json:"rssi"`
	DistanceM float64 `json:"distance_m"`
}

// CalibratorOptions tunes a Calibrator. Window <= 0 retains every sample.
type CalibratorOptions struct {
	Window      int
	MinExponent float64
	MaxExponent float64
}

// Calibrator refits the exponent of a PathLossModel from samples taken on
// sensors of known position. With P0 fixed the residual
// s - (P0 - 10 n log10 d) is linear in n, so the least-squares optimum is
// n = sum((P0-s)*L) / sum(L^2) with L = 10 log10 d. The sums are kept
// incrementally so every refit is O(1).
//
// A Calibrator is owned by a single goroutine. Readers observe the result
// through the model's Exponent.
type Calibrator struct {
	model  *PathLossModel
	window int
	minExp float64
	maxExp float64

	ring []Sample
	head int

	count int
	sumL  float64
	sumLL float64
	sumYL float64
}

// NewCalibrator returns a Calibrator that updates model.
func NewCalibrator(model *PathLossModel, opts CalibratorOptions) *Calibrator {
	if opts.MinExponent <= 0 {
		opts.MinExponent = DefaultMinExponent
	}
	if opts.MaxExponent <= opts.MinExponent {
		opts.MaxExponent = DefaultMaxExponent
	}
	c := &Calibrator{
		model:  model,
		window: opts.Window,
		minExp: opts.MinExponent,
		maxExp: opts.MaxExponent,
	}
	if c.window > 0 {
		c.ring = make([]Sample, 0, c.window)
	}
	return c
}

// Ingest records a reception of rssi at gateway from a sensor whose true
// position is reference, then refits the exponent.
func (c *Calibrator) Ingest(reference, gateway geo.Point, rssi float64) (Sample, error) {
	s := Sample{RSSI: rssi, DistanceM: geo.DistanceMeters(reference, gateway)}
	return s, c.Add(s)
}

// Add appends s and refits. On error the model exponent is left untouched.
func (c *Calibrator) Add(s Sample) error {
	if !(s.DistanceM > 0) || math.IsInf(s.DistanceM, 0) {
		return fmt.Errorf("%w: invalid true distance %v", ErrCalibrationFit, s.DistanceM)
	}
	if math.IsNaN(s.RSSI) || math.IsInf(s.RSSI, 0) {
		return fmt.Errorf("%w: invalid rssi %v", ErrCalibrationFit, s.RSSI)
	}
	if c.window > 0 {
		if len(c.ring) == c.window {
			c.remove(c.ring[c.head])
			c.ring[c.head] = s
			c.head = (c.head + 1) % c.window
		} else {
			c.ring = append(c.ring, s)
		}
	}
	c.insert(s)
	return c.refit()
}

// Len returns the number of samples the fit currently covers.
func (c *Calibrator) Len() int { return c.count }

// Samples returns the retained samples, oldest first. It is empty for an
// unbounded Calibrator, which keeps only the running sums.
func (c *Calibrator) Samples() []Sample {
	out := make([]Sample, 0, len(c.ring))
	if len(c.ring) < c.window {
		return append(out, c.ring...)
	}
	out = append(out, c.ring[c.head:]...)
	return append(out, c.ring[:c.head]...)
}

func (c *Calibrator) insert(s Sample) {
	l, y := c.terms(s)
	c.count++
	c.sumL += l
	c.sumLL += l * l
	c.sumYL += y * l
}

func (c *Calibrator) remove(s Sample) {
	l, y := c.terms(s)
	c.count--
	c.sumL -= l
	c.sumLL -= l * l
	c.sumYL -= y * l
}

func (c *Calibrator) terms(s Sample) (l, y float64) {
	return 10 * math.Log10(s.DistanceM), c.model.ReferencePower() - s.RSSI
}

func (c *Calibrator) refit() error {
	if c.count < 2 {
		return ErrUnderdetermined
	}
	n := float64(c.count)
	variance := n*c.sumLL - c.sumL*c.sumL
	if variance <= varianceTolerance*n*c.sumLL {
		return ErrUnderdetermined
	}
	exp := c.sumYL / c.sumLL
	if math.IsNaN(exp) || math.IsInf(exp, 0) {
		return fmt.Errorf("%w: non-finite exponent", ErrCalibrationFit)
	}
	if exp < c.minExp || exp > c.maxExp {
		return fmt.Errorf("%w: exponent %.3f outside [%.2f, %.2f]", ErrCalibrationFit, exp, c.minExp, c.maxExp)
	}
	c.model.setExponent(exp)
	return nil
}

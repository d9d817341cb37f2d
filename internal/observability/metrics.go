// Package observability exposes Prometheus metrics and OpenTelemetry tracing
// for the locator engine.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LocatorCollector bundles Prometheus metrics for the engine. It satisfies
// locator.MetricsRecorder.
type LocatorCollector struct {
	gatherer prometheus.Gatherer

	Reports     *prometheus.CounterVec
	Fixes       *prometheus.CounterVec
	Calibration *prometheus.CounterVec
	Durations   prometheus.Histogram

	Exponent           prometheus.Gauge
	CalibrationSamples prometheus.Gauge
	Sensors            prometheus.Gauge
	Gateways           prometheus.Gauge
}

// NewLocatorCollector registers locator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewLocatorCollector(reg prometheus.Registerer) (*LocatorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	reports, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_reports_total",
		Help: "Reception reports processed, labeled by outcome.",
	}, []string{"outcome"}), "locator_reports_total")
	if err != nil {
		return nil, err
	}
	fixes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_fixes_total",
		Help: "Multilateration attempts, labeled by result.",
	}, []string{"result"}), "locator_fixes_total")
	if err != nil {
		return nil, err
	}
	calibration, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_calibration_total",
		Help: "Path-loss refits, labeled by result.",
	}, []string{"result"}), "locator_calibration_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "locator_process_duration_seconds",
		Help:    "Time spent processing one reception report.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "locator_process_duration_seconds")
	if err != nil {
		return nil, err
	}

	exponent, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "locator_path_loss_exponent",
		Help: "Current path-loss exponent.",
	}), "locator_path_loss_exponent")
	if err != nil {
		return nil, err
	}
	samples, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "locator_calibration_samples",
		Help: "Calibration samples currently held.",
	}), "locator_calibration_samples")
	if err != nil {
		return nil, err
	}
	sensors, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "locator_sensors",
		Help: "Sensors in the registry.",
	}), "locator_sensors")
	if err != nil {
		return nil, err
	}
	gateways, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "locator_gateways",
		Help: "Gateways that have reported at least once.",
	}), "locator_gateways")
	if err != nil {
		return nil, err
	}

	return &LocatorCollector{
		gatherer:           gatherer,
		Reports:            reports,
		Fixes:              fixes,
		Calibration:        calibration,
		Durations:          durations,
		Exponent:           exponent,
		CalibrationSamples: samples,
		Sensors:            sensors,
		Gateways:           gateways,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *LocatorCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveReport counts a processed report and its latency.
func (c *LocatorCollector) ObserveReport(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Reports.WithLabelValues(outcome).Inc()
	c.Durations.Observe(elapsed.Seconds())
}

// ObserveFix counts a multilateration attempt.
func (c *LocatorCollector) ObserveFix(ok bool) {
	if c == nil {
		return
	}
	c.Fixes.WithLabelValues(result(ok)).Inc()
}

// ObserveCalibration counts a refit attempt and tracks the model state.
func (c *LocatorCollector) ObserveCalibration(refit bool, exponent float64, samples int) {
	if c == nil {
		return
	}
	c.Calibration.WithLabelValues(result(refit)).Inc()
	c.Exponent.Set(exponent)
	c.CalibrationSamples.Set(float64(samples))
}

// SetRegistryCounts updates the registry gauges at publish time.
func (c *LocatorCollector) SetRegistryCounts(sensors, gateways int) {
	if c == nil {
		return
	}
	c.Sensors.Set(float64(sensors))
	c.Gateways.Set(float64(gateways))
}

// SetExponent records the exponent without a refit, used at startup.
func (c *LocatorCollector) SetExponent(n float64) {
	if c == nil {
		return
	}
	c.Exponent.Set(n)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

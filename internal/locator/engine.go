// Package locator runs the estimation pipeline: it owns the registry and the
// calibrator, folds reception reports into per-gateway distances and
// multilaterates sensors heard by enough gateways.
package locator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lora-locator/internal/geo"
	"lora-locator/internal/locate"
	"lora-locator/internal/logging"
	"lora-locator/internal/registry"
	"lora-locator/internal/rf"
	"lora-locator/internal/telemetry"
)

var (
	// ErrMalformedReport is returned for reports missing required fields.
	ErrMalformedReport = telemetry.ErrMalformedReport
	// ErrUnknownGateway is returned when a report names a gateway absent from
	// the metadata. The report is discarded before any state changes.
	ErrUnknownGateway = errors.New("unknown gateway")
	// ErrImplausibleDistance is returned when a converted distance exceeds
	// Options.MaxDistanceM.
	ErrImplausibleDistance = errors.New("implausible distance")
)

// Report outcomes used as metric labels.
const (
	OutcomeAccepted       = "accepted"
	OutcomeMalformed      = "malformed"
	OutcomeUnknownGateway = "unknown_gateway"
	OutcomeImplausible    = "implausible"
	OutcomeFailed         = "failed"
)

// Options configures an Engine.
type Options struct {
	ReferencePower  float64
	Exponent        float64
	Fallback        geo.Point
	MinGateways     int
	MaxDistanceM    float64
	PublishInterval time.Duration
	Calibrate       bool
	Calibration     rf.CalibratorOptions
}

// MetricsRecorder receives engine measurements.
type MetricsRecorder interface {
	ObserveReport(outcome string, elapsed time.Duration)
	ObserveFix(ok bool)
	ObserveCalibration(refit bool, exponent float64, samples int)
	SetRegistryCounts(sensors, gateways int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveReport(string, time.Duration)   {}
func (noopMetrics) ObserveFix(bool)                       {}
func (noopMetrics) ObserveCalibration(bool, float64, int) {}
func (noopMetrics) SetRegistryCounts(int, int)            {}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records engine measurements on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunID overrides the generated run id stamped on exported rows.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// WithTracer overrides the tracer used for per-report spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine is the single owner of all mutable estimation state. Process and
// Publish must be called from one goroutine, normally via Run. Snapshot and
// Exponent are safe to call from any goroutine.
type Engine struct {
	runID      string
	opts       Options
	registry   *registry.Registry
	model      *rf.PathLossModel
	calibrator *rf.Calibrator
	writer     EstimateWriter
	metrics    MetricsRecorder
	tracer     trace.Tracer
	now        func() time.Time

	touched  map[string]struct{}
	calRows  []telemetry.CalibrationRow
	snapshot atomic.Pointer[registry.Snapshot]
}

// NewEngine builds an engine. writer may be nil to skip exports.
func NewEngine(opts Options, catalog registry.Catalog, writer EstimateWriter, options ...Option) *Engine {
	if opts.Exponent <= 0 {
		opts.Exponent = rf.DefaultExponent
	}
	if opts.ReferencePower == 0 {
		opts.ReferencePower = rf.DefaultReferencePower
	}
	if opts.MinGateways < locate.MinGateways {
		opts.MinGateways = locate.MinGateways
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = time.Second
	}
	e := &Engine{
		runID:    uuid.New().String(),
		opts:     opts,
		registry: registry.New(catalog, opts.Fallback),
		model:    rf.NewPathLossModel(opts.ReferencePower, opts.Exponent),
		writer:   writer,
		metrics:  noopMetrics{},
		tracer:   otel.Tracer("lora-locator/internal/locator"),
		now:      time.Now,
		touched:  make(map[string]struct{}),
	}
	if opts.Calibrate {
		e.calibrator = rf.NewCalibrator(e.model, opts.Calibration)
	}
	for _, o := range options {
		o(e)
	}
	e.snapshot.Store(e.registry.Snapshot(e.model.Exponent(), 0, e.now().UTC()))
	return e
}

// RunID identifies this engine instance in exported rows.
func (e *Engine) RunID() string { return e.runID }

// Exponent returns the current path-loss exponent.
func (e *Engine) Exponent() float64 { return e.model.Exponent() }

// Snapshot returns the most recently published snapshot. It never returns nil.
func (e *Engine) Snapshot() *registry.Snapshot { return e.snapshot.Load() }

// Process applies one report. Validation, gateway resolution and the
// plausibility check happen before any state is touched, so a rejected report
// leaves the registry and the calibrator unchanged.
// A failed calibration or multilateration does not fail the report.
func (e *Engine) Process(ctx context.Context, r telemetry.Report) error {
	ctx, span := e.tracer.Start(ctx, "locator.Process", trace.WithAttributes(
		attribute.String("sensor_id", r.SensorID),
		attribute.String("gateway_id", r.GatewayID),
		attribute.Float64("rssi", r.RSSI),
	))
	defer span.End()

	start := time.Now()
	err := e.process(ctx, r)
	e.metrics.ObserveReport(Outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Outcome classifies a Process error as a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, ErrMalformedReport):
		return OutcomeMalformed
	case errors.Is(err, ErrUnknownGateway):
		return OutcomeUnknownGateway
	case errors.Is(err, ErrImplausibleDistance):
		return OutcomeImplausible
	default:
		return OutcomeFailed
	}
}

func (e *Engine) process(ctx context.Context, r telemetry.Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	gw, ok := e.registry.GetOrCreateGateway(r.GatewayID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGateway, r.GatewayID)
	}

	// Plausibility is judged against the current model, before the reading
	// touches the sensor or the calibrator.
	if d := e.model.Distance(r.RSSI); e.opts.MaxDistanceM > 0 && d > e.opts.MaxDistanceM {
		return fmt.Errorf("%w: %.0f m to gateway %s", ErrImplausibleDistance, d, gw.ID)
	}

	s := e.registry.GetOrCreateSensor(r.SensorID, r.SensorName)
	s.Packets++
	s.LastSeen = r.ReceivedAt
	if s.LastSeen.IsZero() {
		s.LastSeen = e.now().UTC()
	}
	e.touched[s.ID] = struct{}{}

	if ref, known := s.Reference(); known && e.calibrator != nil {
		e.calibrate(ctx, s, gw, ref, r)
	}

	if n := s.Fold(gw, e.model.Distance(r.RSSI)); n >= e.opts.MinGateways {
		e.solve(ctx, s)
	}
	return nil
}

func (e *Engine) calibrate(ctx context.Context, s *registry.Sensor, gw *registry.Gateway, ref geo.Point, r telemetry.Report) {
	log := logging.FromContext(ctx)
	sample, err := e.calibrator.Ingest(ref, gw.Position, r.RSSI)
	exp := e.model.Exponent()
	e.metrics.ObserveCalibration(err == nil, exp, e.calibrator.Len())
	e.calRows = append(e.calRows, telemetry.CalibrationRow{
		RunID:     e.runID,
		SensorID:  s.ID,
		GatewayID: gw.ID,
		RSSI:      r.RSSI,
		DistanceM: sample.DistanceM,
		Refit:     err == nil,
		Exponent:  exp,
		Samples:   e.calibrator.Len(),
		Timestamp: s.LastSeen,
	})
	switch {
	case err == nil:
		log.Debug("path-loss exponent refit", "exponent", exp, "samples", e.calibrator.Len())
	case errors.Is(err, rf.ErrUnderdetermined):
		log.Debug("calibration waiting for more samples", "sensor_id", s.ID, "err", err)
	default:
		log.Warn("calibration fit failed", "sensor_id", s.ID, "gateway_id", gw.ID, "err", err)
	}
}

func (e *Engine) solve(ctx context.Context, s *registry.Sensor) {
	p, err := locate.Solve(s.Samples())
	e.metrics.ObserveFix(err == nil)
	if err != nil {
		logging.FromContext(ctx).Warn("multilateration failed, keeping previous estimate",
			"sensor_id", s.ID, "gateways", s.Gateways(), "err", err)
		return
	}
	s.SetFix(p)
}

// Publish stores a fresh snapshot for readers and flushes pending rows to the
// writer. It returns the snapshot it stored.
func (e *Engine) Publish(ctx context.Context) *registry.Snapshot {
	log := logging.FromContext(ctx)
	samples := 0
	if e.calibrator != nil {
		samples = e.calibrator.Len()
	}
	snap := e.registry.Snapshot(e.model.Exponent(), samples, e.now().UTC())
	e.snapshot.Store(snap)
	e.metrics.SetRegistryCounts(e.registry.Counts())

	rows := e.estimateRows(snap)
	calRows := e.calRows
	e.touched = make(map[string]struct{})
	e.calRows = nil
	if e.writer == nil {
		return snap
	}

	if err := writeEstimates(e.writer, rows); err != nil {
		log.Error("estimate write failed", "rows", len(rows), "err", err)
	}
	if cw, ok := e.writer.(CalibrationWriter); ok {
		if err := writeCalibrations(cw, calRows); err != nil {
			log.Error("calibration write failed", "rows", len(calRows), "err", err)
		}
	}
	if sw, ok := e.writer.(SnapshotWriter); ok {
		if err := sw.WriteSnapshot(snap); err != nil {
			log.Error("snapshot write failed", "err", err)
		}
	}
	return snap
}

func (e *Engine) estimateRows(snap *registry.Snapshot) []telemetry.EstimateRow {
	ids := make([]string, 0, len(e.touched))
	for id := range e.touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]telemetry.EstimateRow, 0, len(ids))
	for _, id := range ids {
		v, ok := snap.Sensor(id)
		if !ok {
			continue
		}
		row := telemetry.EstimateRow{
			RunID:      e.runID,
			SensorID:   v.ID,
			SensorName: v.Name,
			Lat:        v.Estimate.Lat,
			Lon:        v.Estimate.Lon,
			Known:      v.Known,
			Fixed:      v.Fixed,
			Gateways:   len(v.Links),
			Packets:    v.Packets,
			Exponent:   snap.Exponent,
			Timestamp:  snap.TakenAt,
		}
		if v.ErrorM != nil {
			row.ErrorM = *v.ErrorM
		}
		rows = append(rows, row)
	}
	return rows
}

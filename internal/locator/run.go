package locator

import (
	"context"
	"errors"
	"time"

	"lora-locator/internal/logging"
	"lora-locator/internal/telemetry"
)

// Run consumes reports until the channel closes or ctx is done, publishing a
// snapshot every PublishInterval and once more on the way out.
func (e *Engine) Run(ctx context.Context, reports <-chan telemetry.Report) error {
	log := logging.FromContext(ctx)
	log.Info("starting locator engine",
		"run_id", e.runID,
		"publish_interval", e.opts.PublishInterval,
		"path_loss_exponent", e.model.Exponent(),
		"calibration", e.calibrator != nil,
	)
	ticker := time.NewTicker(e.opts.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-reports:
			if !ok {
				log.Info("report stream closed")
				e.Publish(ctx)
				return nil
			}
			e.handle(ctx, r)
		case <-ticker.C:
			e.Publish(ctx)
		case <-ctx.Done():
			log.Info("stopping locator engine")
			e.Publish(context.WithoutCancel(ctx))
			return nil
		}
	}
}

// handle processes r and logs a rejection at a level matching its cause.
func (e *Engine) handle(ctx context.Context, r telemetry.Report) {
	err := e.Process(ctx, r)
	if err == nil {
		return
	}
	log := logging.FromContext(ctx)
	switch {
	case errors.Is(err, ErrMalformedReport):
		log.Info("discarding malformed report", "err", err)
	case errors.Is(err, ErrUnknownGateway):
		log.Warn("discarding report from unknown gateway", "sensor_id", r.SensorID, "gateway_id", r.GatewayID)
	case errors.Is(err, ErrImplausibleDistance):
		log.Info("discarding implausible reading", "sensor_id", r.SensorID, "rssi", r.RSSI, "err", err)
	default:
		log.Error("report processing failed", "sensor_id", r.SensorID, "err", err)
	}
}

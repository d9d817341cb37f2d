package ingest

import (
	"context"
	"time"

	"lora-locator/internal/logging"
	"lora-locator/internal/telemetry"
)

// reportGenerator is satisfied by *telemetry.Generator.
type reportGenerator interface {
	Tick() []telemetry.Report
}

// SyntheticSource emits one generator tick every Tick until ctx is done, or
// until Ticks ticks when Ticks > 0.
type SyntheticSource struct {
	Generator reportGenerator
	Tick      time.Duration
	Ticks     int
}

// NewSyntheticSource drives gen every tick.
func NewSyntheticSource(gen *telemetry.Generator, tick time.Duration) *SyntheticSource {
	return &SyntheticSource{Generator: gen, Tick: tick}
}

// Run implements Source.
func (s *SyntheticSource) Run(ctx context.Context, out chan<- telemetry.Report) error {
	tick := s.Tick
	if tick <= 0 {
		tick = time.Second
	}
	log := logging.FromContext(ctx)
	log.Info("starting synthetic feed", "tick", tick)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for n := 1; ; n++ {
		for _, r := range s.Generator.Tick() {
			if err := send(ctx, out, r); err != nil {
				return nil
			}
		}
		if s.Ticks > 0 && n >= s.Ticks {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
	log.Info("synthetic feed finished", "ticks", s.Ticks)
	return nil
}

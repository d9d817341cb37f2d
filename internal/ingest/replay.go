package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"lora-locator/internal/logging"
	"lora-locator/internal/telemetry"
)

// ReplaySource replays a JSONL capture of wire messages. A speed >0 paces
// playback by the messages' time fields, accelerated by that factor. If
// speed <= 0, no artificial delay is inserted.
type ReplaySource struct {
	Path  string
	Speed float64

	reader io.Reader
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewReplaySource replays the capture at path.
func NewReplaySource(path string, speed float64) *ReplaySource {
	return &ReplaySource{Path: path, Speed: speed}
}

// NewReplayReader replays a capture from r.
func NewReplayReader(r io.Reader, speed float64) *ReplaySource {
	return &ReplaySource{reader: r, Speed: speed}
}

// Run implements Source. Malformed lines are logged and skipped.
func (s *ReplaySource) Run(ctx context.Context, out chan<- telemetry.Report) error {
	r := s.reader
	if r == nil {
		f, err := os.Open(s.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	now := s.now
	if now == nil {
		now = time.Now
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	log := logging.FromContext(ctx)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var prev time.Time
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		rep, err := DecodeReport(data, now().UTC())
		if err != nil {
			log.Info("skipping replay line", "line", line, "err", err)
			continue
		}
		if !prev.IsZero() && s.Speed > 0 {
			diff := rep.ReceivedAt.Sub(prev)
			if s.Speed != 1 {
				diff = time.Duration(float64(diff) / s.Speed)
			}
			if diff > 0 {
				if err := sleep(ctx, diff); err != nil {
					return nil
				}
			}
		}
		if err := send(ctx, out, rep); err != nil {
			return nil
		}
		prev = rep.ReceivedAt
	}
	if err := sc.Err(); err != nil {
		return err
	}
	log.Info("replay finished", "lines", line)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

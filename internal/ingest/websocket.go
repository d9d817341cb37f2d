package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"lora-locator/internal/logging"
	"lora-locator/internal/telemetry"
)

// ErrSourceLost is returned when the feed connection fails and reconnecting
// is disabled.
var ErrSourceLost = errors.New("source lost")

// WebsocketSource reads wire messages from a websocket feed. After a dial or
// read error it reconnects after ReconnectDelay; a zero delay makes the first
// failure fatal.
type WebsocketSource struct {
	URL            string
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer

	now func() time.Time
}

// NewWebsocketSource creates a source for url.
func NewWebsocketSource(url string, reconnectDelay time.Duration) *WebsocketSource {
	return &WebsocketSource{URL: url, ReconnectDelay: reconnectDelay, Dialer: websocket.DefaultDialer}
}

// Run implements Source.
func (s *WebsocketSource) Run(ctx context.Context, out chan<- telemetry.Report) error {
	log := logging.FromContext(ctx)
	for {
		err := s.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		if s.ReconnectDelay <= 0 {
			return fmt.Errorf("%w: %s: %v", ErrSourceLost, s.URL, err)
		}
		log.Warn("feed connection lost, reconnecting", "url", s.URL, "delay", s.ReconnectDelay, "err", err)
		if sleepCtx(ctx, s.ReconnectDelay) != nil {
			return nil
		}
	}
}

// session holds one connection until it fails or ctx ends.
func (s *WebsocketSource) session(ctx context.Context, out chan<- telemetry.Report) error {
	log := logging.FromContext(ctx)
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	now := s.now
	if now == nil {
		now = time.Now
	}

	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Info("connected to feed", "url", s.URL)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		r, err := DecodeReport(data, now().UTC())
		if err != nil {
			log.Info("failed to decode feed message, waiting for the next one", "err", err)
			continue
		}
		if err := send(ctx, out, r); err != nil {
			return err
		}
	}
}

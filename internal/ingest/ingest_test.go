package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lora-locator/internal/telemetry"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeReportNormalizesIDs(t *testing.T) {
	r, err := DecodeReport([]byte(`{"device_eui":"a8:17:58:ff:fe:03:12:e0","device_name":"desk","gateway":"00-80-00-00-a0-00-0f-4d","rssi":-97.5}`), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SensorID != "A81758FFFE0312E0" || r.GatewayID != "00800000A0000F4D" {
		t.Fatalf("ids not normalized: %+v", r)
	}
	if r.RSSI != -97.5 || r.SensorName != "desk" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if !r.ReceivedAt.Equal(now) {
		t.Fatalf("missing time should default to now, got %v", r.ReceivedAt)
	}
}

func TestDecodeReportUsesMessageTime(t *testing.T) {
	r, err := DecodeReport([]byte(`{"device_eui":"A","gateway":"G","rssi":-80,"time":"2024-05-01T13:00:00+01:00"}`), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !r.ReceivedAt.Equal(now) || r.ReceivedAt.Location() != time.UTC {
		t.Fatalf("time = %v", r.ReceivedAt)
	}
}

func TestDecodeReportRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"device_eui":`,
		"missing rssi":   `{"device_eui":"A","gateway":"G"}`,
		"missing sensor": `{"gateway":"G","rssi":-80}`,
		"missing gw":     `{"device_eui":"A","rssi":-80}`,
		"string rssi":    `{"device_eui":"A","gateway":"G","rssi":"loud"}`,
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeReport([]byte(msg), now); !errors.Is(err, ErrMalformedReport) {
				t.Fatalf("err = %v, want ErrMalformedReport", err)
			}
		})
	}
}

func collect(t *testing.T, src Source) ([]telemetry.Report, error) {
	t.Helper()
	out := make(chan telemetry.Report, 100)
	err := src.Run(context.Background(), out)
	close(out)
	var got []telemetry.Report
	for r := range out {
		got = append(got, r)
	}
	return got, err
}

func TestReplaySkipsBadLines(t *testing.T) {
	capture := strings.Join([]string{
		`{"device_eui":"A","gateway":"G1","rssi":-70,"time":"2024-05-01T12:00:00Z"}`,
		`garbage`,
		``,
		`{"device_eui":"B","gateway":"G2","rssi":-75,"time":"2024-05-01T12:00:01Z"}`,
	}, "\n")
	src := NewReplayReader(strings.NewReader(capture), 0)

	got, err := collect(t, src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 2 || got[0].SensorID != "A" || got[1].SensorID != "B" {
		t.Fatalf("unexpected reports: %+v", got)
	}
}

func TestReplayPacesBySpeed(t *testing.T) {
	capture := `{"device_eui":"A","gateway":"G1","rssi":-70,"time":"2024-05-01T12:00:00Z"}
{"device_eui":"A","gateway":"G1","rssi":-70,"time":"2024-05-01T12:00:10Z"}
`
	var slept []time.Duration
	src := NewReplayReader(strings.NewReader(capture), 5)
	src.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	if _, err := collect(t, src); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("slept %v, want [2s]", slept)
	}
}

func TestReplayMissingFile(t *testing.T) {
	src := NewReplaySource(t.TempDir()+"/missing.jsonl", 1)
	if _, err := collect(t, src); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type fixedGenerator struct{ calls int }

func (f *fixedGenerator) Tick() []telemetry.Report {
	f.calls++
	return []telemetry.Report{{SensorID: "S", GatewayID: "G1", RSSI: -70}}
}

func TestSyntheticSourceStopsAfterTicks(t *testing.T) {
	gen := &fixedGenerator{}
	src := &SyntheticSource{Generator: gen, Tick: time.Millisecond, Ticks: 3}
	got, err := collect(t, src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gen.calls != 3 || len(got) != 3 {
		t.Fatalf("calls=%d reports=%d", gen.calls, len(got))
	}
}

var upgrader = websocket.Upgrader{}

func feedServer(t *testing.T, msgs []string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		conns.Add(1)
		for _, m := range msgs {
			if err := c.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketSourceFatalWithoutReconnect(t *testing.T) {
	srv, _ := feedServer(t, []string{
		`{"device_eui":"A","gateway":"G1","rssi":-70}`,
		`not json`,
		`{"device_eui":"B","gateway":"G2","rssi":-71}`,
	})
	src := NewWebsocketSource(wsURL(srv), 0)

	got, err := collect(t, src)
	if !errors.Is(err, ErrSourceLost) {
		t.Fatalf("err = %v, want ErrSourceLost", err)
	}
	if len(got) != 2 || got[1].SensorID != "B" {
		t.Fatalf("unexpected reports: %+v", got)
	}
}

func TestWebsocketSourceReconnects(t *testing.T) {
	srv, conns := feedServer(t, []string{`{"device_eui":"A","gateway":"G1","rssi":-70}`})
	src := NewWebsocketSource(wsURL(srv), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan telemetry.Report, 100)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	deadline := time.After(5 * time.Second)
	for conns.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("no reconnect, connections = %d", conns.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("no reports forwarded")
	}
}

func TestWebsocketSourceDialFailure(t *testing.T) {
	src := NewWebsocketSource("ws://127.0.0.1:1/feed", 0)
	if _, err := collect(t, src); !errors.Is(err, ErrSourceLost) {
		t.Fatalf("err = %v, want ErrSourceLost", err)
	}
}

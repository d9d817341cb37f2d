package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lora-locator/internal/geo"
	"lora-locator/internal/registry"
)

type staticSource struct{ snap *registry.Snapshot }

func (s staticSource) Snapshot() *registry.Snapshot { return s.snap }

func testSnapshot() *registry.Snapshot {
	errM := 4.5
	return &registry.Snapshot{
		TakenAt:            time.Unix(0, 0).UTC(),
		Exponent:           2.6,
		CalibrationSamples: 12,
		MeanErrorM:         &errM,
		Sensors: []registry.SensorView{
			{ID: "A81758FFFE0312E0", Name: "desk", Estimate: geo.Point{Lat: 52.232, Lon: 6.862}, Fixed: true},
			{ID: "B000000000000001", Estimate: geo.Point{Lat: 52.2394, Lon: 6.8565}},
		},
		Gateways: []registry.GatewayView{
			{ID: "G1", Position: geo.Point{Lat: 52.23, Lon: 6.86}, Sensors: 2},
		},
	}
}

func serve(t *testing.T, s *Server, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleSnapshot(t *testing.T) {
	s := NewServer(staticSource{testSnapshot()}, Options{})
	w := serve(t, s, http.MethodGet, "/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got registry.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Exponent != 2.6 || len(got.Sensors) != 2 || len(got.Gateways) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestHandleSensorNormalizesID(t *testing.T) {
	s := NewServer(staticSource{testSnapshot()}, Options{})
	w := serve(t, s, http.MethodGet, "/sensors/a8:17:58:ff:fe:03:12:e0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got registry.SensorView
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "desk" || !got.Fixed {
		t.Fatalf("unexpected sensor: %+v", got)
	}

	w = serve(t, s, http.MethodGet, "/sensors/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status NotFound, got %v", w.Code)
	}
}

func TestHandleCalibration(t *testing.T) {
	s := NewServer(staticSource{testSnapshot()}, Options{})
	w := serve(t, s, http.MethodGet, "/calibration", nil)
	var got map[string]float64
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["path_loss_exponent"] != 2.6 || got["samples"] != 12 || got["mean_error_m"] != 4.5 {
		t.Fatalf("unexpected calibration: %v", got)
	}
}

func TestHandleIndexRendersMap(t *testing.T) {
	s := NewServer(staticSource{testSnapshot()}, Options{})
	w := serve(t, s, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "leaflet") || !strings.Contains(body, "2.600") {
		t.Fatalf("index missing map or exponent")
	}
	if w := serve(t, s, http.MethodGet, "/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status NotFound for unknown path, got %v", w.Code)
	}
}

func TestMetricsRouteOptional(t *testing.T) {
	s := NewServer(staticSource{testSnapshot()}, Options{})
	if w := serve(t, s, http.MethodGet, "/metrics", nil); w.Code != http.StatusNotFound {
		t.Errorf("metrics served without handler: %v", w.Code)
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("locator_sensors 2\n")) })
	s = NewServer(staticSource{testSnapshot()}, Options{Metrics: metrics})
	w := serve(t, s, http.MethodGet, "/metrics", nil)
	if !strings.Contains(w.Body.String(), "locator_sensors") {
		t.Fatalf("metrics not served: %q", w.Body.String())
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	s := NewServer(staticSource{testSnapshot()}, Options{AllowedOrigins: []string{"http://dashboard.local"}})
	w := serve(t, s, http.MethodGet, "/snapshot", map[string]string{"Origin": "http://dashboard.local"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Fatalf("allow origin = %q", got)
	}
	w = serve(t, s, http.MethodGet, "/snapshot", map[string]string{"Origin": "http://evil.local"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	var states []bool
	s := NewServer(staticSource{testSnapshot()}, Options{OnStatus: func(a bool) { states = append(states, a) }})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/calibration")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server not reachable: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("status transitions = %v", states)
	}
}

package telemetry

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"lora-locator/internal/geo"
	"lora-locator/internal/metadata"
	"lora-locator/internal/rf"
)

func testCatalog() *metadata.Catalog {
	return metadata.NewCatalog(
		[]metadata.GatewayRecord{
			{ID: "G1", Position: geo.Point{Lat: 52.230, Lon: 6.860}},
			{ID: "G2", Position: geo.Point{Lat: 52.235, Lon: 6.860}},
			{ID: "G3", Position: geo.Point{Lat: 52.232, Lon: 6.868}},
		},
		[]metadata.SensorRecord{
			{ID: "S1", Room: "Lab", Reference: geo.Point{Lat: 52.232, Lon: 6.862}, HasReference: true},
			{ID: "S2", Room: "Hall"},
		},
	)
}

func TestGeneratorNoiselessReportsFollowModel(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	gen := NewGenerator(GeneratorConfig{ReferencePower: -40, Exponent: 2.7}, testCatalog(), rand.New(rand.NewSource(1)), func() time.Time { return ts })

	reports := gen.Tick()
	if len(reports) != 6 {
		t.Fatalf("got %d reports, want 6", len(reports))
	}
	model := rf.NewPathLossModel(-40, 2.7)
	for _, r := range reports {
		if !r.ReceivedAt.Equal(ts) {
			t.Errorf("timestamp = %v, want %v", r.ReceivedAt, ts)
		}
		if r.SensorID != "S1" {
			continue
		}
		var gwPos geo.Point
		for _, g := range testCatalog().Gateways() {
			if g.ID == r.GatewayID {
				gwPos = g.Position
			}
		}
		want := model.RSSIAt(geo.DistanceMeters(geo.Point{Lat: 52.232, Lon: 6.862}, gwPos))
		if math.Abs(r.RSSI-want) > 0.051 {
			t.Errorf("rssi to %s = %v, want %v", r.GatewayID, r.RSSI, want)
		}
	}
}

func TestGeneratorMaxRangeDropsFarGateways(t *testing.T) {
	gen := NewGenerator(GeneratorConfig{MaxRangeM: 300}, testCatalog(), rand.New(rand.NewSource(1)), nil)
	for _, r := range gen.Tick() {
		if r.SensorID == "S1" && r.GatewayID == "G3" {
			t.Fatalf("gateway beyond range reported")
		}
	}
}

func TestGeneratorMobileSensorsStayNearGateways(t *testing.T) {
	gen := NewGenerator(GeneratorConfig{MobileSensors: 3, SpeedMinMPS: 20, SpeedMaxMPS: 40}, testCatalog(), rand.New(rand.NewSource(7)), nil)
	start := gen.Transmitters()
	for i := 0; i < 200; i++ {
		gen.Tick()
	}
	end := gen.Transmitters()
	center := geo.Centroid([]geo.Point{{Lat: 52.230, Lon: 6.860}, {Lat: 52.235, Lon: 6.860}, {Lat: 52.232, Lon: 6.868}})
	moved := 0
	for i, tr := range end {
		if !tr.Mobile {
			if tr.Position != start[i].Position {
				t.Fatalf("static transmitter %s moved", tr.ID)
			}
			continue
		}
		if tr.Position != start[i].Position {
			moved++
		}
		if d := geo.DistanceMeters(center, tr.Position); d > 1500 {
			t.Fatalf("walker %s wandered %.0f m away", tr.ID, d)
		}
	}
	if moved != 3 {
		t.Fatalf("moved = %d, want 3", moved)
	}
}

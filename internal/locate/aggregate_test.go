package locate

import (
	"math"
	"testing"

	"lora-locator/internal/geo"
)

var gwPos = geo.Point{Lat: 52.23, Lon: 6.86}

func TestFoldSameDistanceIsIdempotent(t *testing.T) {
	a := NewAggregate()
	for i := 0; i < 25; i++ {
		a.Fold("G1", gwPos, 137.5)
	}
	avg, ok := a.Average("G1")
	if !ok {
		t.Fatalf("average missing")
	}
	if avg.MeanM != 137.5 || avg.Count != 25 {
		t.Fatalf("average = %+v, want mean 137.5 count 25", avg)
	}
}

func TestFoldOrderIndependent(t *testing.T) {
	ds := []float64{12, 480, 77.5, 1300, 5, 260}
	forward := NewAggregate()
	for _, d := range ds {
		forward.Fold("G1", gwPos, d)
	}
	backward := NewAggregate()
	for i := len(ds) - 1; i >= 0; i-- {
		backward.Fold("G1", gwPos, ds[i])
	}
	var sum float64
	for _, d := range ds {
		sum += d
	}
	want := sum / float64(len(ds))
	f, _ := forward.Average("G1")
	b, _ := backward.Average("G1")
	if math.Abs(f.MeanM-want) > 1e-9 || math.Abs(b.MeanM-want) > 1e-9 {
		t.Fatalf("means %v / %v, want %v", f.MeanM, b.MeanM, want)
	}
}

func TestFoldCountsDistinctGatewaysInFirstHeardOrder(t *testing.T) {
	a := NewAggregate()
	if n := a.Fold("B", gwPos, 1); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	a.Fold("A", gwPos, 2)
	if n := a.Fold("B", gwPos, 3); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	ids := a.GatewayIDs()
	if len(ids) != 2 || ids[0] != "B" || ids[1] != "A" {
		t.Fatalf("order = %v, want [B A]", ids)
	}
	s := a.Samples()
	if s[0].GatewayID != "B" || s[0].DistanceM != 2 {
		t.Fatalf("first sample = %+v", s[0])
	}
}

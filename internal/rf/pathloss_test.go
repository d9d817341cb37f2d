package rf

import (
	"math"
	"sync"
	"testing"
)

func TestDistanceMonotonic(t *testing.T) {
	m := NewPathLossModel(DefaultReferencePower, DefaultExponent)
	prev := m.Distance(-30)
	for rssi := -31.0; rssi >= -130; rssi-- {
		d := m.Distance(rssi)
		if d <= prev {
			t.Fatalf("distance not increasing as rssi drops: d(%v)=%v <= %v", rssi, d, prev)
		}
		prev = d
	}
}

func TestDistanceAtReferencePower(t *testing.T) {
	m := NewPathLossModel(-40, 2.7)
	if got := m.Distance(-40); got != 1 {
		t.Fatalf("Distance(P0) = %v, want 1", got)
	}
	if got := m.Distance(-30); got >= 1 {
		t.Fatalf("Distance above P0 = %v, want < 1", got)
	}
}

func TestRSSIAtInvertsDistance(t *testing.T) {
	m := NewPathLossModel(-40, 3.1)
	for _, d := range []float64{1, 12.5, 250, 4000} {
		if got := m.Distance(m.RSSIAt(d)); math.Abs(got-d) > 1e-9*d {
			t.Fatalf("Distance(RSSIAt(%v)) = %v", d, got)
		}
	}
}

func TestExponentConcurrentReads(t *testing.T) {
	m := NewPathLossModel(-40, 2)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if n := m.Exponent(); n != 2 && n != 3 {
					t.Errorf("torn exponent read: %v", n)
					return
				}
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		m.setExponent(float64(2 + j%2))
	}
	wg.Wait()
}

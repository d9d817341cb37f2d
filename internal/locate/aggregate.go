// Package locate turns per-gateway distance estimates into a position fix.
package locate

import "lora-locator/internal/geo"

// Average is the running mean distance from one sensor to one gateway.
type Average struct {
	Gateway geo.Point `json:"gateway"`
	MeanM   float64   `json:"mean_m"`
	Count   int       `json:"count"`
}

// Sample is a solver input: a gateway position and the estimated range to it.
type Sample struct {
	GatewayID string
	Position  geo.Point
	DistanceM float64
}

// Aggregate keeps one Average per gateway that has heard a sensor. Gateways
// are remembered in the order they were first heard and are never removed.
type Aggregate struct {
	order []string
	links map[string]*Average
}

// NewAggregate returns an empty Aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{links: make(map[string]*Average)}
}

// Fold merges distance into the running mean for gatewayID and returns the
// number of distinct gateways now tracked.
func (a *Aggregate) Fold(gatewayID string, gateway geo.Point, distance float64) int {
	avg, ok := a.links[gatewayID]
	if !ok {
		a.links[gatewayID] = &Average{Gateway: gateway, MeanM: distance, Count: 1}
		a.order = append(a.order, gatewayID)
		return len(a.order)
	}
	// Same value as (mean*count + d) / (count+1) without growing the product.
	avg.Count++
	avg.MeanM += (distance - avg.MeanM) / float64(avg.Count)
	return len(a.order)
}

// Len returns the number of distinct gateways.
func (a *Aggregate) Len() int { return len(a.order) }

// Average returns the entry for gatewayID.
func (a *Aggregate) Average(gatewayID string) (Average, bool) {
	avg, ok := a.links[gatewayID]
	if !ok {
		return Average{}, false
	}
	return *avg, true
}

// GatewayIDs returns gateway ids in first-heard order.
func (a *Aggregate) GatewayIDs() []string {
	return append([]string(nil), a.order...)
}

// Samples returns the solver inputs in first-heard order.
func (a *Aggregate) Samples() []Sample {
	out := make([]Sample, 0, len(a.order))
	for _, id := range a.order {
		avg := a.links[id]
		out = append(out, Sample{GatewayID: id, Position: avg.Gateway, DistanceM: avg.MeanM})
	}
	return out
}

// Package registry holds the gateway and sensor records the engine mutates
// and produces immutable snapshots of them for readers.
package registry

import (
	"time"

	"lora-locator/internal/geo"
	"lora-locator/internal/locate"
	"lora-locator/internal/metadata"
)

// Catalog supplies creation defaults for identifiers seen for the first time.
type Catalog interface {
	Gateway(id string) (metadata.GatewayRecord, bool)
	Sensor(id string) (metadata.SensorRecord, bool)
}

// Gateway is a fixed receiver. It is immutable once created.
type Gateway struct {
	ID        string
	Name      string
	Position  geo.Point
	AltitudeM float64
}

// Sensor is a transmitting device whose position is being estimated.
type Sensor struct {
	ID       string
	Name     string
	Room     string
	Estimate geo.Point
	// Fixed is true once Estimate came from a successful multilateration.
	Fixed    bool
	Packets  int
	LastSeen time.Time

	reference geo.Point
	known     bool
	links     *locate.Aggregate
}

// Reference returns the surveyed position of a known sensor.
func (s *Sensor) Reference() (geo.Point, bool) { return s.reference, s.known }

// Fold records a distance estimate to a gateway and returns the number of
// distinct gateways that have heard the sensor.
func (s *Sensor) Fold(gw *Gateway, distance float64) int {
	return s.links.Fold(gw.ID, gw.Position, distance)
}

// Gateways returns the number of distinct gateways that have heard the sensor.
func (s *Sensor) Gateways() int { return s.links.Len() }

// Samples returns the per-gateway averages as solver input.
func (s *Sensor) Samples() []locate.Sample { return s.links.Samples() }

// SetFix replaces the estimate with a multilateration result.
func (s *Sensor) SetFix(p geo.Point) {
	s.Estimate = p
	s.Fixed = true
}

// ErrorM returns the distance between the estimate and the surveyed position.
// ok is false for unknown sensors.
func (s *Sensor) ErrorM() (float64, bool) {
	if !s.known {
		return 0, false
	}
	return geo.DistanceMeters(s.Estimate, s.reference), true
}

// Registry indexes sensors and gateways by normalized id. It is not safe for
// concurrent use; a single owner mutates it and hands out Snapshots.
type Registry struct {
	catalog  Catalog
	fallback geo.Point
	sensors  map[string]*Sensor
	gateways map[string]*Gateway
}

// New returns an empty Registry. Unknown sensors start at fallback.
func New(catalog Catalog, fallback geo.Point) *Registry {
	return &Registry{
		catalog:  catalog,
		fallback: fallback,
		sensors:  make(map[string]*Sensor),
		gateways: make(map[string]*Gateway),
	}
}

// GetOrCreateGateway returns the gateway for id, creating it from the catalog
// on first reference. ok is false when the catalog does not know the id.
func (r *Registry) GetOrCreateGateway(id string) (*Gateway, bool) {
	if gw, ok := r.gateways[id]; ok {
		return gw, true
	}
	rec, ok := r.catalog.Gateway(id)
	if !ok {
		return nil, false
	}
	gw := &Gateway{ID: id, Name: rec.Name, Position: rec.Position, AltitudeM: rec.AltitudeM}
	r.gateways[id] = gw
	return gw, true
}

// GetOrCreateSensor returns the sensor for id, creating it on first
// reference. A new sensor is known when the catalog carries a surveyed
// position for it.
func (r *Registry) GetOrCreateSensor(id, name string) *Sensor {
	if s, ok := r.sensors[id]; ok {
		if s.Name == "" && name != "" {
			s.Name = name
		}
		return s
	}
	s := &Sensor{ID: id, Name: name, Estimate: r.fallback, links: locate.NewAggregate()}
	if rec, ok := r.catalog.Sensor(id); ok {
		s.Room = rec.Room
		if rec.HasReference {
			s.reference, s.known = rec.Reference, true
			s.Estimate = rec.Reference
		}
	}
	r.sensors[id] = s
	return s
}

// Lookup returns an existing sensor without creating it.
func (r *Registry) Lookup(id string) (*Sensor, bool) {
	s, ok := r.sensors[id]
	return s, ok
}

// Counts returns the number of registered sensors and gateways.
func (r *Registry) Counts() (sensors, gateways int) {
	return len(r.sensors), len(r.gateways)
}

package registry

import (
	"sort"
	"time"

	"lora-locator/internal/geo"
)

// Snapshot is an immutable copy of the registry for presentation.
type Snapshot struct {
	TakenAt            time.Time     `json:"taken_at"`
	Exponent           float64       `json:"path_loss_exponent"`
	CalibrationSamples int           `json:"calibration_samples"`
	MeanErrorM         *float64      `json:"mean_error_m,omitempty"`
	Sensors            []SensorView  `json:"sensors"`
	Gateways           []GatewayView `json:"gateways"`
}

// SensorView is the presentation form of a Sensor.
type SensorView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Room      string     `json:"room,omitempty"`
	Known     bool       `json:"known"`
	Reference *geo.Point `json:"reference,omitempty"`
	Estimate  geo.Point  `json:"estimate"`
	Fixed     bool       `json:"fixed"`
	ErrorM    *float64   `json:"error_m,omitempty"`
	Packets   int        `json:"packets"`
	LastSeen  time.Time  `json:"last_seen"`
	Links     []LinkView `json:"links"`
}

// LinkView is one per-gateway running average.
type LinkView struct {
	GatewayID string  `json:"gateway_id"`
	MeanM     float64 `json:"mean_m"`
	Count     int     `json:"count"`
}

// GatewayView is the presentation form of a Gateway with its connectivity.
type GatewayView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Position  geo.Point `json:"position"`
	AltitudeM float64   `json:"altitude_m"`
	Sensors   int       `json:"sensors"`
}

// Sensor returns the view for id.
func (s *Snapshot) Sensor(id string) (SensorView, bool) {
	i := sort.Search(len(s.Sensors), func(i int) bool { return s.Sensors[i].ID >= id })
	if i < len(s.Sensors) && s.Sensors[i].ID == id {
		return s.Sensors[i], true
	}
	return SensorView{}, false
}

// View builds the presentation form of one sensor.
func (s *Sensor) View() SensorView {
	v := SensorView{
		ID:       s.ID,
		Name:     s.Name,
		Room:     s.Room,
		Known:    s.known,
		Estimate: s.Estimate,
		Fixed:    s.Fixed,
		Packets:  s.Packets,
		LastSeen: s.LastSeen,
	}
	if s.known {
		ref := s.reference
		v.Reference = &ref
		if s.Fixed {
			e, _ := s.ErrorM()
			v.ErrorM = &e
		}
	}
	for _, id := range s.links.GatewayIDs() {
		avg, _ := s.links.Average(id)
		v.Links = append(v.Links, LinkView{GatewayID: id, MeanM: avg.MeanM, Count: avg.Count})
	}
	return v
}

// Snapshot copies the registry. Sensors and gateways are sorted by id.
func (r *Registry) Snapshot(exponent float64, calibrationSamples int, at time.Time) *Snapshot {
	snap := &Snapshot{
		TakenAt:            at,
		Exponent:           exponent,
		CalibrationSamples: calibrationSamples,
		Sensors:            make([]SensorView, 0, len(r.sensors)),
		Gateways:           make([]GatewayView, 0, len(r.gateways)),
	}
	heard := make(map[string]int, len(r.gateways))
	var errSum float64
	var errN int
	for _, s := range r.sensors {
		v := s.View()
		for _, l := range v.Links {
			heard[l.GatewayID]++
		}
		if v.ErrorM != nil {
			errSum += *v.ErrorM
			errN++
		}
		snap.Sensors = append(snap.Sensors, v)
	}
	for _, g := range r.gateways {
		snap.Gateways = append(snap.Gateways, GatewayView{
			ID:        g.ID,
			Name:      g.Name,
			Position:  g.Position,
			AltitudeM: g.AltitudeM,
			Sensors:   heard[g.ID],
		})
	}
	if errN > 0 {
		mean := errSum / float64(errN)
		snap.MeanErrorM = &mean
	}
	sort.Slice(snap.Sensors, func(i, j int) bool { return snap.Sensors[i].ID < snap.Sensors[j].ID })
	sort.Slice(snap.Gateways, func(i, j int) bool { return snap.Gateways[i].ID < snap.Gateways[j].ID })
	return snap
}

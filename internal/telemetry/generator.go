package telemetry

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"lora-locator/internal/geo"
	"lora-locator/internal/metadata"
	"lora-locator/internal/rf"
)

// GeneratorConfig tunes the synthetic radio environment.
type GeneratorConfig struct {
	ReferencePower float64 // P0 in dBm at 1 m
	Exponent       float64 // path-loss exponent of the simulated environment
	NoiseDB        float64 // standard deviation of the shadowing term
	MaxRangeM      float64 // gateways farther away never hear a transmission
	MobileSensors  int     // extra unknown sensors random-walking among the gateways
	SpeedMinMPS    float64
	SpeedMaxMPS    float64
}

// Transmitter is a simulated sensor and its true position.
type Transmitter struct {
	ID       string
	Name     string
	Position geo.Point
	Known    bool
	Mobile   bool
}

// Generator produces reception reports for a set of transmitters heard by the
// gateways of a catalog.
type Generator struct {
	cfg          GeneratorConfig
	model        *rf.PathLossModel
	gateways     []metadata.GatewayRecord
	transmitters []*Transmitter
	center       geo.Point
	radiusM      float64
	rng          *rand.Rand
	now          func() time.Time
}

// NewGenerator builds a generator. Catalog sensors with a surveyed position
// transmit from it; sensors without one get a random static position inside
// the gateway area. cfg.MobileSensors additional sensors random-walk.
func NewGenerator(cfg GeneratorConfig, catalog *metadata.Catalog, rng *rand.Rand, now func() time.Time) *Generator {
	if cfg.Exponent <= 0 {
		cfg.Exponent = rf.DefaultExponent
	}
	if cfg.ReferencePower == 0 {
		cfg.ReferencePower = rf.DefaultReferencePower
	}
	if cfg.SpeedMaxMPS < cfg.SpeedMinMPS {
		cfg.SpeedMaxMPS = cfg.SpeedMinMPS
	}
	if now == nil {
		now = time.Now
	}
	g := &Generator{
		cfg:      cfg,
		model:    rf.NewPathLossModel(cfg.ReferencePower, cfg.Exponent),
		gateways: catalog.Gateways(),
		rng:      rng,
		now:      now,
	}

	positions := make([]geo.Point, 0, len(g.gateways))
	for _, gw := range g.gateways {
		positions = append(positions, gw.Position)
	}
	g.center = geo.Centroid(positions)
	for _, p := range positions {
		g.radiusM = math.Max(g.radiusM, geo.DistanceMeters(g.center, p))
	}

	for _, s := range catalog.Sensors() {
		t := &Transmitter{ID: s.ID, Name: s.Room, Known: s.HasReference, Position: s.Reference}
		if !s.HasReference {
			t.Position = g.randomPosition()
		}
		g.transmitters = append(g.transmitters, t)
	}
	for i := 0; i < cfg.MobileSensors; i++ {
		g.transmitters = append(g.transmitters, &Transmitter{
			ID:       fmt.Sprintf("51AB0000%08X", i+1),
			Name:     fmt.Sprintf("walker-%d", i+1),
			Position: g.randomPosition(),
			Mobile:   true,
		})
	}
	return g
}

// Transmitters returns a copy of the simulated sensors and their true positions.
func (g *Generator) Transmitters() []Transmitter {
	out := make([]Transmitter, len(g.transmitters))
	for i, t := range g.transmitters {
		out[i] = *t
	}
	return out
}

// Tick moves the mobile sensors and returns one report per transmitter and
// gateway pair within range.
func (g *Generator) Tick() []Report {
	ts := g.now().UTC()
	var out []Report
	for _, t := range g.transmitters {
		if t.Mobile {
			t.Position = g.randomWalk(t.Position)
		}
		for _, gw := range g.gateways {
			d := geo.DistanceMeters(t.Position, gw.Position)
			if g.cfg.MaxRangeM > 0 && d > g.cfg.MaxRangeM {
				continue
			}
			rssi := g.model.RSSIAt(math.Max(d, 1))
			if g.cfg.NoiseDB > 0 {
				rssi += g.rng.NormFloat64() * g.cfg.NoiseDB
			}
			out = append(out, Report{
				SensorID:   t.ID,
				SensorName: t.Name,
				GatewayID:  gw.ID,
				RSSI:       math.Round(rssi*10) / 10,
				ReceivedAt: ts,
			})
		}
	}
	return out
}

func (g *Generator) randomPosition() geo.Point {
	angle := g.rng.Float64() * 2 * math.Pi
	r := math.Sqrt(g.rng.Float64()) * g.radiusM
	return geo.Offset(g.center, r*math.Cos(angle), r*math.Sin(angle))
}

// randomWalk moves a transmitter in a pseudo-random direction and turns it
// back toward the gateway area once it strays outside.
func (g *Generator) randomWalk(pos geo.Point) geo.Point {
	heading := g.rng.Float64() * 2 * math.Pi
	if g.radiusM > 0 && geo.DistanceMeters(g.center, pos) > g.radiusM {
		pr := geo.NewProjection(g.center)
		x, y := pr.Forward(pos)
		heading = math.Atan2(-x, -y)
	}
	speed := g.cfg.SpeedMinMPS + g.rng.Float64()*(g.cfg.SpeedMaxMPS-g.cfg.SpeedMinMPS)
	return geo.Offset(pos, speed*math.Cos(heading), speed*math.Sin(heading))
}

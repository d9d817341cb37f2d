// Package metadata loads the gateway and sensor inventories that the engine
// consults when it first sees an identifier.
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"lora-locator/internal/geo"
)

// ErrMissingColumn is returned when a required CSV header is absent.
var ErrMissingColumn = errors.New("missing column")

// GatewayRecord is one row of the gateway inventory.
type GatewayRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  geo.Point `json:"position"`
	AltitudeM float64   `json:"altitude_m"`
}

// SensorRecord is one row of the sensor inventory. HasReference is false when
// the surveyed coordinates are missing, which makes the sensor unknown.
type SensorRecord struct {
	ID           string    `json:"id"`
	Room         string    `json:"room,omitempty"`
	Floor        string    `json:"floor,omitempty"`
	Reference    geo.Point `json:"reference"`
	HasReference bool      `json:"has_reference"`
	AltitudeM    float64   `json:"altitude_m,omitempty"`
}

// Catalog is the immutable inventory loaded at startup.
type Catalog struct {
	gateways map[string]GatewayRecord
	sensors  map[string]SensorRecord
}

// NewCatalog builds a catalog from in-memory records. IDs are normalized.
func NewCatalog(gateways []GatewayRecord, sensors []SensorRecord) *Catalog {
	c := &Catalog{
		gateways: make(map[string]GatewayRecord, len(gateways)),
		sensors:  make(map[string]SensorRecord, len(sensors)),
	}
	for _, g := range gateways {
		g.ID = NormalizeEUI(g.ID)
		c.gateways[g.ID] = g
	}
	for _, s := range sensors {
		s.ID = NormalizeEUI(s.ID)
		c.sensors[s.ID] = s
	}
	return c
}

// Load reads both inventories. An empty sensorsPath yields a catalog in which
// every sensor is unknown.
func Load(gatewaysPath, sensorsPath string) (*Catalog, error) {
	gws, err := readFile(gatewaysPath, ReadGateways)
	if err != nil {
		return nil, err
	}
	var sensors []SensorRecord
	if sensorsPath != "" {
		sensors, err = readFile(sensorsPath, ReadSensors)
		if err != nil {
			return nil, err
		}
	}
	return NewCatalog(gws, sensors), nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Gateway looks up a gateway by normalized id.
func (c *Catalog) Gateway(id string) (GatewayRecord, bool) {
	g, ok := c.gateways[id]
	return g, ok
}

// Sensor looks up a sensor by normalized id.
func (c *Catalog) Sensor(id string) (SensorRecord, bool) {
	s, ok := c.sensors[id]
	return s, ok
}

// Gateways returns all gateways sorted by id.
func (c *Catalog) Gateways() []GatewayRecord {
	out := make([]GatewayRecord, 0, len(c.gateways))
	for _, g := range c.gateways {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sensors returns all sensors sorted by id.
func (c *Catalog) Sensors() []SensorRecord {
	out := make([]SensorRecord, 0, len(c.sensors))
	for _, s := range c.sensors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NormalizeEUI strips ':' and '-' separators and upper-cases the result, so
// "a8:40:41:00:00:01" and "A840410000000001"-style ids compare equal.
func NormalizeEUI(id string) string {
	id = strings.TrimSpace(id)
	id = strings.NewReplacer(":", "", "-", "").Replace(id)
	return strings.ToUpper(id)
}

// ReadGateways parses the gateway table. Columns: eui, name (or
// gateway_name), latitude, longitude, altitude. Every column is required and
// a row with an empty value is a load error naming the line.
func ReadGateways(r io.Reader) ([]GatewayRecord, error) {
	hdr, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	idx, err := hdr.require("eui", "latitude", "longitude", "altitude")
	if err != nil {
		return nil, err
	}
	nameCol := hdr.first("name", "gateway_name")
	if nameCol < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, "name")
	}

	out := make([]GatewayRecord, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		id := NormalizeEUI(rec[idx[0]])
		if id == "" {
			return nil, fmt.Errorf("line %d: empty eui", line)
		}
		name := cell(rec, nameCol)
		if name == "" {
			return nil, fmt.Errorf("line %d: empty name", line)
		}
		lat, err := parseCoord(rec[idx[1]])
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := parseCoord(rec[idx[2]])
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		pos := geo.Point{Lat: lat, Lon: lon}
		if !pos.Valid() {
			return nil, fmt.Errorf("line %d: coordinates out of range: %v,%v", line, lat, lon)
		}
		alt, err := parseCoord(rec[idx[3]])
		if err != nil {
			return nil, fmt.Errorf("line %d: altitude: %w", line, err)
		}
		out = append(out, GatewayRecord{ID: id, Name: name, Position: pos, AltitudeM: alt})
	}
	return out, nil
}

// ReadSensors parses the sensor table. Columns: Sensor_Eui, St_Y (latitude),
// St_X (longitude) and the optional Roomname, Mazemap_Floor, Altitude_Masl.
// Rows whose coordinates are blank or NaN are kept as unknown sensors.
func ReadSensors(r io.Reader) ([]SensorRecord, error) {
	hdr, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	idx, err := hdr.require("sensor_eui", "st_y", "st_x")
	if err != nil {
		return nil, err
	}
	roomCol := hdr.first("roomname")
	floorCol := hdr.first("mazemap_floor")
	altCol := hdr.first("altitude_masl")

	out := make([]SensorRecord, 0, len(rows))
	for _, rec := range rows {
		id := NormalizeEUI(rec[idx[0]])
		if id == "" {
			continue
		}
		s := SensorRecord{ID: id, Room: cell(rec, roomCol), Floor: cell(rec, floorCol)}
		lat, latErr := parseCoord(rec[idx[1]])
		lon, lonErr := parseCoord(rec[idx[2]])
		if latErr == nil && lonErr == nil {
			pos := geo.Point{Lat: lat, Lon: lon}
			s.Reference, s.HasReference = pos, pos.Valid()
		}
		if alt, err := parseCoord(cell(rec, altCol)); err == nil {
			s.AltitudeM = alt
		}
		out = append(out, s)
	}
	return out, nil
}

var errNoValue = errors.New("no value")

func parseCoord(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errNoValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNoValue
	}
	return f, nil
}

type header map[string]int

func readTable(r io.Reader) (header, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("read csv: empty table")
	}
	h := make(header, len(records[0]))
	for i, name := range records[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		h[name] = i
	}
	rows := records[1:]
	for i, rec := range rows {
		if len(rec) < len(records[0]) {
			padded := make([]string, len(records[0]))
			copy(padded, rec)
			rows[i] = padded
		}
	}
	return h, rows, nil
}

func (h header) require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		col, ok := h[n]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, n)
		}
		idx[i] = col
	}
	return idx, nil
}

func (h header) first(names ...string) int {
	for _, n := range names {
		if col, ok := h[n]; ok {
			return col
		}
	}
	return -1
}

func cell(rec []string, col int) string {
	if col < 0 || col >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[col])
}

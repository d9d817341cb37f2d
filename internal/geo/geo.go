// Package geo holds the small amount of spherical geometry the locator needs.
package geo

import "math"

// EarthRadiusM is the mean Earth radius used for all distance and projection math.
const EarthRadiusM = 6371000.0

const degToRad = math.Pi / 180

// Point is a WGS84 latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite and inside the WGS84 range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceMeters calculates the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// Centroid returns the arithmetic mean of the given points. It returns the zero
// Point for an empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	n := float64(len(pts))
	return Point{Lat: c.Lat / n, Lon: c.Lon / n}
}

// Offset moves p by the given north and east displacements in meters.
func Offset(p Point, northM, eastM float64) Point {
	return Point{
		Lat: p.Lat + northM/EarthRadiusM/degToRad,
		Lon: p.Lon + eastM/(EarthRadiusM*math.Cos(p.Lat*degToRad))/degToRad,
	}
}

// Projection is an equirectangular tangent plane anchored at Origin. Accurate
// to well under a meter over the few kilometers a gateway cluster spans.
type Projection struct {
	Origin Point
	cosLat float64
}

// NewProjection anchors a tangent plane at origin.
func NewProjection(origin Point) Projection {
	return Projection{Origin: origin, cosLat: math.Cos(origin.Lat * degToRad)}
}

// Forward maps p onto the plane. x grows east, y grows north, both in meters.
func (pr Projection) Forward(p Point) (x, y float64) {
	x = EarthRadiusM * pr.cosLat * (p.Lon - pr.Origin.Lon) * degToRad
	y = EarthRadiusM * (p.Lat - pr.Origin.Lat) * degToRad
	return x, y
}

// Inverse maps plane coordinates back to latitude/longitude.
func (pr Projection) Inverse(x, y float64) Point {
	return Point{
		Lat: pr.Origin.Lat + y/EarthRadiusM/degToRad,
		Lon: pr.Origin.Lon + x/(EarthRadiusM*pr.cosLat)/degToRad,
	}
}

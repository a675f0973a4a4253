package domain

import "github.com/twpayne/go-geom"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// ExteriorRing returns the vertices of the polygon's exterior ring in storage
// order, (x, y) = (lon, lat).
func ExteriorRing(p *geom.Polygon) ([]GeoPoint, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, ErrNoExteriorRing
	}
	coords := p.LinearRing(0).Coords()
	if len(coords) < 3 {
		return nil, ErrTooFewVertices
	}
	pts := make([]GeoPoint, len(coords))
	for i, c := range coords {
		pts[i] = GeoPoint{Lat: c.Y(), Lon: c.X()}
	}
	return pts, nil
}

// RingBounds returns the bounding box of a vertex list.
func RingBounds(pts []GeoPoint) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLat: pts[0].Lat, MaxLat: pts[0].Lat, MinLon: pts[0].Lon, MaxLon: pts[0].Lon}
	for _, p := range pts[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lon < b.MinLon {
			b.MinLon = p.Lon
		}
		if p.Lon > b.MaxLon {
			b.MaxLon = p.Lon
		}
	}
	return b
}

// NewPolygon builds an XY polygon from (lon, lat) pairs forming the exterior ring.
func NewPolygon(ring [][2]float64) *geom.Polygon {
	coords := make([]geom.Coord, len(ring))
	for i, c := range ring {
		coords[i] = geom.Coord{c[0], c[1]}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
}

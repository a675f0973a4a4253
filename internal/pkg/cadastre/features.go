package cadastre

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// DecodeParcels reads a GeoJSON FeatureCollection of cadastral parcels.
// Polygon geometries are kept as-is; for a MultiPolygon only the first part is
// kept. Any other geometry type fails the whole decode.
func DecodeParcels(r io.Reader) ([]domain.Parcel, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	parcels := make([]domain.Parcel, 0, len(fc.Features))
	for i, f := range fc.Features {
		poly, err := PolygonOf(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, featureID(f), err)
		}
		p := domain.Parcel{
			ID:         featureID(f),
			Commune:    stringProp(f.Properties, "commune"),
			Prefixe:    stringProp(f.Properties, "prefixe"),
			Section:    stringProp(f.Properties, "section"),
			Numero:     stringProp(f.Properties, "numero"),
			Contenance: intProp(f.Properties, "contenance"),
			Polygon:    poly,
			CreatedAt:  dateProp(f.Properties, "created"),
			UpdatedAt:  dateProp(f.Properties, "updated"),
		}
		if p.ID == "" {
			return nil, fmt.Errorf("feature %d: missing parcel id", i)
		}
		parcels = append(parcels, p)
	}
	return parcels, nil
}

// ParsePolygon reads one GeoJSON geometry or Feature and returns its polygon,
// following the same MultiPolygon rule as DecodeParcels.
func ParsePolygon(data []byte) (*geom.Polygon, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: decode geojson: %v", domain.ErrInvalidRequest, err)
	}
	if probe.Type == "Feature" {
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: decode feature: %v", domain.ErrInvalidRequest, err)
		}
		return PolygonOf(f.Geometry)
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: decode geometry: %v", domain.ErrInvalidRequest, err)
	}
	return PolygonOf(g)
}

// PolygonOf narrows a decoded geometry to a single polygon.
func PolygonOf(g geom.T) (*geom.Polygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return t, nil
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", domain.ErrUnsupportedGeometry)
		}
		return t.Polygon(0), nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", domain.ErrUnsupportedGeometry)
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedGeometry, g)
	}
}

func featureID(f *geojson.Feature) string {
	if f.ID != "" {
		return f.ID
	}
	return stringProp(f.Properties, "id")
}

func stringProp(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

func intProp(props map[string]interface{}, key string) int {
	if v, ok := props[key].(float64); ok {
		return int(v)
	}
	return 0
}

func dateProp(props map[string]interface{}, key string) time.Time {
	s, _ := props[key].(string)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

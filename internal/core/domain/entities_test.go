package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

func TestParcel_JSONKeepsGeometry(t *testing.T) {
	in := domain.Parcel{
		ID:      "060290000A0001",
		Commune: "06029",
		Polygon: domain.NewPolygon([][2]float64{{6.1, 43.1}, {6.2, 43.1}, {6.2, 43.2}, {6.1, 43.1}}),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"geometry":{"type":"Polygon"`) {
		t.Fatalf("expected GeoJSON geometry, got %s", data)
	}

	var out domain.Parcel
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID || out.Commune != in.Commune {
		t.Errorf("unexpected attributes %+v", out)
	}
	ring, err := domain.ExteriorRing(out.Polygon)
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	if len(ring) != 4 || ring[1].Lon != 6.2 {
		t.Errorf("unexpected ring %v", ring)
	}
}

func TestPictureRequest_Validate(t *testing.T) {
	poly := domain.NewPolygon([][2]float64{{6.1, 43.1}, {6.2, 43.1}, {6.2, 43.2}})

	tests := []struct {
		name    string
		req     domain.PictureRequest
		wantErr bool
	}{
		{"polygon ok", domain.PictureRequest{Target: domain.PolygonTarget(poly), Width: 640, Height: 640, Zoom: 20, ParcelID: "p"}, false},
		{"address ok", domain.PictureRequest{Target: domain.AddressTarget("Cannes"), Width: 640, Height: 640, Zoom: 20}, false},
		{"zero width", domain.PictureRequest{Target: domain.AddressTarget("Cannes"), Height: 640, Zoom: 20}, true},
		{"zoom too high", domain.PictureRequest{Target: domain.AddressTarget("Cannes"), Width: 1, Height: 1, Zoom: 22}, true},
		{"missing parcel id", domain.PictureRequest{Target: domain.PolygonTarget(poly), Width: 1, Height: 1, Zoom: 20}, true},
		{"empty address", domain.PictureRequest{Target: domain.AddressTarget(""), Width: 1, Height: 1}, true},
		{"no target", domain.PictureRequest{Width: 1, Height: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestSplitCounts(t *testing.T) {
	c := domain.SplitCounts{Train: 17, Val: 2, Test: 1}
	if c.Total() != 20 {
		t.Errorf("expected 20, got %d", c.Total())
	}
	if c.Of(domain.SplitVal) != 2 || c.Of(domain.SplitTest) != 1 {
		t.Errorf("unexpected Of results")
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Parcel is a cadastral land unit.
type Parcel struct {
	ID         string        `json:"id"`
	Commune    string        `json:"commune"`
	Prefixe    string        `json:"prefixe,omitempty"`
	Section    string        `json:"section,omitempty"`
	Numero     string        `json:"numero,omitempty"`
	Contenance int           `json:"contenance,omitempty"` // area in m²
	Polygon    *geom.Polygon `json:"-"`
	CreatedAt  time.Time     `json:"created_at,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at,omitempty"`
}

// MarshalJSON renders the polygon as a GeoJSON geometry.
func (p Parcel) MarshalJSON() ([]byte, error) {
	type alias Parcel
	var geometry json.RawMessage
	if p.Polygon != nil {
		b, err := geojson.Marshal(p.Polygon)
		if err != nil {
			return nil, fmt.Errorf("marshal geometry: %w", err)
		}
		geometry = b
	}
	return json.Marshal(struct {
		alias
		Geometry json.RawMessage `json:"geometry,omitempty"`
	}{alias(p), geometry})
}

// UnmarshalJSON reads the GeoJSON geometry written by MarshalJSON.
func (p *Parcel) UnmarshalJSON(data []byte) error {
	type alias Parcel
	aux := struct {
		*alias
		Geometry json.RawMessage `json:"geometry,omitempty"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Geometry) == 0 || string(aux.Geometry) == "null" {
		return nil
	}
	var g geom.T
	if err := geojson.Unmarshal(aux.Geometry, &g); err != nil {
		return fmt.Errorf("unmarshal geometry: %w", err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
	p.Polygon = poly
	return nil
}

// TargetKind tags what a picture is centred on.
type TargetKind int

const (
	TargetPolygon TargetKind = iota + 1
	TargetAddress
)

func (k TargetKind) String() string {
	switch k {
	case TargetPolygon:
		return "polygon"
	case TargetAddress:
		return "address"
	default:
		return "unknown"
	}
}

// Target is either a polygon overlay or a textual address.
type Target struct {
	Kind    TargetKind
	Polygon *geom.Polygon
	Address string
}

func PolygonTarget(p *geom.Polygon) Target { return Target{Kind: TargetPolygon, Polygon: p} }

func AddressTarget(address string) Target { return Target{Kind: TargetAddress, Address: address} }

// PictureRequest describes one static-map image to acquire.
type PictureRequest struct {
	Target Target
	Width  int
	Height int
	Zoom   int

	// Labelling attributes, encoded in the filename in polygon mode.
	ParcelID string
	Zipcode  string
	HasPool  bool
}

// Validate checks the request without touching the network.
func (r PictureRequest) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidRequest, r.Width, r.Height)
	}
	if r.Zoom < 0 || r.Zoom > 21 {
		return fmt.Errorf("%w: zoom must be 0-21, got %d", ErrInvalidRequest, r.Zoom)
	}
	switch r.Target.Kind {
	case TargetPolygon:
		if _, err := ExteriorRing(r.Target.Polygon); err != nil {
			return err
		}
		if r.ParcelID == "" {
			return fmt.Errorf("%w: parcel id is required in polygon mode", ErrInvalidRequest)
		}
	case TargetAddress:
		if r.Target.Address == "" {
			return fmt.Errorf("%w: address is empty", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown target", ErrInvalidRequest)
	}
	return nil
}

// Label is a short human identifier used in logs and batch errors.
func (r PictureRequest) Label() string {
	if r.Target.Kind == TargetAddress {
		return r.Target.Address
	}
	return r.ParcelID
}

// Picture is the record of one persisted image.
type Picture struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	ParcelID    string    `json:"parcel_id,omitempty"`
	Zipcode     string    `json:"zipcode,omitempty"`
	HasPool     bool      `json:"has_pool"`
	Address     string    `json:"address,omitempty"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Zoom        int       `json:"zoom"`
	Format      string    `json:"format"`
	ContentType string    `json:"content_type,omitempty"`
	Bytes       int       `json:"bytes"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParcelLabel is the per-parcel input of a batch acquisition.
type ParcelLabel struct {
	ParcelID string `json:"parcel_id"`
	Zipcode  string `json:"zipcode,omitempty"`
	HasPool  bool   `json:"has_pool"`
}

// ImageSize groups the rendering parameters shared by a batch.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Zoom   int `json:"zoom"`
}

// BatchFailure records one failed item of a continue-on-error batch.
type BatchFailure struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Error string `json:"error"`
}

// BatchReport summarises a sequential acquisition batch.
type BatchReport struct {
	Requested int            `json:"requested"`
	Saved     []Picture      `json:"saved"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// Split names one of the three dataset partitions.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Splits lists the partitions in materialisation order.
var Splits = []Split{SplitTrain, SplitVal, SplitTest}

// DatasetEntry is an image/label pair sharing a base name.
type DatasetEntry struct {
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
	LabelPath string `json:"label_path"`
}

// SplitCounts is the size of each partition.
type SplitCounts struct {
	Train int `json:"train"`
	Val   int `json:"val"`
	Test  int `json:"test"`
}

func (c SplitCounts) Total() int { return c.Train + c.Val + c.Test }

// Of returns the count for one partition.
func (c SplitCounts) Of(s Split) int {
	switch s {
	case SplitTrain:
		return c.Train
	case SplitVal:
		return c.Val
	default:
		return c.Test
	}
}

// SplitReport is the outcome of one dataset split run.
type SplitReport struct {
	RunID      string             `json:"run_id"`
	SourceDir  string             `json:"source_dir"`
	DestRoot   string             `json:"dest_root"`
	TrainRatio float64            `json:"train_ratio"`
	ValidRatio float64            `json:"valid_ratio"`
	Counts     SplitCounts        `json:"counts"`
	Entries    map[Split][]string `json:"entries"`
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration"`
}

// ImportReport is the outcome of a cadastre download + load.
type ImportReport struct {
	ArchiveURL    string `json:"archive_url"`
	ArchivePath   string `json:"archive_path"`
	ExtractedPath string `json:"extracted_path"`
	Commune       string `json:"commune,omitempty"`
	Parcels       int    `json:"parcels"`
	Stored        int    `json:"stored"`
}

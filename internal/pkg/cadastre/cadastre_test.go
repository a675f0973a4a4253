package cadastre

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "060290000A0001",
      "geometry": {"type": "Polygon", "coordinates": [[[6.84995, 43.52750], [6.85010, 43.52760], [6.85020, 43.52740], [6.84995, 43.52750]]]},
      "properties": {"id": "060290000A0001", "commune": "06029", "prefixe": "000", "section": "A", "numero": "1", "contenance": 512, "created": "2005-12-05", "updated": "2021-03-17"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[7.0, 43.5], [7.1, 43.5], [7.1, 43.6], [7.0, 43.5]]], [[[8.0, 44.0], [8.1, 44.0], [8.1, 44.1], [8.0, 44.0]]]]},
      "properties": {"id": "060290000A0002", "commune": "06029", "section": "A", "numero": "2"}
    }
  ]
}`

func TestDecodeParcels(t *testing.T) {
	parcels, err := DecodeParcels(strings.NewReader(sampleCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parcels) != 2 {
		t.Fatalf("expected 2 parcels, got %d", len(parcels))
	}

	p := parcels[0]
	if p.ID != "060290000A0001" || p.Commune != "06029" || p.Section != "A" || p.Contenance != 512 {
		t.Errorf("unexpected parcel %+v", p)
	}
	if p.CreatedAt.Year() != 2005 {
		t.Errorf("expected created year 2005, got %v", p.CreatedAt)
	}
	ring, err := domain.ExteriorRing(p.Polygon)
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	if len(ring) != 4 || ring[0].Lat != 43.52750 || ring[0].Lon != 6.84995 {
		t.Errorf("unexpected ring %v", ring)
	}

	// MultiPolygon keeps only its first part
	ring, _ = domain.ExteriorRing(parcels[1].Polygon)
	if ring[0].Lon != 7.0 {
		t.Errorf("expected first multipolygon part, got %v", ring)
	}
	if parcels[1].ID != "060290000A0002" {
		t.Errorf("expected id from properties, got %q", parcels[1].ID)
	}
}

func TestDecodeParcels_RejectsPoint(t *testing.T) {
	in := `{"type":"FeatureCollection","features":[{"type":"Feature","id":"x","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`
	_, err := DecodeParcels(strings.NewReader(in))
	if !errors.Is(err, domain.ErrUnsupportedGeometry) {
		t.Fatalf("expected ErrUnsupportedGeometry, got %v", err)
	}
}

func TestGunzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(sampleCollection))
	_ = zw.Close()

	var out bytes.Buffer
	n, err := Gunzip(&out, bytes.NewReader(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != int64(len(sampleCollection)) || out.String() != sampleCollection {
		t.Errorf("round trip mismatch: %d bytes", n)
	}
}

func TestGunzip_Limit(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(bytes.Repeat([]byte("a"), 1024))
	_ = zw.Close()

	if _, err := Gunzip(&bytes.Buffer{}, &buf, 100); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestExtractedName(t *testing.T) {
	cases := map[string]string{
		"cadastre-06029-parcelles.json.gz":               "cadastre-06029-parcelles.json",
		"data/06/06029/cadastre-06029-parcelles.json.gz": "cadastre-06029-parcelles.json",
		"plain.json":                                     "plain.json",
	}
	for in, want := range cases {
		if got := ExtractedName(in); got != want {
			t.Errorf("ExtractedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePolygon(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr error
		points  int
	}{
		{"geometry", `{"type":"Polygon","coordinates":[[[1,2],[3,4],[5,6],[1,2]]]}`, nil, 4},
		{"feature", `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[1,2],[3,4],[5,6],[1,2]]]},"properties":{}}`, nil, 4},
		{"multipolygon", `{"type":"MultiPolygon","coordinates":[[[[1,2],[3,4],[5,6],[7,8],[1,2]]]]}`, nil, 5},
		{"point", `{"type":"Point","coordinates":[1,2]}`, domain.ErrUnsupportedGeometry, 0},
		{"garbage", `{not json`, domain.ErrInvalidRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			poly, err := ParsePolygon([]byte(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(poly.LinearRing(0).Coords()); got != tc.points {
				t.Errorf("expected %d vertices, got %d", tc.points, got)
			}
		})
	}
}

func TestReadLabels(t *testing.T) {
	in := "\xef\xbb\xbfid;zipcode;havepool;comment\n" +
		"060290000A0001;06400;1;pool\n" +
		"060290000A0002; 06400 ;0\n" +
		";;;\n" +
		"060290000A0003;06150;true\n"
	labels, err := ReadLabels(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.ParcelLabel{
		{ParcelID: "060290000A0001", Zipcode: "06400", HasPool: true},
		{ParcelID: "060290000A0002", Zipcode: "06400", HasPool: false},
		{ParcelID: "060290000A0003", Zipcode: "06150", HasPool: true},
	}
	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d: %+v", len(want), len(labels), labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: expected %+v, got %+v", i, want[i], labels[i])
		}
	}
}

func TestReadLabels_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"no id":    "zipcode;havepool\n06400;1\n",
		"bad bool": "id;havepool\nA1;maybe\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadLabels(strings.NewReader(in)); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestCommuneIndexURL(t *testing.T) {
	const base = "https://cadastre.data.gouv.fr/data/etalab-cadastre/latest/geojson/communes/"
	cases := []struct {
		dept, commune, want string
	}{
		{"", "06029", base + "06/06029/"},
		{"", "2A004", base + "2A/2A004/"},
		{"", "97411", base + "974/97411/"},
		{"06", "06088", base + "06/06088/"},
	}
	for _, tc := range cases {
		got, err := CommuneIndexURL(base, tc.dept, tc.commune)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.commune, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.commune, tc.want, got)
		}
	}

	for _, bad := range []string{"", "6029", "../06", "06029/x"} {
		if _, err := CommuneIndexURL(base, "", bad); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("%q: expected ErrInvalidRequest, got %v", bad, err)
		}
	}
	if _, err := CommuneIndexURL(base, "0/", "06029"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected bad department to be rejected, got %v", err)
	}
}

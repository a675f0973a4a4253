package usecases_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
)

const communeIndex = "https://cadastre.example.test/geojson/communes/06/06029/"
const archiveLink = "https://cadastre.example.test/geojson/communes/06/06029/cadastre-06029-parcelles.json.gz"

const parcelsGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"060290000A0001","geometry":{"type":"Polygon","coordinates":[[[6.1,43.1],[6.2,43.1],[6.2,43.2],[6.1,43.1]]]},"properties":{"commune":"06029","section":"A","numero":"1"}},
 {"type":"Feature","id":"060290000A0002","geometry":{"type":"Polygon","coordinates":[[[6.3,43.1],[6.4,43.1],[6.4,43.2],[6.3,43.1]]]},"properties":{"commune":"06029","section":"A","numero":"2"}}
]}`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func archivePortal(t *testing.T) *mockPortal {
	archive := gzipped(t, parcelsGeoJSON)
	return &mockPortal{
		findLinkFn: func(ctx context.Context, indexURL, keyword string) (string, error) {
			if keyword != "parcelles" {
				return "", domain.ErrLinkNotFound
			}
			return archiveLink, nil
		},
		openFn: func(ctx context.Context, url string) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(archive)), nil
		},
	}
}

func TestDefaultSaveFolder(t *testing.T) {
	cases := map[string]string{
		communeIndex:                                              "06029",
		"https://cadastre.example.test/geojson/communes/06/06029": "06",
		"nothing":                                                 ".",
	}
	for in, want := range cases {
		if got := usecases.DefaultSaveFolder(in); got != want {
			t.Errorf("DefaultSaveFolder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCadastreService_Import(t *testing.T) {
	fs := afero.NewMemMapFs()
	var stored []domain.Parcel
	repo := &mockParcelRepo{upsertBatchFn: func(ctx context.Context, parcels []domain.Parcel) error {
		stored = append(stored, parcels...)
		return nil
	}}
	events := &mockPublisher{}
	svc := usecases.NewCadastreService(fs, archivePortal(t), repo, events)

	report, err := svc.Import(context.Background(), communeIndex, "parcelles", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ArchivePath != "06029/cadastre-06029-parcelles.json.gz" {
		t.Errorf("unexpected archive path %q", report.ArchivePath)
	}
	if report.ExtractedPath != "06029/cadastre-06029-parcelles.json" {
		t.Errorf("unexpected extracted path %q", report.ExtractedPath)
	}
	if report.Parcels != 2 || report.Stored != 2 || report.Commune != "06029" {
		t.Errorf("unexpected report %+v", report)
	}
	if len(stored) != 2 || stored[1].ID != "060290000A0002" {
		t.Errorf("unexpected stored parcels %v", stored)
	}
	data, err := afero.ReadFile(fs, report.ExtractedPath)
	if err != nil || string(data) != parcelsGeoJSON {
		t.Errorf("extracted file mismatch: %v", err)
	}
	if len(events.imports) != 1 {
		t.Errorf("expected import event")
	}
}

func TestCadastreService_Download_ExplicitFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := usecases.NewCadastreService(fs, archivePortal(t), nil, nil)

	link, path, err := svc.Download(context.Background(), communeIndex, "parcelles", "data/cadastre")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != archiveLink || path != "data/cadastre/cadastre-06029-parcelles.json.gz" {
		t.Errorf("unexpected result %s %s", link, path)
	}
	if ok, _ := afero.Exists(fs, path); !ok {
		t.Errorf("expected archive on disk")
	}
}

func TestCadastreService_Download_NoLink(t *testing.T) {
	svc := usecases.NewCadastreService(afero.NewMemMapFs(), archivePortal(t), nil, nil)
	_, _, err := svc.Download(context.Background(), communeIndex, "batiments", "")
	if !errors.Is(err, domain.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestCadastreService_Extract_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "a/bad.json.gz", []byte("not gzip"), 0o644)
	svc := usecases.NewCadastreService(fs, &mockPortal{}, nil, nil)

	if _, err := svc.Extract(context.Background(), "a/bad.json.gz", ""); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	if ok, _ := afero.Exists(fs, "a/bad.json"); ok {
		t.Errorf("expected no extracted file")
	}
}

func TestCadastreService_Import_StoreError(t *testing.T) {
	repo := &mockParcelRepo{upsertBatchFn: func(ctx context.Context, parcels []domain.Parcel) error {
		return errors.New("db down")
	}}
	svc := usecases.NewCadastreService(afero.NewMemMapFs(), archivePortal(t), repo, nil)

	report, err := svc.Import(context.Background(), communeIndex, "parcelles", "x")
	if err == nil {
		t.Fatal("expected store error")
	}
	if report == nil || report.Stored != 0 || report.Parcels != 2 {
		t.Errorf("unexpected partial report %+v", report)
	}
}

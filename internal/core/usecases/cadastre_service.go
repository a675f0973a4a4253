package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/pkg/cadastre"
	"github.com/a-ayari03/POOL-AI/internal/pkg/metrics"
	"github.com/a-ayari03/POOL-AI/internal/pkg/telemetry"
)

const parcelUpsertChunk = 500

// CadastreService downloads cadastre archives and loads their parcels.
type CadastreService struct {
	fs      afero.Fs
	portal  ports.CadastrePortal
	parcels ports.ParcelRepository
	events  ports.EventPublisher
}

// NewCadastreService creates a new CadastreService. parcels and events may be
// nil, in which case Import only downloads and decodes.
func NewCadastreService(fs afero.Fs, portal ports.CadastrePortal, parcels ports.ParcelRepository, events ports.EventPublisher) *CadastreService {
	return &CadastreService{fs: fs, portal: portal, parcels: parcels, events: events}
}

// DefaultSaveFolder is the second-to-last path segment of indexURL, e.g.
// ".../communes/06/06029/" gives "06029".
func DefaultSaveFolder(indexURL string) string {
	parts := strings.Split(indexURL, "/")
	if len(parts) < 2 {
		return "."
	}
	if f := parts[len(parts)-2]; f != "" {
		return f
	}
	return "."
}

// Download finds the first link of the index page whose text contains
// keyword and streams it to saveFolder. It returns the archive URL and the
// local path.
func (s *CadastreService) Download(ctx context.Context, indexURL, keyword, saveFolder string) (string, string, error) {
	link, err := s.portal.FindLink(ctx, indexURL, keyword)
	if err != nil {
		return "", "", fmt.Errorf("find archive link: %w", err)
	}
	if saveFolder == "" {
		saveFolder = DefaultSaveFolder(indexURL)
	}

	name := link
	if u, err := url.Parse(link); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	if name == "" || name == "/" || name == "." {
		return "", "", fmt.Errorf("archive link %q has no file name", link)
	}

	if err := s.fs.MkdirAll(saveFolder, 0o755); err != nil {
		return "", "", fmt.Errorf("create %s: %w", saveFolder, err)
	}

	start := time.Now()
	body, err := s.portal.Open(ctx, link)
	if err != nil {
		return "", "", fmt.Errorf("download %s: %w", link, err)
	}
	defer body.Close()

	dst := filepath.Join(saveFolder, name)
	if err := s.writeAtomic(dst, body); err != nil {
		return "", "", fmt.Errorf("write %s: %w", dst, err)
	}
	metrics.CadastreDownloadDuration.Observe(time.Since(start).Seconds())
	slog.Info("cadastre archive downloaded", "url", link, "path", dst)
	return link, dst, nil
}

// Extract gunzips archivePath into parentDir (the archive's folder when empty)
// and returns the extracted file path.
func (s *CadastreService) Extract(ctx context.Context, archivePath, parentDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if parentDir == "" {
		parentDir = filepath.Dir(archivePath)
	}
	if err := s.fs.MkdirAll(parentDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", parentDir, err)
	}

	in, err := s.fs.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	pr, pw := io.Pipe()
	go func() {
		_, err := cadastre.Gunzip(pw, in, 0)
		pw.CloseWithError(err)
	}()

	dst := filepath.Join(parentDir, cadastre.ExtractedName(archivePath))
	if err := s.writeAtomic(dst, pr); err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("extract %s: %w", archivePath, err)
	}
	return dst, nil
}

// Load decodes the parcels of an extracted GeoJSON file.
func (s *CadastreService) Load(ctx context.Context, file string) ([]domain.Parcel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	parcels, err := cadastre.DecodeParcels(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	return parcels, nil
}

// Import downloads, extracts and loads one commune archive, then stores its
// parcels.
func (s *CadastreService) Import(ctx context.Context, indexURL, keyword, saveFolder string) (*domain.ImportReport, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "CadastreService.Import")
	defer span.End()

	archiveURL, archivePath, err := s.Download(ctx, indexURL, keyword, saveFolder)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	extracted, err := s.Extract(ctx, archivePath, "")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	parcels, err := s.Load(ctx, extracted)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &domain.ImportReport{
		ArchiveURL:    archiveURL,
		ArchivePath:   archivePath,
		ExtractedPath: extracted,
		Parcels:       len(parcels),
	}
	if len(parcels) > 0 {
		report.Commune = parcels[0].Commune
	}

	if s.parcels != nil {
		for start := 0; start < len(parcels); start += parcelUpsertChunk {
			end := min(start+parcelUpsertChunk, len(parcels))
			if err := s.parcels.UpsertBatch(ctx, parcels[start:end]); err != nil {
				span.RecordError(err)
				return report, fmt.Errorf("store parcels: %w", err)
			}
			report.Stored = end
		}
	}
	metrics.CadastreParcelsImported.WithLabelValues(report.Commune).Add(float64(report.Stored))

	slog.Info("cadastre imported",
		"commune", report.Commune,
		"parcels", report.Parcels,
		"stored", report.Stored,
	)

	if s.events != nil {
		if err := s.events.PublishParcelsImported(ctx, report); err != nil {
			slog.Warn("publish import event failed", "commune", report.Commune, "error", err)
		}
	}
	return report, nil
}

// writeAtomic copies r into a temp file next to dst and renames it into place.
func (s *CadastreService) writeAtomic(dst string, r io.Reader) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return err
	}
	return s.fs.Rename(tmp.Name(), dst)
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/core/staticmap"
	"github.com/a-ayari03/POOL-AI/internal/pkg/geospatial"
	"github.com/a-ayari03/POOL-AI/internal/pkg/metrics"
	"github.com/a-ayari03/POOL-AI/internal/pkg/telemetry"
)

// PictureServiceConfig wires the acquisition pipeline. Fetcher and Store are
// required; every other collaborator is optional.
type PictureServiceConfig struct {
	Options  staticmap.Options
	Fetcher  ports.ImageFetcher
	Store    ports.PictureStore
	Parcels  ports.ParcelRepository
	Catalog  ports.PictureRepository
	Cache    ports.CacheService
	Events   ports.EventPublisher
	CacheTTL int // seconds
}

// PictureService acquires static-map pictures and persists them.
type PictureService struct {
	cfg PictureServiceConfig
}

// NewPictureService creates a new PictureService.
func NewPictureService(cfg PictureServiceConfig) *PictureService {
	return &PictureService{cfg: cfg}
}

// Acquire fetches the picture described by req and saves it under folder.
// The request is validated before any network call.
func (s *PictureService) Acquire(ctx context.Context, req domain.PictureRequest, folder string) (*domain.Picture, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "PictureService.Acquire")
	defer span.End()
	span.SetAttributes(
		attribute.String("picture.mode", req.Target.Kind.String()),
		attribute.String("picture.label", req.Label()),
		attribute.Int("picture.zoom", req.Zoom),
	)

	pic, err := s.acquire(ctx, req, folder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return pic, nil
}

func (s *PictureService) acquire(ctx context.Context, req domain.PictureRequest, folder string) (*domain.Picture, error) {
	if err := req.Validate(); err != nil {
		metrics.PictureErrors.WithLabelValues("validate").Inc()
		return nil, err
	}
	if s.cfg.Options.APIKey == "" {
		metrics.PictureErrors.WithLabelValues("validate").Inc()
		return nil, domain.ErrMissingAPIKey
	}

	url, err := staticmap.BuildRequestURL(s.cfg.Options, req)
	if err != nil {
		metrics.PictureErrors.WithLabelValues("validate").Inc()
		return nil, err
	}
	if req.Target.Kind == domain.TargetPolygon {
		s.checkFootprint(req)
	}

	data, contentType, cached, err := s.fetch(ctx, req, url)
	if err != nil {
		metrics.PictureErrors.WithLabelValues("fetch").Inc()
		return nil, err
	}

	filename := staticmap.Filename(req, s.cfg.Options.Format)
	path, err := s.cfg.Store.Save(ctx, folder, filename, data)
	if err != nil {
		metrics.PictureErrors.WithLabelValues("save").Inc()
		return nil, fmt.Errorf("save picture: %w", err)
	}

	pic := &domain.Picture{
		ID:          uuid.NewString(),
		Mode:        req.Target.Kind.String(),
		ParcelID:    req.ParcelID,
		Zipcode:     req.Zipcode,
		HasPool:     req.HasPool,
		Address:     req.Target.Address,
		Filename:    filename,
		Path:        path,
		Width:       req.Width,
		Height:      req.Height,
		Zoom:        req.Zoom,
		Format:      s.cfg.Options.Format,
		ContentType: contentType,
		Bytes:       len(data),
		Cached:      cached,
		CreatedAt:   time.Now().UTC(),
	}

	if s.cfg.Catalog != nil {
		if err := s.cfg.Catalog.Record(ctx, pic); err != nil {
			metrics.PictureErrors.WithLabelValues("record").Inc()
			return nil, fmt.Errorf("record picture: %w", err)
		}
	}

	metrics.PicturesSaved.WithLabelValues(pic.Mode).Inc()
	metrics.PictureBytes.Observe(float64(pic.Bytes))
	slog.Info("picture saved", "id", pic.ID, "mode", pic.Mode, "path", pic.Path, "bytes", pic.Bytes, "cached", pic.Cached)

	if s.cfg.Events != nil {
		if err := s.cfg.Events.PublishPictureSaved(ctx, pic); err != nil {
			slog.Warn("publish picture event failed", "id", pic.ID, "error", err)
		}
	}
	return pic, nil
}

// fetch reads through the image cache, keyed without the API key.
func (s *PictureService) fetch(ctx context.Context, req domain.PictureRequest, url string) ([]byte, string, bool, error) {
	var key string
	if s.cfg.Cache != nil {
		k, err := staticmap.CacheKey(s.cfg.Options, req)
		if err == nil {
			key = k
			if data, err := s.cfg.Cache.Get(ctx, key); err == nil && len(data) > 0 {
				metrics.CacheHits.WithLabelValues("staticmap").Inc()
				return data, "image/" + s.cfg.Options.Format, true, nil
			}
			metrics.CacheMisses.WithLabelValues("staticmap").Inc()
		}
	}

	start := time.Now()
	data, contentType, err := s.cfg.Fetcher.Fetch(ctx, url)
	metrics.PictureFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", false, fmt.Errorf("fetch picture: %w", err)
	}

	if key != "" {
		if err := s.cfg.Cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
			slog.Debug("cache set failed", "key", key, "error", err)
		}
	}
	return data, contentType, false, nil
}

// checkFootprint warns when the polygon's bounding box is larger than the
// ground area covered by the image.
func (s *PictureService) checkFootprint(req domain.PictureRequest) {
	ring, err := domain.ExteriorRing(req.Target.Polygon)
	if err != nil {
		return
	}
	if fits, need, have := FootprintFits(ring, req.Width, req.Height, req.Zoom); !fits {
		slog.Warn("parcel exceeds image footprint",
			"parcel_id", req.ParcelID,
			"zoom", req.Zoom,
			"parcel_m", fmt.Sprintf("%.0fx%.0f", need[0], need[1]),
			"image_m", fmt.Sprintf("%.0fx%.0f", have[0], have[1]),
		)
	}
}

// FootprintFits reports whether the ring's bounding box fits in an image of
// widthPx x heightPx at zoom, centred on the box.
func FootprintFits(ring []domain.GeoPoint, widthPx, heightPx, zoom int) (bool, [2]float64, [2]float64) {
	b := domain.RingBounds(ring)
	pw, ph := geospatial.Extent(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	iw, ih := geospatial.Footprint(b.Center().Lat, zoom, widthPx, heightPx)
	return pw <= iw && ph <= ih, [2]float64{pw, ph}, [2]float64{iw, ih}
}

// AcquireParcel looks the parcel up and acquires its picture.
func (s *PictureService) AcquireParcel(ctx context.Context, label domain.ParcelLabel, size domain.ImageSize, folder string) (*domain.Picture, error) {
	if s.cfg.Parcels == nil {
		return nil, errors.New("parcel repository not configured")
	}
	parcel, err := s.cfg.Parcels.GetByID(ctx, label.ParcelID)
	if err != nil {
		return nil, fmt.Errorf("get parcel %s: %w", label.ParcelID, err)
	}
	return s.Acquire(ctx, domain.PictureRequest{
		Target:   domain.PolygonTarget(parcel.Polygon),
		Width:    size.Width,
		Height:   size.Height,
		Zoom:     size.Zoom,
		ParcelID: parcel.ID,
		Zipcode:  label.Zipcode,
		HasPool:  label.HasPool,
	}, folder)
}

// AcquireBatch processes reqs one after the other. By default the first
// failure stops the batch and is returned as a *domain.BatchError along with
// the partial report. With continueOnError every failure is recorded and the
// joined errors are returned once all requests were tried.
func (s *PictureService) AcquireBatch(ctx context.Context, reqs []domain.PictureRequest, folder string, continueOnError bool) (*domain.BatchReport, error) {
	report := &domain.BatchReport{Requested: len(reqs), Saved: []domain.Picture{}}
	var errs []error

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		pic, err := s.Acquire(ctx, req, folder)
		if err != nil {
			berr := &domain.BatchError{Index: i, Label: req.Label(), Err: err}
			if !continueOnError {
				return report, berr
			}
			report.Failures = append(report.Failures, domain.BatchFailure{Index: i, Label: berr.Label, Error: err.Error()})
			errs = append(errs, berr)
			continue
		}
		report.Saved = append(report.Saved, *pic)
	}

	return report, errors.Join(errs...)
}

// List returns recorded pictures, optionally for one parcel.
func (s *PictureService) List(ctx context.Context, parcelID string, limit, offset int) ([]domain.Picture, int, error) {
	if s.cfg.Catalog == nil {
		return []domain.Picture{}, 0, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.cfg.Catalog.List(ctx, parcelID, limit, offset)
}

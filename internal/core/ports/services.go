package ports

import (
	"context"
	"io"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPictureSaved(ctx context.Context, p *domain.Picture) error
	PublishSplitCompleted(ctx context.Context, r *domain.SplitReport) error
	PublishParcelsImported(ctx context.Context, r *domain.ImportReport) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribePictures(ctx context.Context, handler func(ctx context.Context, p *domain.Picture) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ImageFetcher downloads a rendered map image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// PictureStore persists image bytes under folder/filename and returns the final path.
type PictureStore interface {
	Save(ctx context.Context, folder, filename string, data []byte) (string, error)
}

// CadastrePortal reads the open-data cadastre portal.
type CadastrePortal interface {
	FindLink(ctx context.Context, indexURL, keyword string) (string, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

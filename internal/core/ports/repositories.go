package ports

import (
	"context"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// ParcelRepository persists cadastral parcels.
type ParcelRepository interface {
	UpsertBatch(ctx context.Context, parcels []domain.Parcel) error
	GetByID(ctx context.Context, id string) (*domain.Parcel, error)
	List(ctx context.Context, commune string, limit, offset int) ([]domain.Parcel, int, error)
}

// PictureRepository records every persisted picture.
type PictureRepository interface {
	Record(ctx context.Context, p *domain.Picture) error
	List(ctx context.Context, parcelID string, limit, offset int) ([]domain.Picture, int, error)
}

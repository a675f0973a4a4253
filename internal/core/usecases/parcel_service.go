package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/pkg/metrics"
)

// ParcelService handles parcel lookups.
type ParcelService struct {
	parcels ports.ParcelRepository
	cache   ports.CacheService
}

// NewParcelService creates a new ParcelService.
func NewParcelService(parcels ports.ParcelRepository, cache ports.CacheService) *ParcelService {
	return &ParcelService{parcels: parcels, cache: cache}
}

// GetByID returns a single parcel.
func (s *ParcelService) GetByID(ctx context.Context, id string) (*domain.Parcel, error) {
	if id == "" {
		return nil, fmt.Errorf("parcel id must not be empty")
	}

	cacheKey := "parcels:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p domain.Parcel
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("parcel").Inc()
				return &p, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("parcel").Inc()
	}

	p, err := s.parcels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600) // parcels change yearly
		}
	}
	return p, nil
}

// List returns parcels of a commune (all communes when empty) with the total count.
func (s *ParcelService) List(ctx context.Context, commune string, limit, offset int) ([]domain.Parcel, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.parcels.List(ctx, commune, limit, offset)
}

package main

import (
	"context"
	"fmt"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// parcelIndex serves parcels decoded from a cadastre file, for runs without
// a database.
type parcelIndex struct {
	byID  map[string]*domain.Parcel
	order []string
}

func newParcelIndex(parcels []domain.Parcel) *parcelIndex {
	idx := &parcelIndex{byID: make(map[string]*domain.Parcel, len(parcels))}
	_ = idx.UpsertBatch(context.Background(), parcels)
	return idx
}

func (p *parcelIndex) UpsertBatch(_ context.Context, parcels []domain.Parcel) error {
	for i := range parcels {
		if _, ok := p.byID[parcels[i].ID]; !ok {
			p.order = append(p.order, parcels[i].ID)
		}
		p.byID[parcels[i].ID] = &parcels[i]
	}
	return nil
}

func (p *parcelIndex) GetByID(_ context.Context, id string) (*domain.Parcel, error) {
	parcel, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("parcel %s: %w", id, domain.ErrNotFound)
	}
	return parcel, nil
}

func (p *parcelIndex) List(_ context.Context, commune string, limit, offset int) ([]domain.Parcel, int, error) {
	var matched []domain.Parcel
	for _, id := range p.order {
		if parcel := p.byID[id]; commune == "" || parcel.Commune == commune {
			matched = append(matched, *parcel)
		}
	}
	total := len(matched)
	if offset >= total {
		return []domain.Parcel{}, total, nil
	}
	end := min(offset+limit, total)
	return matched[offset:end], total, nil
}

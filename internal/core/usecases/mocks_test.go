package usecases_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// --- Mock ParcelRepository ---

type mockParcelRepo struct {
	upsertBatchFn func(ctx context.Context, parcels []domain.Parcel) error
	getByIDFn     func(ctx context.Context, id string) (*domain.Parcel, error)
	listFn        func(ctx context.Context, commune string, limit, offset int) ([]domain.Parcel, int, error)
}

func (m *mockParcelRepo) UpsertBatch(ctx context.Context, parcels []domain.Parcel) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, parcels)
	}
	return nil
}

func (m *mockParcelRepo) GetByID(ctx context.Context, id string) (*domain.Parcel, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockParcelRepo) List(ctx context.Context, commune string, limit, offset int) ([]domain.Parcel, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, commune, limit, offset)
	}
	return nil, 0, nil
}

// --- Mock PictureRepository ---

type mockPictureRepo struct {
	recorded []domain.Picture
	recordFn func(ctx context.Context, p *domain.Picture) error
	listFn   func(ctx context.Context, parcelID string, limit, offset int) ([]domain.Picture, int, error)
}

func (m *mockPictureRepo) Record(ctx context.Context, p *domain.Picture) error {
	if m.recordFn != nil {
		if err := m.recordFn(ctx, p); err != nil {
			return err
		}
	}
	m.recorded = append(m.recorded, *p)
	return nil
}

func (m *mockPictureRepo) List(ctx context.Context, parcelID string, limit, offset int) ([]domain.Picture, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, parcelID, limit, offset)
	}
	return m.recorded, len(m.recorded), nil
}

// --- Mock ImageFetcher ---

type mockFetcher struct {
	urls    []string
	fetchFn func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	m.urls = append(m.urls, url)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return []byte("\x89PNG fake"), "image/png", nil
}

// --- Mock PictureStore ---

type mockStore struct {
	saved  map[string][]byte
	saveFn func(ctx context.Context, folder, filename string, data []byte) (string, error)
}

func (m *mockStore) Save(ctx context.Context, folder, filename string, data []byte) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, folder, filename, data)
	}
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	p := folder + "/" + filename
	m.saved[p] = data
	return p, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	pictures []domain.Picture
	splits   []domain.SplitReport
	imports  []domain.ImportReport
}

func (m *mockPublisher) PublishPictureSaved(ctx context.Context, p *domain.Picture) error {
	m.pictures = append(m.pictures, *p)
	return nil
}

func (m *mockPublisher) PublishSplitCompleted(ctx context.Context, r *domain.SplitReport) error {
	m.splits = append(m.splits, *r)
	return nil
}

func (m *mockPublisher) PublishParcelsImported(ctx context.Context, r *domain.ImportReport) error {
	m.imports = append(m.imports, *r)
	return nil
}

// --- Mock CadastrePortal ---

type mockPortal struct {
	findLinkFn func(ctx context.Context, indexURL, keyword string) (string, error)
	openFn     func(ctx context.Context, url string) (io.ReadCloser, error)
}

func (m *mockPortal) FindLink(ctx context.Context, indexURL, keyword string) (string, error) {
	if m.findLinkFn != nil {
		return m.findLinkFn(ctx, indexURL, keyword)
	}
	return "", domain.ErrLinkNotFound
}

func (m *mockPortal) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if m.openFn != nil {
		return m.openFn(ctx, url)
	}
	return nil, errors.New("not configured")
}

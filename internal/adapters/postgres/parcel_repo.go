package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// ParcelRepo implements ports.ParcelRepository with pgx and PostGIS.
type ParcelRepo struct {
	db *DB
}

// NewParcelRepo creates a new ParcelRepo.
func NewParcelRepo(db *DB) *ParcelRepo {
	return &ParcelRepo{db: db}
}

const upsertParcelSQL = `
	INSERT INTO parcels (id, commune, prefixe, section, numero, contenance, geom, source_created, source_updated)
	VALUES ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_GeomFromGeoJSON($7), 4326), $8, $9)
	ON CONFLICT (id) DO UPDATE
	SET commune = EXCLUDED.commune, prefixe = EXCLUDED.prefixe,
	    section = EXCLUDED.section, numero = EXCLUDED.numero,
	    contenance = EXCLUDED.contenance, geom = EXCLUDED.geom,
	    source_created = EXCLUDED.source_created, source_updated = EXCLUDED.source_updated,
	    updated_at = NOW()
`

// UpsertBatch inserts many parcels using pgx.Batch.
func (r *ParcelRepo) UpsertBatch(ctx context.Context, parcels []domain.Parcel) error {
	if len(parcels) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range parcels {
		geometry, err := geojson.Marshal(p.Polygon)
		if err != nil {
			return fmt.Errorf("parcel %s geometry: %w", p.ID, err)
		}
		batch.Queue(upsertParcelSQL,
			p.ID, p.Commune, p.Prefixe, p.Section, p.Numero, p.Contenance,
			string(geometry), nullTime(p.CreatedAt), nullTime(p.UpdatedAt))
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range parcels {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

const parcelColumns = `
	id, commune, COALESCE(prefixe, ''), COALESCE(section, ''), COALESCE(numero, ''),
	COALESCE(contenance, 0), ST_AsGeoJSON(geom), created_at, updated_at
`

// GetByID returns a parcel by its cadastral id.
func (r *ParcelRepo) GetByID(ctx context.Context, id string) (*domain.Parcel, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+parcelColumns+` FROM parcels WHERE id = $1`, id)
	p, err := scanParcel(row)
	if err != nil {
		return nil, notFound(err, "parcel", id)
	}
	return p, nil
}

// List returns parcels ordered by id, optionally for one commune, with the total count.
func (r *ParcelRepo) List(ctx context.Context, commune string, limit, offset int) ([]domain.Parcel, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM parcels WHERE $1 = '' OR commune = $1
	`, commune).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+parcelColumns+`
		FROM parcels
		WHERE $1 = '' OR commune = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, commune, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	parcels := []domain.Parcel{}
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, 0, err
		}
		parcels = append(parcels, *p)
	}
	return parcels, total, rows.Err()
}

func scanParcel(row pgx.Row) (*domain.Parcel, error) {
	var p domain.Parcel
	var geometry string
	if err := row.Scan(
		&p.ID, &p.Commune, &p.Prefixe, &p.Section, &p.Numero,
		&p.Contenance, &geometry, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var g geom.T
	if err := geojson.Unmarshal([]byte(geometry), &g); err != nil {
		return nil, fmt.Errorf("parcel %s geometry: %w", p.ID, err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("parcel %s: %w: %T", p.ID, domain.ErrUnsupportedGeometry, g)
	}
	p.Polygon = poly
	return &p, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

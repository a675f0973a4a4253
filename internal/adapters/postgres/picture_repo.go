package postgres

import (
	"context"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// PictureRepo implements ports.PictureRepository with pgx.
type PictureRepo struct {
	db *DB
}

// NewPictureRepo creates a new PictureRepo.
func NewPictureRepo(db *DB) *PictureRepo {
	return &PictureRepo{db: db}
}

// Record inserts a picture row; replaying the same id is a no-op.
func (r *PictureRepo) Record(ctx context.Context, p *domain.Picture) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO pictures (id, mode, parcel_id, zipcode, has_pool, address, filename, path,
		                      width, height, zoom, format, content_type, bytes, cached, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Mode, p.ParcelID, p.Zipcode, p.HasPool, p.Address, p.Filename, p.Path,
		p.Width, p.Height, p.Zoom, p.Format, p.ContentType, p.Bytes, p.Cached, p.CreatedAt)
	return err
}

// List returns pictures newest first, optionally for one parcel, with the total count.
func (r *PictureRepo) List(ctx context.Context, parcelID string, limit, offset int) ([]domain.Picture, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM pictures WHERE $1 = '' OR parcel_id = $1
	`, parcelID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, mode, COALESCE(parcel_id, ''), zipcode, has_pool, address, filename, path,
		       width, height, zoom, format, content_type, bytes, cached, created_at
		FROM pictures
		WHERE $1 = '' OR parcel_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, parcelID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	pics := []domain.Picture{}
	for rows.Next() {
		var p domain.Picture
		if err := rows.Scan(
			&p.ID, &p.Mode, &p.ParcelID, &p.Zipcode, &p.HasPool, &p.Address, &p.Filename, &p.Path,
			&p.Width, &p.Height, &p.Zoom, &p.Format, &p.ContentType, &p.Bytes, &p.Cached, &p.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		pics = append(pics, p)
	}
	return pics, total, rows.Err()
}

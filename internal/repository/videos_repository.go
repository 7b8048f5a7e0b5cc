// Package repository provides Postgres data access for videos and highlights.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/models"
)

// VideosRepository handles data access for the videos table.
type VideosRepository struct {
	db *pgxpool.Pool
}

// NewVideosRepository creates a new videos repository.
func NewVideosRepository(db *pgxpool.Pool) *VideosRepository {
	return &VideosRepository{db: db}
}

// UpsertVideo inserts a video, or updates source and duration of the row with the same external uid.
// A nil uid always inserts.
func (r *VideosRepository) UpsertVideo(
	ctx context.Context, source string, externalUID *string, durationSec *int,
) (*models.Video, error) {
	query := `
		INSERT INTO videos (source, external_uid, duration_sec)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_uid)
		DO UPDATE SET source = EXCLUDED.source, duration_sec = EXCLUDED.duration_sec
		RETURNING id, source, external_uid, duration_sec, created_at
	`

	var v models.Video

	err := r.db.QueryRow(ctx, query, source, externalUID, durationSec).Scan(
		&v.ID, &v.Source, &v.ExternalUID, &v.DurationSec, &v.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert video: %w", err)
	}

	return &v, nil
}

// GetByID retrieves a single video.
func (r *VideosRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	var v models.Video

	err := r.db.QueryRow(ctx,
		`SELECT id, source, external_uid, duration_sec, created_at FROM videos WHERE id = $1`, id,
	).Scan(&v.ID, &v.Source, &v.ExternalUID, &v.DurationSec, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("video", "video not found")
		}

		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &v, nil
}

// Delete removes a video and, by cascade, its highlights.
func (r *VideosRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("video", "video not found")
	}

	return nil
}

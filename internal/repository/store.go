package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmark/highlights/internal/models"
)

// Store is the Postgres-backed store used by the pipeline, retrieval and the API.
type Store struct {
	*VideosRepository
	*HighlightsRepository
}

// NewStore creates a Store over db. The pool must have pgvector types registered.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		VideosRepository:     NewVideosRepository(db),
		HighlightsRepository: NewHighlightsRepository(db),
	}
}

// GetVideo returns a video with its highlights.
func (s *Store) GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error) {
	v, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hs, err := s.ListByVideo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}

	return &models.VideoWithHighlights{Video: *v, Highlights: hs}, nil
}

// DeleteVideo removes a video and its highlights.
func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	return s.Delete(ctx, id)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/jobs"
	"github.com/clipmark/highlights/internal/models"
)

// VideoStore is the read/delete side of video persistence used by the API.
type VideoStore interface {
	GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error)
	DeleteVideo(ctx context.Context, id int64) error
}

// VideosService enqueues processing jobs and serves processed videos.
type VideosService struct {
	store    VideoStore
	inserter jobs.JobInserter
}

// NewVideosService creates a new videos service.
func NewVideosService(store VideoStore, inserter jobs.JobInserter) *VideosService {
	return &VideosService{store: store, inserter: inserter}
}

// EnqueueVideo schedules a process_video job for the request's source.
func (s *VideosService) EnqueueVideo(
	ctx context.Context, req *models.ProcessVideoRequest,
) (*models.ProcessVideoResponse, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, huberrors.NewValidationError("source", "source is required")
	}

	jobID, err := s.inserter.InsertProcessVideoJob(ctx, jobs.ProcessVideoArgs{Source: source})
	if err != nil {
		return nil, fmt.Errorf("enqueue process_video: %w", err)
	}

	return &models.ProcessVideoResponse{JobID: jobID, Source: source}, nil
}

// GetVideo returns the video with its highlights in timeline order.
func (s *VideosService) GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error) {
	return s.store.GetVideo(ctx, id)
}

// DeleteVideo removes the video and, by cascade, its highlights.
func (s *VideosService) DeleteVideo(ctx context.Context, id int64) error {
	return s.store.DeleteVideo(ctx, id)
}

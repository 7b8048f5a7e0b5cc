package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipmark/highlights/internal/api/response"
	"github.com/clipmark/highlights/internal/api/validation"
	"github.com/clipmark/highlights/internal/models"
)

// VideosService enqueues and serves processed videos.
type VideosService interface {
	EnqueueVideo(ctx context.Context, req *models.ProcessVideoRequest) (*models.ProcessVideoResponse, error)
	GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error)
	DeleteVideo(ctx context.Context, id int64) error
}

// VideosHandler handles HTTP requests for videos.
type VideosHandler struct {
	service VideosService
}

// NewVideosHandler creates a new videos handler.
func NewVideosHandler(service VideosService) *VideosHandler {
	return &VideosHandler{service: service}
}

// Create handles POST /v1/videos. Processing happens in a background job; the response carries its id.
func (h *VideosHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessVideoRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		validation.RespondDecodeError(w, err)
		return
	}

	resp, err := h.service.EnqueueVideo(r.Context(), &req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusAccepted, resp)
}

// Get handles GET /v1/videos/{id}.
func (h *VideosHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}

	video, err := h.service.GetVideo(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, video)
}

// Delete handles DELETE /v1/videos/{id}. Highlights are removed with the video.
func (h *VideosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteVideo(r.Context(), id); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func videoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.RespondBadRequest(w, "Invalid video ID")
		return 0, false
	}

	return id, true
}

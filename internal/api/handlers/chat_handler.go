package handlers

import (
	"context"
	"net/http"

	"github.com/clipmark/highlights/internal/api/response"
	"github.com/clipmark/highlights/internal/api/validation"
	"github.com/clipmark/highlights/internal/models"
)

// ChatService answers questions about processed videos.
type ChatService interface {
	Query(ctx context.Context, req *models.ChatQueryRequest) (*models.ChatQueryResponse, error)
}

// ChatHandler handles question answering.
type ChatHandler struct {
	service ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Query handles POST /v1/chat/query.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.ChatQueryRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		validation.RespondDecodeError(w, err)
		return
	}

	resp, err := h.service.Query(r.Context(), &req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}

package service

import (
	"context"

	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/internal/retrieval"
)

// Answerer answers a question from stored highlights. *retrieval.Engine satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*retrieval.Answer, error)
}

// ChatService answers natural-language questions about processed videos.
type ChatService struct {
	answerer Answerer
}

// NewChatService creates a new chat service.
func NewChatService(answerer Answerer) *ChatService {
	return &ChatService{answerer: answerer}
}

// Query answers req.Question. Matches is never nil so it encodes as [].
func (s *ChatService) Query(ctx context.Context, req *models.ChatQueryRequest) (*models.ChatQueryResponse, error) {
	ans, err := s.answerer.Answer(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	matches := ans.Matches
	if matches == nil {
		matches = []models.SearchResult{}
	}

	return &models.ChatQueryResponse{Answer: ans.Text, Mode: ans.Mode, Matches: matches}, nil
}

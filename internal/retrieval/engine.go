// Package retrieval answers questions from stored highlights without generating text.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/pkg/cache"
)

// Fixed answers.
const (
	NoResultsAnswer = "I couldn't find relevant highlights for that question."
	NoTextAnswer    = "No highlight text available."
)

// Answer modes.
const (
	ModeVector  = "vector"
	ModeKeyword = "keyword"
	ModeNone    = "none"
)

// Defaults for Params.
const (
	DefaultTopK           = 6
	DefaultMaxKeywords    = 3
	DefaultQueryCacheSize = 1000
)

// Embedder turns a question into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher reads highlights.
type Searcher interface {
	VectorSearch(ctx context.Context, embedding []float32, topK int) ([]models.SearchResult, error)
	KeywordSearch(ctx context.Context, terms []string, topK int) ([]models.SearchResult, error)
}

// Params tunes the engine. Zero values take defaults. A non-nil empty StopWords disables stop words.
type Params struct {
	TopK           int
	MaxKeywords    int
	StopWords      []string
	QueryCacheSize int
	Metrics        observability.RetrievalMetrics
	Logger         *slog.Logger
}

// Answer is a composed reply. Matches are in timeline order.
type Answer struct {
	Text    string
	Mode    string
	Matches []models.SearchResult
}

// Engine answers questions with vector search, then keyword search.
type Engine struct {
	searcher   Searcher
	embedder   Embedder
	queries    *cache.Loading[string, []float32]
	params     Params
	stopWords  map[string]struct{}
	strategies []strategy
	metrics    observability.RetrievalMetrics
	logger     *slog.Logger
}

// strategy returns rows or nil to hand over to the next one. Errors end the answer.
type strategy struct {
	mode   string
	search func(ctx context.Context, question string) ([]models.SearchResult, error)
}

// NewEngine creates an Engine. A nil embedder disables vector search.
func NewEngine(searcher Searcher, embedder Embedder, params Params) (*Engine, error) {
	if params.TopK <= 0 {
		params.TopK = DefaultTopK
	}

	if params.MaxKeywords <= 0 {
		params.MaxKeywords = DefaultMaxKeywords
	}

	if params.StopWords == nil {
		params.StopWords = DefaultStopWords
	}

	if params.QueryCacheSize <= 0 {
		params.QueryCacheSize = DefaultQueryCacheSize
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	queries, err := cache.NewLoading[string, []float32](params.QueryCacheSize, normalizeQuestion)
	if err != nil {
		return nil, fmt.Errorf("create query embedding cache: %w", err)
	}

	e := &Engine{
		searcher:  searcher,
		embedder:  embedder,
		queries:   queries,
		params:    params,
		stopWords: StopWordSet(params.StopWords),
		metrics:   params.Metrics,
		logger:    logger,
	}
	e.strategies = []strategy{
		{mode: ModeVector, search: e.vectorSearch},
		{mode: ModeKeyword, search: e.keywordSearch},
	}

	return e, nil
}

// Answer composes a reply to question from the best-matching highlights.
func (e *Engine) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	q := strings.TrimSpace(question)
	if q == "" {
		return e.finish(ctx, start, &Answer{Text: NoResultsAnswer, Mode: ModeNone, Matches: []models.SearchResult{}}), nil
	}

	for _, s := range e.strategies {
		rows, err := s.search(ctx, q)
		if err != nil {
			return nil, err
		}

		if len(rows) > 0 {
			text, ordered := Compose(rows)

			return e.finish(ctx, start, &Answer{Text: text, Mode: s.mode, Matches: ordered}), nil
		}
	}

	return e.finish(ctx, start, &Answer{Text: NoResultsAnswer, Mode: ModeNone, Matches: []models.SearchResult{}}), nil
}

func (e *Engine) finish(ctx context.Context, start time.Time, a *Answer) *Answer {
	if e.metrics != nil {
		e.metrics.RecordAnswer(ctx, a.Mode, time.Since(start))
	}

	e.logger.Debug("retrieval: answered", "mode", a.Mode, "matches", len(a.Matches))

	return a
}

// vectorSearch never fails: every problem hands over to keyword search.
func (e *Engine) vectorSearch(ctx context.Context, question string) ([]models.SearchResult, error) {
	if e.embedder == nil {
		e.vectorFallback(ctx, observability.VectorFallbackNoEmbedder, nil)

		return nil, nil
	}

	vec, hit, err := e.queries.Get(ctx, question, func(ctx context.Context, q string) ([]float32, error) {
		return e.embedder.Embed(ctx, q)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		e.vectorFallback(ctx, observability.VectorFallbackEmbedError, err)

		return nil, nil
	}

	if e.metrics != nil {
		e.metrics.RecordQueryCache(ctx, hit)
	}

	rows, err := e.searcher.VectorSearch(ctx, vec, e.params.TopK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		e.vectorFallback(ctx, observability.VectorFallbackSearchError, err)

		return nil, nil
	}

	if len(rows) == 0 {
		e.vectorFallback(ctx, observability.VectorFallbackEmpty, nil)
	}

	return rows, nil
}

func (e *Engine) keywordSearch(ctx context.Context, question string) ([]models.SearchResult, error) {
	terms := ExtractKeywords(question, e.stopWords, e.params.MaxKeywords)

	rows, err := e.searcher.KeywordSearch(ctx, terms, e.params.TopK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	return rows, nil
}

func (e *Engine) vectorFallback(ctx context.Context, reason string, err error) {
	if err != nil {
		e.logger.Warn("retrieval: vector search unavailable, using keywords", "reason", reason, "error", err)
	} else {
		e.logger.Debug("retrieval: vector search yielded nothing, using keywords", "reason", reason)
	}

	if e.metrics != nil {
		e.metrics.RecordVectorFallback(ctx, reason)
	}
}

// Compose renders rows in (video_id, ts_start_sec) order as "[Ss–Es] text" sentences.
// It returns the text and the rows in the same order.
func Compose(rows []models.SearchResult) (string, []models.SearchResult) {
	ordered := make([]models.SearchResult, len(rows))
	copy(ordered, rows)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].VideoID != ordered[j].VideoID {
			return ordered[i].VideoID < ordered[j].VideoID
		}

		return ordered[i].TsStartSec < ordered[j].TsStartSec
	})

	sentences := make([]string, 0, len(ordered))

	for _, r := range ordered {
		if text := r.Text(); text != "" {
			sentences = append(sentences, fmt.Sprintf("[%ds–%ds] %s", r.TsStartSec, r.TsEndSec, text))
		}
	}

	if len(sentences) == 0 {
		return NoTextAnswer, ordered
	}

	return strings.Join(sentences, " "), ordered
}

// normalizeQuestion folds case and whitespace so equivalent questions share a cache entry.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

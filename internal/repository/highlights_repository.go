package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clipmark/highlights/internal/models"
)

// KeywordScore is the score attached to keyword matches.
const KeywordScore = 0.5

// HighlightsRepository handles data access for the highlights table.
type HighlightsRepository struct {
	db *pgxpool.Pool
}

// NewHighlightsRepository creates a new highlights repository.
func NewHighlightsRepository(db *pgxpool.Pool) *HighlightsRepository {
	return &HighlightsRepository{db: db}
}

// ReplaceHighlights swaps a video's highlights for candidates in one transaction
// and returns the new IDs in order.
func (r *HighlightsRepository) ReplaceHighlights(
	ctx context.Context, videoID int64, candidates []models.HighlightCandidate,
) ([]int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin highlights insert: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM highlights WHERE video_id = $1`, videoID); err != nil {
		return nil, fmt.Errorf("failed to clear highlights: %w", err)
	}

	batch := &pgx.Batch{}

	for _, c := range candidates {
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}

		batch.Queue(`
			INSERT INTO highlights (video_id, ts_start_sec, ts_end_sec, description, summary, embedding, objects, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			videoID, c.TsStartSec, c.TsEndSec, c.Description, c.Summary, embedding,
			models.JoinObjectNames(c.Objects), c.Confidence,
		)
	}

	if len(candidates) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit highlights: %w", err)
		}

		return []int64{}, nil
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, 0, len(candidates))

	for range candidates {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			_ = results.Close()

			return nil, fmt.Errorf("failed to insert highlight: %w", err)
		}

		ids = append(ids, id)
	}

	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to insert highlights: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit highlights: %w", err)
	}

	return ids, nil
}

// ListByVideo returns a video's highlights in timeline order.
func (r *HighlightsRepository) ListByVideo(ctx context.Context, videoID int64) ([]models.Highlight, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, video_id, ts_start_sec, ts_end_sec, description, summary, confidence, objects, created_at
		FROM highlights
		WHERE video_id = $1
		ORDER BY ts_start_sec, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	defer rows.Close()

	highlights := []models.Highlight{}

	for rows.Next() {
		var h models.Highlight
		if err := rows.Scan(
			&h.ID, &h.VideoID, &h.TsStartSec, &h.TsEndSec, &h.Description, &h.Summary,
			&h.Confidence, &h.Objects, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan highlight: %w", err)
		}

		highlights = append(highlights, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating highlights: %w", err)
	}

	return highlights, nil
}

// VectorSearch returns the topK highlights nearest to embedding by cosine distance.
// Score is 1 - distance.
func (r *HighlightsRepository) VectorSearch(
	ctx context.Context, embedding []float32, topK int,
) ([]models.SearchResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, video_id, ts_start_sec, ts_end_sec, description, summary, objects,
			1 - (embedding <=> $1) AS score
		FROM highlights
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return scanSearchResults(rows)
}

// KeywordSearch returns highlights whose description or summary contains any term, case-insensitively,
// ordered by video and start time.
func (r *HighlightsRepository) KeywordSearch(
	ctx context.Context, terms []string, topK int,
) ([]models.SearchResult, error) {
	query, args, err := buildKeywordQuery(terms, topK)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	return scanSearchResults(rows)
}

// buildKeywordQuery builds the ILIKE query for terms. LIKE wildcards in terms match literally.
func buildKeywordQuery(terms []string, topK int) (string, []any, error) {
	patterns := make([]string, 0, len(terms))

	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			patterns = append(patterns, "%"+escapeLike(t)+"%")
		}
	}

	if len(patterns) == 0 {
		return "", nil, fmt.Errorf("keyword search: at least one term is required")
	}

	query := fmt.Sprintf(`
		SELECT id, video_id, ts_start_sec, ts_end_sec, description, summary, objects,
			%v::float8 AS score
		FROM highlights
		WHERE description ILIKE ANY($1) OR summary ILIKE ANY($1)
		ORDER BY video_id, ts_start_sec
		LIMIT $2`, KeywordScore)

	return query, []any{patterns, topK}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanSearchResults(rows pgx.Rows) ([]models.SearchResult, error) {
	defer rows.Close()

	var results []models.SearchResult

	for rows.Next() {
		var (
			res     models.SearchResult
			objects *string
		)

		if err := rows.Scan(
			&res.ID, &res.VideoID, &res.TsStartSec, &res.TsEndSec, &res.Description, &res.Summary,
			&objects, &res.Score,
		); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}

		res.Objects = models.SplitObjectNames(objects)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

// Package sqlite is a single-file store for local runs. Vector search scans all embeddings in process.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"

	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/pkg/embeddings"
)

// KeywordScore is the score attached to keyword matches.
const KeywordScore = 0.5

//go:embed schema.sql
var schema string

func init() {
	msqlite.MustRegisterDeterministicScalarFunction("fold_case", 1, foldCase)
}

// foldCase lower-cases text with Unicode rules. SQLite's own lower() and LIKE fold ASCII only.
func foldCase(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Store keeps videos and highlights in one SQLite file.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and applies the schema. ":memory:" is allowed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("opened sqlite store", "path", path)

	return &Store{conn: conn, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// UpsertVideo inserts a video, or updates source and duration of the row with the same external uid.
func (s *Store) UpsertVideo(
	ctx context.Context, source string, externalUID *string, durationSec *int,
) (*models.Video, error) {
	var (
		v       models.Video
		created int64
	)

	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO videos (source, external_uid, duration_sec, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (external_uid)
		DO UPDATE SET source = excluded.source, duration_sec = excluded.duration_sec
		RETURNING id, source, external_uid, duration_sec, created_at`,
		source, externalUID, durationSec, time.Now().UnixMilli(),
	).Scan(&v.ID, &v.Source, &v.ExternalUID, &v.DurationSec, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert video: %w", err)
	}

	v.CreatedAt = time.UnixMilli(created).UTC()

	return &v, nil
}

// ReplaceHighlights swaps a video's highlights for candidates in one transaction
// and returns the new IDs in order.
func (s *Store) ReplaceHighlights(
	ctx context.Context, videoID int64, candidates []models.HighlightCandidate,
) ([]int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin highlights insert: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM highlights WHERE video_id = ?`, videoID); err != nil {
		return nil, fmt.Errorf("failed to clear highlights: %w", err)
	}

	now := time.Now().UnixMilli()
	ids := make([]int64, 0, len(candidates))

	for _, c := range candidates {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO highlights (video_id, ts_start_sec, ts_end_sec, description, summary, embedding, objects, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			videoID, c.TsStartSec, c.TsEndSec, c.Description, c.Summary, encodeVector(c.Embedding),
			models.JoinObjectNames(c.Objects), c.Confidence, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert highlight: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read highlight id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit highlights: %w", err)
	}

	return ids, nil
}

// GetVideo returns a video with its highlights in timeline order.
func (s *Store) GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error) {
	var (
		out     models.VideoWithHighlights
		created int64
	)

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, source, external_uid, duration_sec, created_at FROM videos WHERE id = ?`, id,
	).Scan(&out.ID, &out.Source, &out.ExternalUID, &out.DurationSec, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("video", "video not found")
		}

		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	out.CreatedAt = time.UnixMilli(created).UTC()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, video_id, ts_start_sec, ts_end_sec, description, summary, confidence, objects, created_at
		FROM highlights WHERE video_id = ? ORDER BY ts_start_sec, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	defer rows.Close()

	out.Highlights = []models.Highlight{}

	for rows.Next() {
		var h models.Highlight
		if err := rows.Scan(&h.ID, &h.VideoID, &h.TsStartSec, &h.TsEndSec, &h.Description, &h.Summary,
			&h.Confidence, &h.Objects, &created); err != nil {
			return nil, fmt.Errorf("failed to scan highlight: %w", err)
		}

		h.CreatedAt = time.UnixMilli(created).UTC()
		out.Highlights = append(out.Highlights, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating highlights: %w", err)
	}

	return &out, nil
}

// DeleteVideo removes a video and its highlights.
func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return huberrors.NewNotFoundError("video", "video not found")
	}

	return nil
}

// VectorSearch ranks every stored embedding by cosine similarity and returns the best topK.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, topK int) ([]models.SearchResult, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, video_id, ts_start_sec, ts_end_sec, description, summary, objects, embedding
		FROM highlights WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult

	for rows.Next() {
		var (
			res     models.SearchResult
			objects *string
			blob    []byte
		)

		if err := rows.Scan(&res.ID, &res.VideoID, &res.TsStartSec, &res.TsEndSec, &res.Description,
			&res.Summary, &objects, &blob); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}

		stored := decodeVector(blob)
		if len(stored) != len(embedding) {
			continue
		}

		res.Objects = models.SplitObjectNames(objects)
		res.Score = embeddings.CosineSimilarity(embedding, stored)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// KeywordSearch returns highlights whose description or summary contains any term, ignoring case.
func (s *Store) KeywordSearch(ctx context.Context, terms []string, topK int) ([]models.SearchResult, error) {
	var (
		conds []string
		args  []any
	)

	for _, t := range terms {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}

		p := "%" + likeEscaper.Replace(strings.ToLower(t)) + "%"
		conds = append(conds, `fold_case(description) LIKE ? ESCAPE '\' OR fold_case(summary) LIKE ? ESCAPE '\'`)
		args = append(args, p, p)
	}

	if len(conds) == 0 {
		return nil, fmt.Errorf("keyword search: at least one term is required")
	}

	args = append(args, topK)

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, video_id, ts_start_sec, ts_end_sec, description, summary, objects
		FROM highlights
		WHERE `+strings.Join(conds, " OR ")+`
		ORDER BY video_id, ts_start_sec
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult

	for rows.Next() {
		var (
			res     models.SearchResult
			objects *string
		)

		if err := rows.Scan(&res.ID, &res.VideoID, &res.TsStartSec, &res.TsEndSec, &res.Description,
			&res.Summary, &objects); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}

		res.Objects = models.SplitObjectNames(objects)
		res.Score = KeywordScore
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// encodeVector packs v as little-endian float32s. Empty vectors are stored as NULL.
func encodeVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}

	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}

	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}

	return v
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmark/highlights/internal/config"
	"github.com/clipmark/highlights/internal/highlight"
	"github.com/clipmark/highlights/internal/media"
	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/internal/pipeline"
	"github.com/clipmark/highlights/internal/repository"
	"github.com/clipmark/highlights/internal/repository/sqlite"
	"github.com/clipmark/highlights/internal/retrieval"
	"github.com/clipmark/highlights/pkg/database"
)

// Store is everything the pipeline, retrieval engine and API need from persistence.
type Store interface {
	pipeline.Store
	retrieval.Searcher
	GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error)
	DeleteVideo(ctx context.Context, id int64) error
}

// StoreHandle is an opened store. Pool is nil for the SQLite driver.
type StoreHandle struct {
	Store Store
	Pool  *pgxpool.Pool
	close func()
}

// Close releases the store's connections.
func (h *StoreHandle) Close() {
	if h.close != nil {
		h.close()
	}
}

// OpenStore opens the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*StoreHandle, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}

		return &StoreHandle{Store: s, close: func() { _ = s.Close() }}, nil
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
			database.WithVectorTypes(),
			database.WithMaxConns(int32(cfg.DatabaseMaxConns)), //nolint:gosec // small config value
		)
		if err != nil {
			return nil, err
		}

		return &StoreHandle{Store: repository.NewStore(pool), Pool: pool, close: pool.Close}, nil
	}
}

// Generator produces model text and embeddings. *llm.Gateway satisfies it.
type Generator interface {
	highlight.Generator
	highlight.Embedder
}

// NewClassifier builds the highlight classifier from cfg.
func NewClassifier(cfg config.PipelineConfig, gen Generator, logger *slog.Logger) *highlight.Classifier {
	return highlight.NewClassifier(gen, gen, highlight.Params{
		DefaultConfidence:  cfg.DefaultConfidence,
		FallbackConfidence: cfg.FallbackConfidence,
		TranscriptMaxChars: cfg.TranscriptMaxChars,
		Logger:             logger,
	})
}

// NewOrchestrator wires the media adapters, classifier and store into a pipeline.
// Empty TRANSCRIBE_COMMAND / DETECT_COMMAND select the no-op adapters.
func NewOrchestrator(
	cfg config.PipelineConfig, gen Generator, store pipeline.Store,
	metrics observability.PipelineMetrics, logger *slog.Logger,
) *pipeline.Orchestrator {
	prober := media.FFprobe{Binary: cfg.FFprobePath}

	var transcriber pipeline.Transcriber = media.NoopTranscriber{}
	if cfg.TranscribeCommand != "" {
		transcriber = media.CommandTranscriber{Command: cfg.TranscribeCommand}
	}

	var detector pipeline.ObjectDetector = media.NoopDetector{}
	if cfg.DetectCommand != "" {
		detector = media.CommandDetector{Command: cfg.DetectCommand}
	}

	return pipeline.NewOrchestrator(pipeline.Deps{
		Fetcher:     media.NewFileFetcher(cfg.VideoCacheDir, media.WithFetcherLogger(logger)),
		Transcriber: transcriber,
		Prober:      prober,
		Scenes:      media.FFmpegSceneDetector{Binary: cfg.FFmpegPath, Threshold: cfg.SceneThreshold, Prober: prober},
		Sampler: media.FFmpegFrameSampler{
			Binary:   cfg.FFmpegPath,
			EverySec: cfg.FrameSampleEverySec,
			Dir:      filepath.Join(cfg.VideoCacheDir, "frames"),
		},
		Detector:   detector,
		Classifier: NewClassifier(cfg, gen, logger),
		Store:      store,
	}, pipeline.Params{
		ClassifyDelay:         cfg.ClassifyDelay,
		DefaultSegmentSec:     cfg.DefaultSegmentSec,
		DetectorMinConfidence: cfg.DetectorMinConfidence,
		Metrics:               metrics,
		Logger:                logger,
	})
}

// NewEngine builds the retrieval engine. A nil embedder restricts answers to keyword search.
func NewEngine(
	cfg config.SearchConfig, searcher retrieval.Searcher, embedder retrieval.Embedder,
	metrics observability.RetrievalMetrics, logger *slog.Logger,
) (*retrieval.Engine, error) {
	return retrieval.NewEngine(searcher, embedder, retrieval.Params{
		TopK:           cfg.TopK,
		MaxKeywords:    cfg.MaxKeywords,
		StopWords:      cfg.StopWords,
		QueryCacheSize: cfg.QueryCacheSize,
		Metrics:        metrics,
		Logger:         logger,
	})
}

// Package workers provides River job workers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/jobs"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/internal/pipeline"
)

// DefaultProcessTimeout bounds one process_video run.
const DefaultProcessTimeout = 30 * time.Minute

// VideoProcessor runs the highlight pipeline for a source.
type VideoProcessor interface {
	Process(ctx context.Context, source string) (*pipeline.Result, error)
}

// ProcessVideoWorker runs the pipeline for one enqueued source.
type ProcessVideoWorker struct {
	river.WorkerDefaults[jobs.ProcessVideoArgs]

	processor VideoProcessor
	timeout   time.Duration
	logger    *slog.Logger
}

// NewProcessVideoWorker creates the worker. timeout <= 0 uses DefaultProcessTimeout.
func NewProcessVideoWorker(processor VideoProcessor, timeout time.Duration, logger *slog.Logger) *ProcessVideoWorker {
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ProcessVideoWorker{processor: processor, timeout: timeout, logger: logger}
}

// Timeout limits how long a single run can take.
func (w *ProcessVideoWorker) Timeout(*river.Job[jobs.ProcessVideoArgs]) time.Duration {
	return w.timeout
}

// Work processes the source. Missing or invalid sources are cancelled rather than retried.
func (w *ProcessVideoWorker) Work(ctx context.Context, job *river.Job[jobs.ProcessVideoArgs]) error {
	ctx = observability.WithJobID(ctx, job.ID)

	res, err := w.processor.Process(ctx, job.Args.Source)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) || errors.Is(err, huberrors.ErrValidation) {
			w.logger.WarnContext(ctx, "process_video: source unusable, not retrying",
				"source", job.Args.Source, "error", err)

			return river.JobCancel(err)
		}

		return fmt.Errorf("process %s: %w", job.Args.Source, err)
	}

	w.logger.InfoContext(ctx, "process_video: done",
		"source", job.Args.Source,
		"video_id", res.Video.ID,
		"highlights", len(res.Highlights),
		"attempt", job.Attempt,
	)

	return nil
}

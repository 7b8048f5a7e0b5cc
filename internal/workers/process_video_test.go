package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/jobs"
	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/internal/pipeline"
)

type mockProcessor struct {
	ProcessFunc func(ctx context.Context, source string) (*pipeline.Result, error)
}

func (m *mockProcessor) Process(ctx context.Context, source string) (*pipeline.Result, error) {
	return m.ProcessFunc(ctx, source)
}

func job(source string) *river.Job[jobs.ProcessVideoArgs] {
	return &river.Job[jobs.ProcessVideoArgs]{
		JobRow: &rivertype.JobRow{ID: 42, Attempt: 1, MaxAttempts: 3},
		Args:   jobs.ProcessVideoArgs{Source: source},
	}
}

func TestProcessVideoWorker_Work(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotSource string

		var gotJobID any

		p := &mockProcessor{ProcessFunc: func(ctx context.Context, source string) (*pipeline.Result, error) {
			gotSource = source
			gotJobID = ctx.Value(observability.JobIDKey)

			return &pipeline.Result{Video: &models.Video{ID: 1}}, nil
		}}

		err := NewProcessVideoWorker(p, 0, nil).Work(context.Background(), job("a.mp4"))
		require.NoError(t, err)
		assert.Equal(t, "a.mp4", gotSource)
		assert.Equal(t, int64(42), gotJobID)
	})

	t.Run("not found is cancelled", func(t *testing.T) {
		p := &mockProcessor{ProcessFunc: func(context.Context, string) (*pipeline.Result, error) {
			return nil, huberrors.NewNotFoundError("video", "gone")
		}}

		err := NewProcessVideoWorker(p, 0, nil).Work(context.Background(), job("gone.mp4"))
		require.Error(t, err)

		var cancelErr *rivertype.JobCancelError
		assert.ErrorAs(t, err, &cancelErr)
		assert.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("other errors are retried", func(t *testing.T) {
		p := &mockProcessor{ProcessFunc: func(context.Context, string) (*pipeline.Result, error) {
			return nil, errors.New("db down")
		}}

		err := NewProcessVideoWorker(p, 0, nil).Work(context.Background(), job("a.mp4"))
		require.Error(t, err)

		var cancelErr *rivertype.JobCancelError
		assert.False(t, errors.As(err, &cancelErr))
	})
}

func TestProcessVideoWorker_Timeout(t *testing.T) {
	assert.Equal(t, DefaultProcessTimeout, NewProcessVideoWorker(nil, 0, nil).Timeout(nil))
	assert.Equal(t, time.Minute, NewProcessVideoWorker(nil, time.Minute, nil).Timeout(nil))
}

package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client      *river.Client[pgx.Tx]
	maxAttempts int
}

// NewRiverJobInserter creates a new River-based job inserter. maxAttempts <= 0 keeps River's default.
func NewRiverJobInserter(client *river.Client[pgx.Tx], maxAttempts int) *RiverJobInserter {
	return &RiverJobInserter{client: client, maxAttempts: maxAttempts}
}

// InsertProcessVideoJob enqueues a process_video job, deduplicated by source while one is pending.
func (r *RiverJobInserter) InsertProcessVideoJob(ctx context.Context, args ProcessVideoArgs) (int64, error) {
	res, err := r.client.Insert(ctx, args, &river.InsertOpts{
		MaxAttempts: r.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			// JobStatePending is required by River when using ByState
			ByState: []rivertype.JobState{
				rivertype.JobStatePending,
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("insert process_video job: %w", err)
	}

	return res.Job.ID, nil
}

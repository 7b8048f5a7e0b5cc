package jobs

import (
	"context"
)

// JobInserter enqueues jobs without exposing River to callers.
type JobInserter interface {
	// InsertProcessVideoJob enqueues a process_video job and returns its ID. A source that is
	// already queued or running returns the existing job's ID.
	InsertProcessVideoJob(ctx context.Context, args ProcessVideoArgs) (int64, error)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultQuotaMaxRetries = 3
	defaultQuotaBackoff    = 5 * time.Second
)

// Fallback reasons reported in GenerateResult.
const (
	FallbackNone          = ""
	FallbackQuota         = "quota_exhausted"
	FallbackProviderError = "provider_error"
)

// GenerateResult is the outcome of one generate call after the retry policy has run.
// When FallbackReason is set, Text is FallbackPayload and Err holds the last backend error.
type GenerateResult struct {
	Text           string
	Attempts       int
	FallbackReason string
	Err            error
}

// FellBack reports whether Text is the canonical fallback payload.
func (r GenerateResult) FellBack() bool {
	return r.FallbackReason != FallbackNone
}

// RetryPolicy retries quota errors a fixed number of times with a fixed backoff.
// Total attempts on persistent quota errors = 1 + MaxRetries.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff with the 1-based attempt that failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns 3 retries with a 5s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: defaultQuotaMaxRetries, Backoff: defaultQuotaBackoff}
}

// Run calls generate until it succeeds, fails with a non-quota error, or the quota retries run out.
// Only context cancellation is returned as an error; every other failure resolves to FallbackPayload.
func (p RetryPolicy) Run(ctx context.Context, generate func(ctx context.Context) (string, error)) (GenerateResult, error) {
	maxRetries := max(p.MaxRetries, 0)

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 1; ; attempt++ {
		text, err := generate(ctx)
		if err == nil {
			return GenerateResult{Text: text, Attempts: attempt}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return GenerateResult{Attempts: attempt}, ctxErr
		}

		if !errors.Is(err, ErrQuotaExhausted) {
			return fallback(attempt, FallbackProviderError, err), nil
		}

		if attempt > maxRetries {
			return fallback(attempt, FallbackQuota, err), nil
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if err := sleep(ctx, p.Backoff); err != nil {
			return GenerateResult{Attempts: attempt}, err
		}
	}
}

func fallback(attempts int, reason string, err error) GenerateResult {
	return GenerateResult{Text: FallbackPayload, Attempts: attempts, FallbackReason: reason, Err: err}
}

// sleepCtx blocks for d or until ctx is cancelled; returns ctx.Err() if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

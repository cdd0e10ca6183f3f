package research

import (
	"context"
	"log/slog"
	"time"

	"github.com/mikeboe/deep-research/pkg/observability"
)

// RetryContext describes one failed attempt of a retried call.
type RetryContext struct {
	Operation string
	Attempt   int
	LastError error
}

// Retrier runs operations with a fixed number of attempts and a fixed delay.
//
// Every error is retried the same way, including malformed model output. A stricter
// policy would tag errors as retryable or not; callers that need that must decide
// before handing the operation over.
type Retrier struct {
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	OnRetry  func(RetryContext)
}

func NewRetrier(cfg Config, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		Attempts: cfg.MaxRetryAttempts,
		Delay:    cfg.RetryDelay,
		Logger:   logger,
	}
}

// Retry calls op until it succeeds or r.Attempts attempts have failed. Cancellation
// of ctx stops immediately and returns ctx.Err() rather than a RetryExhaustedError.
func Retry[T any](ctx context.Context, r *Retrier, operation string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var errs []error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		errs = append(errs, err)
		rc := RetryContext{Operation: operation, Attempt: attempt, LastError: err}
		r.Metrics.RecordRetry(ctx, operation)
		if r.OnRetry != nil {
			r.OnRetry(rc)
		}
		if r.Logger != nil {
			r.Logger.Warn("Attempt failed", "operation", operation, "attempt", attempt, "max", attempts, "error", err)
		}

		if attempt == attempts {
			break
		}
		if err := wait(ctx, r.Delay); err != nil {
			return zero, err
		}
	}

	return zero, &RetryExhaustedError{Operation: operation, Errors: errs}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

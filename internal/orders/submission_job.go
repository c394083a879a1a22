package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-shopper/internal/scheduler"
	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

const (
	// SubmissionJobName identifies the order resubmission job in the scheduler.
	SubmissionJobName = "order-submission"

	defaultBatchSize   = 25
	defaultMaxAttempts = 3
)

type pendingStore interface {
	submissionStore
	ListPendingSubmission(ctx context.Context, limit, maxAttempts int, now time.Time) ([]Order, error)
}

// SubmissionJobParams configure the order resubmission job.
type SubmissionJobParams struct {
	Logger      *logger.Logger
	Store       pendingStore
	Submitter   Submitter
	BatchSize   int
	MaxAttempts int
	Now         func() time.Time
}

// SubmissionJob retries delivery of orders whose background submission
// failed or never ran.
type SubmissionJob struct {
	logg        *logger.Logger
	store       pendingStore
	dispatch    *dispatcher
	now         func() time.Time
	batchSize   int
	maxAttempts int
}

// NewSubmissionJob constructs the resubmission job.
func NewSubmissionJob(params SubmissionJobParams) (*SubmissionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Submitter == nil {
		return nil, fmt.Errorf("submitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &SubmissionJob{
		logg:  params.Logger,
		store: params.Store,
		dispatch: &dispatcher{
			submitter: params.Submitter,
			store:     params.Store,
			logg:      params.Logger,
			now:       now,
		},
		now:         now,
		batchSize:   batch,
		maxAttempts: attempts,
	}, nil
}

func (j *SubmissionJob) Name() string { return SubmissionJobName }

// Run submits one batch. When every failure is transient the scheduler is
// asked to retry sooner than the next interval.
func (j *SubmissionJob) Run(ctx context.Context) error {
	pending, err := j.store.ListPendingSubmission(ctx, j.batchSize, j.maxAttempts, j.now())
	if err != nil {
		return scheduler.RetryLater(err)
	}

	var errs []error
	submitted, skipped := 0, 0
	for _, order := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := j.dispatch.submit(ctx, order)
		if errors.Is(err, errSubmissionClaimed) {
			skipped++
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		submitted++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"pending":   len(pending),
		"submitted": submitted,
		"skipped":   skipped,
		"failed":    len(errs),
	}), "order submission batch complete")

	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}
	if allRetryable(errs) {
		return scheduler.RetryLater(combined)
	}
	return combined
}

func allRetryable(errs []error) bool {
	for _, err := range errs {
		typed := pkgerrors.As(err)
		if typed == nil || !typed.Retryable() {
			return false
		}
	}
	return true
}

// SubmissionRequest is the schedule the host registers for resubmission.
func SubmissionRequest(interval time.Duration) scheduler.Request {
	return scheduler.Request{
		Name:            SubmissionJobName,
		Interval:        interval,
		RequiresNetwork: true,
	}
}

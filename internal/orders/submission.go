package orders

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

// Submitter delivers orders to the remote service.
type Submitter interface {
	SubmitOrder(ctx context.Context, payload remote.OrderPayload) (*remote.OrderReceipt, error)
}

// errSubmissionClaimed reports that another sender is already delivering
// the order.
var errSubmissionClaimed = errors.New("order submission already claimed")

type submissionStore interface {
	ClaimSubmission(ctx context.Context, id string, now time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, id, remoteID string, at time.Time) error
	MarkSubmissionFailed(ctx context.Context, id, reason string) error
}

// dispatcher sends one order and records the outcome. The local order is
// never rolled back; a failure only updates its submission bookkeeping.
type dispatcher struct {
	submitter Submitter
	store     submissionStore
	logg      *logger.Logger
	now       func() time.Time
}

func (d *dispatcher) submit(ctx context.Context, order Order) (Order, error) {
	ctx = d.logg.WithOrderID(ctx, order.ID)
	claimed, err := d.store.ClaimSubmission(ctx, order.ID, d.now())
	if err != nil {
		d.logg.Error(ctx, "failed to claim order submission", err)
		return order, err
	}
	if !claimed {
		d.logg.Debug(ctx, "order submission claimed elsewhere; skipping")
		return order, errSubmissionClaimed
	}
	order.Submission.Attempts++

	receipt, err := d.submitter.SubmitOrder(ctx, payload(order))
	if err != nil {
		fields := map[string]any{"error": err.Error(), "timeout": remote.IsTimeout(err)}
		if status, ok := remote.StatusCode(err); ok {
			fields["status"] = status
		}
		d.logg.Warn(d.logg.WithFields(ctx, fields), "order submission failed; kept locally")
		order.Submission.Status = SubmissionFailed
		order.Submission.LastError = err.Error()
		if markErr := d.store.MarkSubmissionFailed(ctx, order.ID, err.Error()); markErr != nil {
			d.logg.Error(ctx, "failed to record order submission failure", markErr)
		}
		return order, err
	}

	at := d.now().UTC()
	order.Submission.Status = SubmissionSubmitted
	order.Submission.LastError = ""
	order.Submission.RemoteID = receipt.ID
	order.Submission.SubmittedAt = &at
	if err := d.store.MarkSubmitted(ctx, order.ID, receipt.ID, at); err != nil {
		d.logg.Error(ctx, "failed to record order submission", err)
		return order, err
	}
	d.logg.Info(d.logg.WithField(ctx, "remote_id", receipt.ID), "order submitted")
	return order, nil
}

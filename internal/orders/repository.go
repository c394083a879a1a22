package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-shopper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
)

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Repository persists order history.
type Repository struct {
	db txRunner
}

// NewRepository builds an order repository over db.
func NewRepository(db txRunner) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Repository{db: db}, nil
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create stores the order and its line items in one transaction.
func (r *Repository) Create(ctx context.Context, order Order) error {
	row := toModel(order)
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "create order")
	}
	return nil
}

// List returns every order, newest first, with items in cart order.
func (r *Repository) List(ctx context.Context) ([]Order, error) {
	var rows []models.Order
	if err := r.db.DB().WithContext(ctx).
		Preload("Items", orderedItems).
		Order("placed_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list orders")
	}
	return fromModels(rows), nil
}

// Get loads one order or returns nil when unknown.
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	var rows []models.Order
	if err := r.db.DB().WithContext(ctx).
		Preload("Items", orderedItems).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "get order")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	order := fromModel(rows[0])
	return &order, nil
}

// DeleteAll removes every order and line item.
func (r *Repository) DeleteAll(ctx context.Context) error {
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		return global.Delete(&models.Order{}).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "clear order history")
	}
	return nil
}

// SubmissionLease is how long a claim keeps other senders away from an
// order. A sender that dies mid-delivery frees the order once it expires.
const SubmissionLease = 5 * time.Minute

// staleClaim matches orders that are free to claim at cutoff.
func staleClaim(db *gorm.DB, cutoff time.Time) *gorm.DB {
	return db.Where("(submission_status IN ? OR (submission_status = ? AND submission_claimed_at < ?))",
		[]string{string(SubmissionPending), string(SubmissionFailed)},
		string(SubmissionSubmitting),
		cutoff)
}

// claimTime keeps stored claim timestamps at a fixed width so sqlite
// compares them in time order.
func claimTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ListPendingSubmission returns up to limit orders, oldest first, that still
// need to reach the remote service and have fewer than maxAttempts attempts.
// Orders claimed by a sender are skipped until their lease expires.
func (r *Repository) ListPendingSubmission(ctx context.Context, limit, maxAttempts int, now time.Time) ([]Order, error) {
	query := staleClaim(r.db.DB().WithContext(ctx), claimTime(now).Add(-SubmissionLease)).
		Preload("Items", orderedItems).
		Order("placed_at ASC")
	if maxAttempts > 0 {
		query = query.Where("submission_attempts < ?", maxAttempts)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list pending submissions")
	}
	return fromModels(rows), nil
}

// ClaimSubmission atomically marks the order as being delivered. It returns
// false when another sender holds a live claim or the order no longer needs
// delivery.
func (r *Repository) ClaimSubmission(ctx context.Context, id string, now time.Time) (bool, error) {
	at := claimTime(now)
	result := staleClaim(r.db.DB().WithContext(ctx).Model(&models.Order{}).Where("id = ?", id), at.Add(-SubmissionLease)).
		Updates(map[string]any{
			"submission_status":     string(SubmissionSubmitting),
			"submission_claimed_at": at,
		})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStore, result.Error, "claim order submission")
	}
	return result.RowsAffected == 1, nil
}

// MarkSubmitted records a successful delivery.
func (r *Repository) MarkSubmitted(ctx context.Context, id, remoteID string, at time.Time) error {
	return r.updateSubmission(ctx, id, map[string]any{
		"submission_status":     string(SubmissionSubmitted),
		"submission_attempts":   gorm.Expr("submission_attempts + 1"),
		"last_submission_error": nil,
		"remote_id":             remoteID,
		"submitted_at":          at,
		"submission_claimed_at": nil,
	})
}

// MarkSubmissionFailed records a failed delivery attempt.
func (r *Repository) MarkSubmissionFailed(ctx context.Context, id, reason string) error {
	return r.updateSubmission(ctx, id, map[string]any{
		"submission_status":     string(SubmissionFailed),
		"submission_attempts":   gorm.Expr("submission_attempts + 1"),
		"last_submission_error": reason,
		"submission_claimed_at": nil,
	})
}

func (r *Repository) updateSubmission(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.DB().WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, result.Error, "update order submission")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", id))
	}
	return nil
}

func fromModels(rows []models.Order) []Order {
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out
}

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/packfinderz-shopper/api/responses"
	"github.com/angelmondragon/packfinderz-shopper/internal/catalog"
	"github.com/angelmondragon/packfinderz-shopper/internal/scheduler"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

type catalogInspector interface {
	Count(ctx context.Context) (int64, error)
	LastSyncedAt(ctx context.Context) (time.Time, bool, error)
}

type catalogSyncer interface {
	Sync(ctx context.Context) ([]catalog.Product, error)
}

type jobLister interface {
	Scheduled(ctx context.Context) ([]scheduler.Entry, error)
}

type catalogStatus struct {
	ProductCount int64             `json:"product_count"`
	LastSyncedAt *time.Time        `json:"last_synced_at,omitempty"`
	Jobs         []scheduler.Entry `json:"jobs"`
}

// CatalogStatus reports the local mirror size, last sync time and the
// scheduled background jobs.
func CatalogStatus(logg *logger.Logger, store catalogInspector, jobs jobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		count, err := store.Count(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := catalogStatus{ProductCount: count, Jobs: []scheduler.Entry{}}

		at, ok, err := store.LastSyncedAt(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if ok {
			status.LastSyncedAt = &at
		}

		if jobs != nil {
			entries, err := jobs.Scheduled(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			status.Jobs = entries
		}
		responses.WriteSuccess(w, status)
	}
}

// TriggerSync runs a manual sync and reports its failure to the caller.
func TriggerSync(logg *logger.Logger, syncer catalogSyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		products, err := syncer.Sync(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"product_count": len(products)})
	}
}

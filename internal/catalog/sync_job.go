package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-shopper/internal/scheduler"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

const (
	// SyncJobName identifies the periodic catalog sync in the scheduler.
	SyncJobName = "catalog-sync"
	// DefaultSyncInterval is how often the catalog is refreshed in the background.
	DefaultSyncInterval = 6 * time.Hour
)

type catalogSyncer interface {
	Sync(ctx context.Context) ([]Product, error)
}

// SyncJobParams configure the periodic catalog sync job.
type SyncJobParams struct {
	Logger       *logger.Logger
	Synchronizer catalogSyncer
}

// SyncJob refreshes the local catalog. Every failure is reported as
// retry-later; a background sync never fails permanently.
type SyncJob struct {
	logg *logger.Logger
	sync catalogSyncer
}

// NewSyncJob constructs the catalog sync job.
func NewSyncJob(params SyncJobParams) (*SyncJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Synchronizer == nil {
		return nil, fmt.Errorf("synchronizer required")
	}
	return &SyncJob{logg: params.Logger, sync: params.Synchronizer}, nil
}

func (j *SyncJob) Name() string { return SyncJobName }

func (j *SyncJob) Run(ctx context.Context) error {
	products, err := j.sync.Sync(ctx)
	if err != nil {
		return scheduler.RetryLater(err)
	}
	j.logg.Info(j.logg.WithField(ctx, "products", len(products)), "periodic catalog sync applied")
	return nil
}

// SyncRequest is the schedule the host registers for the catalog sync.
func SyncRequest(interval time.Duration) scheduler.Request {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return scheduler.Request{
		Name:            SyncJobName,
		Interval:        interval,
		RequiresNetwork: true,
	}
}

package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/internal/scheduler"
	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

type stubSyncer struct {
	products []Product
	err      error
	calls    int
}

func (s *stubSyncer) Sync(context.Context) ([]Product, error) {
	s.calls++
	return s.products, s.err
}

func TestNewSyncJobRequiresDependencies(t *testing.T) {
	_, err := NewSyncJob(SyncJobParams{Synchronizer: &stubSyncer{}})
	require.Error(t, err)
	_, err = NewSyncJob(SyncJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}

func TestSyncJobSuccess(t *testing.T) {
	syncer := &stubSyncer{products: []Product{product("a", "A", "x", "1")}}
	job, err := NewSyncJob(SyncJobParams{Logger: logger.Nop(), Synchronizer: syncer})
	require.NoError(t, err)

	assert.Equal(t, SyncJobName, job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, syncer.calls)
}

func TestSyncJobTurnsEveryFailureIntoRetry(t *testing.T) {
	for _, failure := range []error{
		pkgerrors.New(pkgerrors.CodeNetwork, "offline"),
		pkgerrors.New(pkgerrors.CodeDecode, "bad payload"),
		pkgerrors.New(pkgerrors.CodeStore, "disk full"),
		errors.New("unexpected"),
	} {
		job, err := NewSyncJob(SyncJobParams{Logger: logger.Nop(), Synchronizer: &stubSyncer{err: failure}})
		require.NoError(t, err)

		err = job.Run(context.Background())
		require.Error(t, err)
		assert.True(t, scheduler.IsRetryLater(err))
		assert.ErrorIs(t, err, failure)
	}
}

func TestSyncRequestDefaults(t *testing.T) {
	req := SyncRequest(0)
	assert.Equal(t, SyncJobName, req.Name)
	assert.Equal(t, 6*time.Hour, req.Interval)
	assert.True(t, req.RequiresNetwork)

	assert.Equal(t, time.Hour, SyncRequest(time.Hour).Interval)
}

func TestSyncJobRetriesThroughScheduler(t *testing.T) {
	fetcher := &fakeFetcher{err: pkgerrors.New(pkgerrors.CodeNetwork, "offline")}
	synchronizer, store := newTestSynchronizer(t, fetcher)
	job, err := NewSyncJob(SyncJobParams{Logger: logger.Nop(), Synchronizer: synchronizer})
	require.NoError(t, err)

	service, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:         logger.Nop(),
		Registry:       scheduler.NewRegistry(job),
		Ledger:         scheduler.NewMemoryLedger(),
		Lock:           scheduler.NewLocalLock(),
		RetryBase:      time.Millisecond,
		RetryMax:       2 * time.Millisecond,
		ConstraintPoll: time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	scheduled, err := service.Schedule(ctx, SyncRequest(DefaultSyncInterval))
	require.NoError(t, err)
	require.True(t, scheduled)

	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Empty(t, store.GetAll().Get())

	fetcher.set([]remote.ProductDTO{dto("a", "A", "1", nil)}, nil)
	require.Eventually(t, func() bool { return len(store.GetAll().Get()) == 1 }, 2*time.Second, time.Millisecond)
}

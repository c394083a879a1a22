package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-shopper/api/routes"
	"github.com/angelmondragon/packfinderz-shopper/internal/catalog"
	"github.com/angelmondragon/packfinderz-shopper/internal/orders"
	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/internal/scheduler"
	"github.com/angelmondragon/packfinderz-shopper/pkg/config"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
	"github.com/angelmondragon/packfinderz-shopper/pkg/metrics"
	"github.com/angelmondragon/packfinderz-shopper/pkg/migrate"
	"github.com/angelmondragon/packfinderz-shopper/pkg/redis"
)

const (
	serviceName     = "catalog-sync"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"db_driver": cfg.DB.Driver,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "catalog sync host stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "catalog sync host shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRun(ctx, cfg.DB, logg, dbClient); err != nil {
		return err
	}

	var (
		redisClient *redis.Client
		ledger      scheduler.Ledger
		lock        scheduler.Lock
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		if ledger, err = scheduler.NewRedisLedger(redisClient); err != nil {
			return err
		}
		if lock, err = scheduler.NewRedisLock(redisClient, cfg.Sync.LockTTL); err != nil {
			return err
		}
	} else {
		logg.Info(ctx, "redis not configured, scheduler ledger kept in memory")
		ledger = scheduler.NewMemoryLedger()
		lock = scheduler.NewLocalLock()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	jobMetrics := metrics.NewJobMetrics(reg)
	catalogMetrics := metrics.NewCatalogMetrics(reg)

	client, err := remote.NewClient(remote.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	store, err := catalog.NewStore(ctx, catalog.StoreParams{DB: dbClient, Logger: logg})
	if err != nil {
		return err
	}
	synchronizer, err := catalog.NewSynchronizer(catalog.SynchronizerParams{
		Store:   store,
		Fetcher: client,
		Logger:  logg,
		Metrics: catalogMetrics,
		Timeout: cfg.Sync.Timeout,
	})
	if err != nil {
		return err
	}
	syncJob, err := catalog.NewSyncJob(catalog.SyncJobParams{Logger: logg, Synchronizer: synchronizer})
	if err != nil {
		return err
	}

	registry := scheduler.NewRegistry(syncJob)
	requests := []scheduler.Request{catalog.SyncRequest(cfg.Sync.Interval)}

	if cfg.Orders.RemoteSubmission {
		repo, err := orders.NewRepository(dbClient)
		if err != nil {
			return err
		}
		submissionJob, err := orders.NewSubmissionJob(orders.SubmissionJobParams{
			Logger:      logg,
			Store:       repo,
			Submitter:   client,
			BatchSize:   cfg.Orders.SubmitBatchSize,
			MaxAttempts: cfg.Orders.SubmitMaxAttempts,
		})
		if err != nil {
			return err
		}
		registry.Register(submissionJob)
		requests = append(requests, orders.SubmissionRequest(cfg.Orders.SubmitInterval))
	}

	service, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Ledger:   ledger,
		Lock:     lock,
		Connectivity: scheduler.HTTPProbe{
			URL:     client.BaseURL(),
			Timeout: cfg.API.ProbeTimeout,
		},
		Metrics:        jobMetrics,
		RetryBase:      cfg.Sync.RetryBase,
		RetryMax:       cfg.Sync.RetryMax,
		MaxRetries:     cfg.Sync.MaxRetries,
		ConstraintPoll: cfg.Sync.ConstraintPoll,
	})
	if err != nil {
		return err
	}

	for _, req := range requests {
		if _, err := service.Schedule(ctx, req); err != nil {
			return err
		}
	}

	routerParams := routes.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Catalog:  store,
		Syncer:   synchronizer,
		Jobs:     service,
		Gatherer: reg,
	}
	if redisClient != nil {
		routerParams.Redis = redisClient
	}
	server := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           routes.NewRouter(routerParams),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return service.Run(groupCtx)
	})
	group.Go(func() error {
		logg.Info(logg.WithField(groupCtx, "addr", server.Addr), "starting ops server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logg.Info(ctx, "catalog sync host started")
	return group.Wait()
}

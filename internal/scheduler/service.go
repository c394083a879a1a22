package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
	"github.com/angelmondragon/packfinderz-shopper/pkg/metrics"
)

const (
	defaultRetryBase      = 30 * time.Second
	defaultRetryMax       = 5 * time.Hour
	defaultConstraintPoll = time.Minute
	retryJitterPercent    = 10
)

// Request asks for a named job to run every Interval.
type Request struct {
	Name            string
	Interval        time.Duration
	RequiresNetwork bool
}

// ServiceParams configure the scheduler service.
type ServiceParams struct {
	Logger         *logger.Logger
	Registry       *Registry
	Ledger         Ledger
	Lock           Lock
	Connectivity   Connectivity
	Metrics        *metrics.JobMetrics
	RetryBase      time.Duration
	RetryMax       time.Duration
	MaxRetries     uint64
	ConstraintPoll time.Duration
	Now            func() time.Time
}

type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service runs scheduled jobs, one loop per ledger entry, until its context
// is canceled.
type Service struct {
	logg           *logger.Logger
	registry       *Registry
	ledger         Ledger
	lock           Lock
	connectivity   Connectivity
	metrics        *metrics.JobMetrics
	retryBase      time.Duration
	retryMax       time.Duration
	maxRetries     uint64
	constraintPoll time.Duration
	now            func() time.Time

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	loops   map[string]*loop
	wg      sync.WaitGroup
}

// NewService builds a scheduler service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	connectivity := params.Connectivity
	if connectivity == nil {
		connectivity = AlwaysOnline{}
	}
	retryBase := params.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	retryMax := params.RetryMax
	if retryMax <= 0 {
		retryMax = defaultRetryMax
	}
	poll := params.ConstraintPoll
	if poll <= 0 {
		poll = defaultConstraintPoll
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:           params.Logger,
		registry:       registry,
		ledger:         params.Ledger,
		lock:           params.Lock,
		connectivity:   connectivity,
		metrics:        params.Metrics,
		retryBase:      retryBase,
		retryMax:       retryMax,
		maxRetries:     params.MaxRetries,
		constraintPoll: poll,
		now:            now,
		loops:          make(map[string]*loop),
	}, nil
}

// Schedule records req in the ledger and, when the service is running,
// starts its loop. A request for a name that is already scheduled is dropped
// and the existing cadence is kept; scheduled is false in that case.
func (s *Service) Schedule(ctx context.Context, req Request) (bool, error) {
	if req.Name == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "job name required")
	}
	if req.Interval <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "job interval must be positive")
	}
	job, ok := s.registry.Lookup(req.Name)
	if !ok {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("job %q is not registered", req.Name))
	}

	entry := Entry{
		Name:            req.Name,
		Interval:        req.Interval,
		RequiresNetwork: req.RequiresNetwork,
		ScheduledAt:     s.now().UTC(),
	}
	claimed, err := s.ledger.Claim(ctx, entry)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStore, err, "claim schedule")
	}

	logCtx := s.logg.WithJob(ctx, req.Name)
	if !claimed {
		s.logg.Info(logCtx, "job already scheduled; keeping existing schedule")
		return false, nil
	}
	s.logg.Info(s.logg.WithField(logCtx, "interval", req.Interval.String()), "job scheduled")
	s.start(entry, job)
	return true, nil
}

// Cancel stops the named job's loop and then removes it from the ledger. A
// run in progress is interrupted through its context; the loop has exited
// before the entry is removed so it cannot write the entry back.
func (s *Service) Cancel(ctx context.Context, name string) error {
	s.mu.Lock()
	l := s.loops[name]
	delete(s.loops, name)
	s.mu.Unlock()
	if l != nil {
		l.cancel()
		<-l.done
	}
	if err := s.ledger.Remove(ctx, name); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "remove schedule")
	}
	s.logg.Info(s.logg.WithJob(ctx, name), "job canceled")
	return nil
}

// Scheduled lists the ledger entries.
func (s *Service) Scheduled(ctx context.Context) ([]Entry, error) {
	return s.ledger.List(ctx)
}

// Run restores every scheduled job whose implementation is registered and
// runs until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.runCtx = runCtx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		cancel()
		s.wg.Wait()
		s.mu.Lock()
		s.runCtx = nil
		s.loops = make(map[string]*loop)
		s.mu.Unlock()
	}()

	entries, err := s.ledger.List(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "restore schedule")
	}
	restored := make(map[string]bool, len(entries))
	for _, entry := range entries {
		restored[entry.Name] = true
		job, ok := s.registry.Lookup(entry.Name)
		if !ok {
			s.logg.Warn(s.logg.WithJob(ctx, entry.Name), "scheduled job has no registered implementation; skipping")
			continue
		}
		s.start(entry, job)
	}
	for _, job := range s.registry.Jobs() {
		if !restored[job.Name()] {
			s.logg.Warn(s.logg.WithJob(ctx, job.Name()), "registered job has no schedule; it will not run until scheduled")
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(entries)), "scheduler started")

	<-ctx.Done()
	s.logg.Info(ctx, "scheduler context canceled")
	return ctx.Err()
}

func (s *Service) start(entry Entry, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if _, exists := s.loops[entry.Name]; exists {
		return
	}
	loopCtx, cancel := context.WithCancel(s.runCtx)
	l := &loop{cancel: cancel, done: make(chan struct{})}
	s.loops[entry.Name] = l
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(l.done)
		defer cancel()
		s.runLoop(loopCtx, entry, job)
	}()
}

func (s *Service) runLoop(ctx context.Context, entry Entry, job Job) {
	ctx = s.logg.WithJob(ctx, entry.Name)
	if !sleep(ctx, entry.nextDelay(s.now())) {
		return
	}
	for {
		if !s.waitForConstraints(ctx, entry) {
			return
		}
		s.runWithRetry(ctx, entry, job)
		if ctx.Err() != nil {
			return
		}
		if err := s.ledger.MarkRun(ctx, entry.Name, s.now().UTC()); err != nil {
			s.logg.Error(ctx, "failed to record job run", err)
		}
		if !sleep(ctx, entry.Interval) {
			return
		}
	}
}

// runWithRetry runs job once and keeps retrying with capped exponential
// backoff while it returns RetryLater.
func (s *Service) runWithRetry(ctx context.Context, entry Entry, job Job) {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.IncRetry(entry.Name)
			if !s.waitForConstraints(ctx, entry) {
				return ctx.Err()
			}
		}
		err := s.runOnce(ctx, job)
		if IsRetryLater(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil || ctx.Err() != nil || !IsRetryLater(err) {
		return
	}
	s.logg.Error(s.logg.WithField(ctx, "attempts", attempt), "job retries exhausted", err)
	s.metrics.IncFailure(entry.Name)
}

func (s *Service) backoff() retry.Backoff {
	b := retry.NewExponential(s.retryBase)
	b = retry.WithCappedDuration(s.retryMax, b)
	b = retry.WithJitterPercent(retryJitterPercent, b)
	if s.maxRetries > 0 {
		b = retry.WithMaxRetries(s.maxRetries, b)
	}
	return b
}

func (s *Service) runOnce(ctx context.Context, job Job) error {
	locked, err := s.lock.Acquire(ctx, job.Name())
	if err != nil {
		return RetryLater(fmt.Errorf("lock acquire: %w", err))
	}
	if !locked {
		s.logg.Debug(ctx, "another instance is running this job; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx), job.Name()); relErr != nil {
			s.logg.Error(ctx, "failed to release job lock", relErr)
		}
	}()

	jobCtx := s.logg.WithField(ctx, "event", "scheduler.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())

	switch {
	case err == nil:
		s.logg.Info(jobCtx, "job completed")
		s.metrics.IncSuccess(job.Name())
	case IsRetryLater(err):
		s.logg.Warn(s.logg.WithField(jobCtx, "error", err.Error()), "job asked to retry later")
	default:
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
	}
	return err
}

// waitForConstraints blocks until the entry's constraints hold. It returns
// false when ctx ends first.
func (s *Service) waitForConstraints(ctx context.Context, entry Entry) bool {
	if !entry.RequiresNetwork {
		return ctx.Err() == nil
	}
	deferred := false
	for {
		if ctx.Err() != nil {
			return false
		}
		if s.connectivity.Available(ctx) {
			return true
		}
		if !deferred {
			deferred = true
			s.metrics.IncDeferred(entry.Name)
			s.logg.Debug(ctx, "network unavailable; deferring job")
		}
		if !sleep(ctx, s.constraintPoll) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nkiryanov/peercash/internal/lock"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
)

const (
	DefaultSweepSchedule    = "@every 1m"
	DefaultReminderSchedule = "@hourly"

	defaultLockTTL = time.Minute
)

// Job returns the number of handled items
type JobFunc func(ctx context.Context) (int, error)

// Scheduler runs recurring jobs. With a shared locker only one replica runs a job at a time.
type Scheduler struct {
	cron    *cron.Cron
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  logger.Logger
	lockTTL time.Duration

	// Context passed to the jobs, cancelled when Run's context is done
	ctx    context.Context
	cancel context.CancelFunc
}

func New(locker lock.Locker, m *metrics.Metrics, l logger.Logger) *Scheduler {
	l = l.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{l}))),
		locker:  locker,
		metrics: m,
		logger:  l,
		lockTTL: defaultLockTTL,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register job under name. Schedule is any spec robfig/cron accepts ("@every 1m", "0 * * * *").
func (s *Scheduler) Add(name string, schedule string, job JobFunc) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(s.ctx, name, job) })
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.logger.Info("Job scheduled", "job", name, "schedule", schedule)
	return nil
}

// Start jobs and stop them when ctx is done.
// Returned channel is closed once running jobs finished.
func (s *Scheduler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.cron.Start()

	go func() {
		defer close(idleStopped)
		<-ctx.Done()

		s.cancel()
		<-s.cron.Stop().Done()
		s.logger.Debug("Scheduler stopped")
	}()

	return idleStopped
}

func (s *Scheduler) run(ctx context.Context, name string, job JobFunc) {
	release, err := s.locker.Acquire(ctx, name, s.lockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		s.logger.Debug("Job skipped, running elsewhere", "job", name)
		return
	case err != nil:
		s.logger.Error("Job skipped, lock failed", "job", name, "error", err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Job lock release failed", "job", name, "error", err)
		}
	}()

	start := time.Now()
	count, err := job(ctx)
	s.metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("Job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("Job done", "job", name, "count", count, "duration", time.Since(start))
}

// Adapts logger.Logger to cron.Logger
type cronLogger struct {
	logger logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

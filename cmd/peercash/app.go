package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/peercash/internal/db"
	"github.com/nkiryanov/peercash/internal/events"
	"github.com/nkiryanov/peercash/internal/handlers"
	"github.com/nkiryanov/peercash/internal/lock"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/metrics"
	"github.com/nkiryanov/peercash/internal/repository/postgres"
	"github.com/nkiryanov/peercash/internal/scheduler"
	"github.com/nkiryanov/peercash/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/peercash/internal/service/deposit"
	"github.com/nkiryanov/peercash/internal/service/settlement"
	"github.com/nkiryanov/peercash/internal/service/sweeper"
	"github.com/nkiryanov/peercash/internal/service/withdraw"
)

const (
	jobReleaseExpired = "release-expired-reservations"
	jobNotifyPending  = "notify-pending-deposits"

	shutdownTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	scheduler *scheduler.Scheduler
	logger    logger.Logger

	// Release external resources in reverse order
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Metrics are exposed from private registry with runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	locker, closeLocker, err := newLocker(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeLocker)

	publisher := newPublisher(c, logger)
	app.closers = append(app.closers, publisher.Close)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	withdrawService := withdraw.NewService(storage, m, logger)
	depositService := deposit.NewService(storage, c.ReservationTTL, publisher, m, logger)
	settlementService := settlement.NewService(storage, publisher, m, logger)
	sw := sweeper.New(storage, c.ReservationTTL, c.ReviewOverdueAfter, publisher, m, logger)

	// Background jobs
	app.scheduler = scheduler.New(locker, m, logger)
	if err := app.scheduler.Add(jobReleaseExpired, c.SweepSchedule, sw.ReleaseExpired); err != nil {
		return nil, err
	}
	if err := app.scheduler.Add(jobNotifyPending, c.ReviewReminderSchedule, sw.NotifyPendingDeposits); err != nil {
		return nil, err
	}

	app.Handler = handlers.NewRouter(
		tokenManager,
		withdrawService,
		depositService,
		settlementService,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logger,
	)

	return app, nil
}

// Redis locker if address set, otherwise jobs are not coordinated between replicas
func newLocker(ctx context.Context, c *Config, l logger.Logger) (lock.Locker, func(), error) {
	if c.RedisAddr == "" {
		l.Warn("Redis address not set, scheduler jobs are not coordinated between replicas")
		return lock.NoopLocker{}, func() {}, nil
	}

	client, err := lock.NewRedisClient(ctx, c.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}
	return lock.NewRedisLocker(client), func() { _ = client.Close() }, nil
}

// Events go to RabbitMQ if it is configured and reachable, otherwise only logged
func newPublisher(c *Config, l logger.Logger) events.Publisher {
	if c.AMQPURL == "" {
		return events.NewLogPublisher(l)
	}

	p, err := events.NewRabbitPublisher(c.AMQPURL, events.DefaultExchange, l)
	if err != nil {
		l.Error("RabbitMQ unavailable, events will be logged only", "error", err)
		return events.NewLogPublisher(l)
	}
	return p
}

// Run starts scheduler and http server. Both stop gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	schedulerStopped := s.scheduler.Run(srvCtx)
	idleConnsClosed := make(chan struct{})

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-schedulerStopped

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ServerApp) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

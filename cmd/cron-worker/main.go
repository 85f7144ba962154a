package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dumpsterpool-backend/internal/cron"
	"github.com/angelmondragon/dumpsterpool-backend/internal/notifications"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/metrics"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/migrate"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	_ = godotenv.Load()
	boot := logger.New(logger.Options{ServiceName: serviceName})

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

// run wires the maintenance loop and blocks until ctx is canceled.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.MaintenanceLockKey(cfg.App.Env), 0)
	if err != nil {
		return fmt.Errorf("maintenance lock: %w", err)
	}
	jobs, err := maintenanceJobs(cfg, logg, dbClient, jobMetrics)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}
	logg.Info(ctx, "cron worker started")
	return service.Run(ctx)
}

// maintenanceJobs registers the retention sweeps for settled outbox rows and
// old notification deliveries.
func maintenanceJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, m *metrics.CronJobMetrics) (*cron.Registry, error) {
	outboxJob, err := cron.NewOutboxRetentionJob(logg, dbClient, outbox.NewRepository(dbClient.DB()), m,
		cfg.Maintenance.OutboxRetention, cfg.Outbox.MaxAttempts)
	if err != nil {
		return nil, err
	}
	deliveryJob, err := cron.NewDeliveryRetentionJob(logg, dbClient, notifications.NewRepository(dbClient.DB()), m,
		cfg.Maintenance.DeliveryRetention)
	if err != nil {
		return nil, err
	}

	jobs := cron.NewRegistry()
	for _, job := range []cron.Job{outboxJob, deliveryJob} {
		if err := jobs.Register(job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "close "+name, err)
	}
}

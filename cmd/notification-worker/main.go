package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/dumpsterpool-backend/internal/memberships"
	"github.com/angelmondragon/dumpsterpool-backend/internal/notifications"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/metrics"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/pubsub"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/redis"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/sendgrid"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "instance", instanceID())

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.NeedsNotificationSubscription)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer pubsubClient.Close()

	mailer, err := sendgrid.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap sendgrid", err)
		os.Exit(1)
	}

	handler, err := notifications.NewHandler(notifications.HandlerParams{
		Mailer:     mailer,
		Deliveries: notifications.NewRepository(dbClient.DB()),
		Invitees:   memberships.NewRepository(dbClient.DB()),
		AppBaseURL: cfg.App.PublicBaseURL,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notification handler", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, notifications.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency guard", err)
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(pubsubClient.NotificationSubscription(), handler, guard, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notification consumer", err)
		os.Exit(1)
	}

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting notification worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "notification worker shutting down gracefully")
}

func instanceID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	return "worker-0"
}

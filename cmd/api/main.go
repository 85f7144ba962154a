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

	"github.com/angelmondragon/dumpsterpool-backend/api/routes"
	"github.com/angelmondragon/dumpsterpool-backend/internal/cardaccess"
	"github.com/angelmondragon/dumpsterpool-backend/internal/disbursement"
	"github.com/angelmondragon/dumpsterpool-backend/internal/funding"
	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/memberships"
	"github.com/angelmondragon/dumpsterpool-backend/internal/paymentmethods"
	"github.com/angelmondragon/dumpsterpool-backend/internal/squarecustomers"
	"github.com/angelmondragon/dumpsterpool-backend/internal/timeslots"
	squarewebhook "github.com/angelmondragon/dumpsterpool-backend/internal/webhooks/square"
	stripewebhook "github.com/angelmondragon/dumpsterpool-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/metrics"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/migrate"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/redis"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/square"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/stripe"
)

const (
	stripeWebhookConsumer = "stripe-webhook"
	squareWebhookConsumer = "square-webhook"
	shutdownTimeout       = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe client", err)
		os.Exit(1)
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap square client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	groupsRepo := groups.NewRepository(gormDB)
	instrumentsRepo := disbursement.NewRepository(gormDB)

	gate, err := cardaccess.NewService(cardaccess.ServiceParams{
		Store:          redisClient,
		Groups:         groupsRepo,
		Instruments:    instrumentsRepo,
		Gateway:        stripeClient,
		Audit:          cardaccess.NewAuditRepository(gormDB),
		Metrics:        metrics.NewCardAccessMetrics(registry),
		Config:         cfg.CardAccess,
		GatewayTimeout: cfg.Stripe.GatewayTimeout,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create card access service", err)
		os.Exit(1)
	}

	disbursementService, err := disbursement.NewService(disbursement.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              instrumentsRepo,
		Groups:            groupsRepo,
		Outbox:            outboxService,
		Gateway:           stripeClient,
		Gate:              gate,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create disbursement service", err)
		os.Exit(1)
	}

	groupsService, err := groups.NewService(dbClient, groupsRepo, outboxService, disbursementService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create group service", err)
		os.Exit(1)
	}

	timeslotService, err := timeslots.NewService(dbClient, groupsRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create time slot service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(dbClient, memberships.NewRepository(gormDB), groupsRepo, outboxService, timeslotService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create membership service", err)
		os.Exit(1)
	}

	cardVault, err := paymentmethods.NewService(paymentmethods.ServiceParams{
		Customers:    squarecustomers.NewService(squareClient),
		SquareClient: squareClient,
		Participants: groupsRepo,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment method service", err)
		os.Exit(1)
	}

	fundingService, err := funding.NewService(funding.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              funding.NewRepository(gormDB),
		Groups:            groupsRepo,
		Outbox:            outboxService,
		Cards:             cardVault,
		Charger:           squareClient,
		Limits:            disbursementService,
		FeeRate:           cfg.Funding.ServiceFeeRate,
		Currency:          cfg.Funding.Currency,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create funding service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Instruments: disbursementService, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	squareWebhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{Payments: fundingService, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create square webhook service", err)
		os.Exit(1)
	}
	stripeGuard, err := idempotency.NewManager(redisClient, stripeWebhookConsumer, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook guard", err)
		os.Exit(1)
	}
	squareGuard, err := idempotency.NewManager(redisClient, squareWebhookConsumer, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create square webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:                   dbClient,
			Redis:                redisClient,
			Metrics:              registry,
			Groups:               groupsService,
			Memberships:          membershipService,
			TimeSlots:            timeslotService,
			Funding:              fundingService,
			CardAccess:           gate,
			Disbursement:         disbursementService,
			StripeClient:         stripeClient,
			StripeWebhookService: stripeWebhookService,
			StripeWebhookGuard:   stripeGuard,
			SquareClient:         squareClient,
			SquareWebhookService: squareWebhookService,
			SquareWebhookGuard:   squareGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

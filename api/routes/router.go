package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dumpsterpool-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/dumpsterpool-backend/api/controllers/webhooks"
	"github.com/angelmondragon/dumpsterpool-backend/api/middleware"
	"github.com/angelmondragon/dumpsterpool-backend/internal/cardaccess"
	"github.com/angelmondragon/dumpsterpool-backend/internal/disbursement"
	"github.com/angelmondragon/dumpsterpool-backend/internal/funding"
	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/memberships"
	"github.com/angelmondragon/dumpsterpool-backend/internal/timeslots"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// redisStore is everything the HTTP layer needs from Redis.
type redisStore interface {
	pinger
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// Dependencies collects what NewRouter mounts. Nil services answer with
// INTERNAL_ERROR rather than panicking.
type Dependencies struct {
	DB      pinger
	Redis   redisStore
	Metrics prometheus.Gatherer

	Groups       groups.Service
	Memberships  memberships.Service
	TimeSlots    timeslots.Service
	Funding      funding.Service
	CardAccess   cardaccess.Service
	Disbursement disbursement.Service

	StripeClient         signingSecretSource
	StripeWebhookService webhookcontrollers.StripeWebhookService
	StripeWebhookGuard   eventGuard
	SquareClient         signingSecretSource
	SquareWebhookService webhookcontrollers.SquareWebhookService
	SquareWebhookGuard   eventGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.PublicBaseURL),
	)

	joinPolicy := middleware.NewJoinRateLimitPolicy(
		cfg.JoinRateLimit.Window,
		cfg.JoinRateLimit.IPLimit,
		cfg.JoinRateLimit.TokenLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhookService, deps.StripeClient, deps.StripeWebhookGuard, logg))
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhookService, deps.SquareClient, deps.SquareWebhookGuard, logg))
	})

	r.With(middleware.JoinRateLimit(joinPolicy, deps.Redis, logg)).
		Get("/api/v1/join/{token}", controllers.JoinInfo(deps.Memberships, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Inline so the full route pattern is resolved when the rules match.
		idempotent := middleware.Idempotency(deps.Redis, logg)

		r.With(middleware.JoinRateLimit(joinPolicy, deps.Redis, logg), idempotent).
			Post("/join/{token}", controllers.JoinGroup(deps.Memberships, logg))

		r.Route("/groups", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.CreateGroup(deps.Groups, logg))
			r.Get("/", controllers.ListMyGroups(deps.Groups, logg))

			r.Route("/{groupId}", func(r chi.Router) {
				r.Get("/", controllers.GetGroup(deps.Groups, logg))
				r.Delete("/", controllers.DeleteGroup(deps.Groups, logg))
				r.With(idempotent).Post("/book", controllers.BookGroup(deps.Groups, logg))
				r.Post("/confirm-service", controllers.ConfirmService(deps.Groups, logg))
				r.Post("/disburse", controllers.MarkDisbursed(deps.Groups, logg))

				r.Get("/members", controllers.ListMembers(deps.Memberships, logg))
				r.Put("/time-slots/selections", controllers.UpdateSelections(deps.Memberships, logg))
				r.Get("/time-slots/analysis", controllers.TimeSlotAnalysis(deps.TimeSlots, logg))
				r.Post("/time-slots/final", controllers.ChooseFinalSlot(deps.TimeSlots, logg))

				r.Get("/funding", controllers.FundingSummary(deps.Funding, logg))
				r.Get("/funding/breakdown", controllers.PreviewBreakdown(deps.Funding, logg))
				r.With(idempotent).Post("/payment-requests", controllers.GeneratePaymentRequests(deps.Funding, logg))
				r.Post("/payment-requests/paid", controllers.BulkMarkPaid(deps.Funding, logg))
				r.With(idempotent).Post("/payment-methods/card", controllers.RegisterCard(deps.Funding, logg))

				r.Get("/card-access", controllers.CardAccessStatus(deps.CardAccess, logg))
				r.Post("/card-access/verify", controllers.VerifyCardAccess(deps.CardAccess, logg))
				r.Post("/card-access/reset", controllers.ResetCardAccess(deps.CardAccess, logg))

				r.Route("/instrument", func(r chi.Router) {
					r.Get("/", controllers.GetInstrument(deps.Disbursement, logg))
					r.Post("/reveal", controllers.RevealInstrument(deps.Disbursement, logg))
					r.Post("/freeze", controllers.FreezeInstrument(deps.Disbursement, logg))
					r.Post("/unfreeze", controllers.UnfreezeInstrument(deps.Disbursement, logg))
					r.Patch("/limit", controllers.UpdateInstrumentLimit(deps.Disbursement, logg))
					r.Get("/transactions", controllers.InstrumentTransactions(deps.Disbursement, logg))
				})
			})
		})

		r.Route("/payment-requests/{requestId}", func(r chi.Router) {
			r.Post("/paid", controllers.MarkRequestPaid(deps.Funding, logg))
			r.With(idempotent).Post("/charge", controllers.ChargeRequest(deps.Funding, logg))
		})
	})

	return r
}

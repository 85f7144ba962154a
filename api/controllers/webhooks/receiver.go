package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/dumpsterpool-backend/api/responses"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

const maxPayloadBytes = 1 << 20

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// inbound is a verified provider event ready for dispatch.
type inbound struct {
	id     string
	handle func(context.Context) error
}

// verifyFunc authenticates and decodes a raw delivery. Errors must already
// carry the response code.
type verifyFunc func(payload []byte, signature, secret string) (inbound, error)

// receiver is the provider-agnostic half of a webhook endpoint: body limits,
// signature presence, dedup by event id and release on handler failure.
type receiver struct {
	source          string
	signatureHeader string
	secrets         signingSecretSource
	guard           eventGuard
	logg            *logger.Logger
	verify          verifyFunc
}

func (rc receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if rc.secrets == nil || rc.guard == nil {
		responses.WriteError(ctx, rc.logg, w, pkgerrors.New(pkgerrors.CodeInternal, rc.source+" webhook not configured"))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		responses.WriteError(ctx, rc.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	signature := r.Header.Get(rc.signatureHeader)
	if signature == "" {
		responses.WriteError(ctx, rc.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, rc.source+" signature missing"))
		return
	}
	event, err := rc.verify(payload, signature, rc.secrets.SigningSecret())
	if err != nil {
		responses.WriteError(ctx, rc.logg, w, err)
		return
	}
	rc.dispatch(ctx, w, event)
}

func (rc receiver) dispatch(ctx context.Context, w http.ResponseWriter, event inbound) {
	seen, err := rc.guard.CheckAndMark(ctx, event.id)
	if err != nil {
		responses.WriteError(ctx, rc.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if seen {
		responses.WriteSuccess(w, map[string]bool{"duplicate": true})
		return
	}

	logCtx := ctx
	if rc.logg != nil {
		logCtx = rc.logg.WithFields(ctx, map[string]any{"event_id": event.id, "source": rc.source})
	}
	if err := event.handle(ctx); err != nil {
		// Release so the provider's retry is processed instead of skipped.
		if relErr := rc.guard.Release(context.WithoutCancel(ctx), event.id); relErr != nil && rc.logg != nil {
			rc.logg.Error(logCtx, "release webhook event", relErr)
		}
		responses.WriteError(ctx, rc.logg, w, err)
		return
	}
	if rc.logg != nil {
		rc.logg.Info(logCtx, "webhook event processed")
	}
	responses.WriteSuccess(w, map[string]bool{"duplicate": false})
}

func unavailable(logg *logger.Logger, what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
	}
}

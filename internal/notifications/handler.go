package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/metrics"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/registry"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/sendgrid"
)

// ErrUnhandledEvent marks events this worker does not email about.
var ErrUnhandledEvent = errors.New("event not handled by notifications")

type mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) (int, error)
}

type deliveryRecorder interface {
	RecordDelivery(ctx context.Context, delivery *models.NotificationDelivery) error
}

type inviteeMarker interface {
	MarkInvitationSent(ctx context.Context, inviteeID uuid.UUID) error
}

// HandlerParams wires the collaborators of the mail handler.
type HandlerParams struct {
	Mailer     mailer
	Deliveries deliveryRecorder
	Invitees   inviteeMarker
	AppBaseURL string
	Metrics    *metrics.OutboxMetrics
	Logger     *logger.Logger
}

// Handler turns decoded outbox events into emails.
type Handler struct {
	mailer     mailer
	deliveries deliveryRecorder
	invitees   inviteeMarker
	baseURL    string
	decoders   *registry.DecoderRegistry
	metrics    *metrics.OutboxMetrics
	logg       *logger.Logger
}

func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Deliveries == nil {
		return nil, fmt.Errorf("delivery recorder required")
	}
	if params.Invitees == nil {
		return nil, fmt.Errorf("invitee marker required")
	}
	if params.AppBaseURL == "" {
		return nil, fmt.Errorf("app base url required")
	}
	return &Handler{
		mailer:     params.Mailer,
		deliveries: params.Deliveries,
		invitees:   params.Invitees,
		baseURL:    params.AppBaseURL,
		decoders:   newDecoders(),
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func newDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	registry.RegisterJSON[payloads.InvitationCreatedEvent](reg, enums.EventInvitationCreated, 1)
	registry.RegisterJSON[payloads.PaymentRequestCreatedEvent](reg, enums.EventPaymentRequestCreated, 1)
	return reg
}

// Handles reports whether the event type produces an email.
func (h *Handler) Handles(eventType enums.OutboxEventType) bool {
	return eventType == enums.EventInvitationCreated || eventType == enums.EventPaymentRequestCreated
}

// Handle sends the email for one event and records the attempt. A failed
// send is recorded before the error is returned so retries stay visible.
func (h *Handler) Handle(ctx context.Context, eventType enums.OutboxEventType, version int, eventID uuid.UUID, data json.RawMessage) error {
	if !h.Handles(eventType) {
		return ErrUnhandledEvent
	}
	decoded, err := h.decoders.Decode(eventType, version, data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", eventType, err)
	}

	switch evt := decoded.(type) {
	case payloads.InvitationCreatedEvent:
		msg, err := invitationMessage(evt, h.baseURL)
		if err != nil {
			return err
		}
		if err := h.deliver(ctx, eventID, enums.NotificationInvitation, msg); err != nil {
			return err
		}
		if err := h.invitees.MarkInvitationSent(ctx, evt.InviteeID); err != nil {
			// The email went out; a retry would send it twice.
			h.logError(ctx, "mark invitation sent failed", err)
		}
		return nil
	case payloads.PaymentRequestCreatedEvent:
		msg, err := paymentRequestMessage(evt)
		if err != nil {
			return err
		}
		return h.deliver(ctx, eventID, enums.NotificationPaymentRequest, msg)
	}
	return ErrUnhandledEvent
}

func (h *Handler) deliver(ctx context.Context, eventID uuid.UUID, kind enums.NotificationKind, msg sendgrid.Message) error {
	status, sendErr := h.mailer.Send(ctx, msg)
	delivery := &models.NotificationDelivery{
		EventID:        eventID,
		Kind:           kind,
		RecipientEmail: msg.ToEmail,
		Status:         enums.NotificationSent,
		ProviderStatus: status,
	}
	if sendErr != nil {
		reason := sendErr.Error()
		delivery.Status = enums.NotificationFailed
		delivery.Error = &reason
	}
	h.metrics.IncDelivery(string(kind), string(delivery.Status))
	recordErr := h.deliveries.RecordDelivery(ctx, delivery)
	if recordErr != nil {
		recordErr = fmt.Errorf("record delivery: %w", recordErr)
	}
	if sendErr != nil {
		return multierr.Append(fmt.Errorf("send %s email: %w", kind, sendErr), recordErr)
	}
	if recordErr != nil {
		h.logError(ctx, "delivery record failed after send", recordErr)
	}
	return nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logg == nil {
		return
	}
	h.logg.Error(ctx, msg, err)
}

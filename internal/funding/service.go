package funding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/paymentmethods"
	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/square"
)

const (
	defaultDescription = "Dumpster rental"
	maxDescription     = 500
)

var errConcurrentBatch = errors.New("concurrent payment request generation")

// Service is the funding ledger.
type Service interface {
	Preview(ctx context.Context, groupID uuid.UUID, identity auth.Identity, totalCost string) (*BreakdownDTO, error)
	Generate(ctx context.Context, groupID uuid.UUID, identity auth.Identity, input GenerateInput) (*BatchDTO, error)
	MarkPaid(ctx context.Context, requestID uuid.UUID, identity auth.Identity) (*RequestDTO, error)
	BulkMarkPaid(ctx context.Context, groupID uuid.UUID, requestIDs []uuid.UUID, identity auth.Identity) ([]RequestDTO, error)
	RegisterCard(ctx context.Context, groupID uuid.UUID, identity auth.Identity, input paymentmethods.StoreCardInput) (*paymentmethods.CardOnFile, error)
	PayByCard(ctx context.Context, requestID uuid.UUID, identity auth.Identity) (*RequestDTO, error)
	ReconcileCardPayment(ctx context.Context, requestID uuid.UUID, gatewayPaymentID string) error
	Summary(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*SummaryDTO, error)
}

// GenerateInput finalizes the cost of a group.
type GenerateInput struct {
	TotalCost   string
	Method      PaymentMethod
	Description string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cardVault interface {
	StoreCard(ctx context.Context, participant *models.Participant, input paymentmethods.StoreCardInput) (*paymentmethods.CardOnFile, error)
}

type cardCharger interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// limitSyncer keeps an issued instrument's limit in line with a regenerated cost.
type limitSyncer interface {
	SyncLimit(ctx context.Context, groupID uuid.UUID, limitCents int64) error
}

// ServiceParams groups dependencies for the funding service.
type ServiceParams struct {
	TransactionRunner txRunner
	Repo              *Repository
	Groups            *groups.Repository
	Outbox            outboxPublisher
	Cards             cardVault
	Charger           cardCharger
	Limits            limitSyncer
	FeeRate           string
	Currency          string
	Logger            *logger.Logger
}

type service struct {
	tx       txRunner
	repo     *Repository
	groups   *groups.Repository
	outbox   outboxPublisher
	cards    cardVault
	charger  cardCharger
	limits   limitSyncer
	rate     decimal.Decimal
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the funding ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("funding repository required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Cards == nil {
		return nil, fmt.Errorf("card vault required")
	}
	if params.Charger == nil {
		return nil, fmt.Errorf("card charger required")
	}
	rate, err := ParseRate(params.FeeRate)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &service{
		tx:       params.TransactionRunner,
		repo:     params.Repo,
		groups:   params.Groups,
		outbox:   params.Outbox,
		cards:    params.Cards,
		charger:  params.Charger,
		limits:   params.Limits,
		rate:     rate,
		currency: currency,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Preview(ctx context.Context, groupID uuid.UUID, identity auth.Identity, totalCost string) (*BreakdownDTO, error) {
	total, err := ParseAmount(totalCost)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireParticipant(ctx, nil, groupID, identity); err != nil {
		return nil, err
	}
	participants, err := s.groups.ListParticipants(ctx, nil, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
	}
	out := Breakdown(participants, total, s.rate)
	return &out, nil
}

// Generate creates one pending request per non-creator participant. An
// identical repeat returns the live batch; a changed input replaces it while
// nothing has been paid.
func (s *service) Generate(ctx context.Context, groupID uuid.UUID, identity auth.Identity, input GenerateInput) (*BatchDTO, error) {
	total, err := ParseAmount(input.TotalCost)
	if err != nil {
		return nil, err
	}
	tag, details, err := EncodeMethod(input.Method)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = defaultDescription
	}
	if len(description) > maxDescription {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is too long").
			WithDetails(map[string]string{"description": fmt.Sprintf("at most %d characters", maxDescription)})
	}

	var (
		out         *BatchDTO
		resyncLimit bool
		disbursable int64
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group, err := s.groups.LockByIDTx(tx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock group")
		}
		if err := groups.RequireCreator(group, identity); err != nil {
			return err
		}
		if group.Status != enums.GroupStatusFull && group.Status != enums.GroupStatusBooked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment requests can be generated once the group is full").
				WithDetails(map[string]any{"status": group.Status})
		}

		superseded := false
		existing, err := s.repo.ActiveBatch(ctx, tx, groupID)
		switch {
		case err == nil:
			if sameInputs(existing, total, input.Method) {
				out, err = s.loadBatch(ctx, tx, existing)
				if out != nil {
					out.Reused = true
				}
				return err
			}
			paid, err := s.repo.CountByStatus(ctx, tx, existing.ID, enums.PaymentRequestPaid)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count paid requests")
			}
			if paid > 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment requests already have payments recorded").
					WithDetails(map[string]any{"batch_id": existing.ID, "paid": paid})
			}
			if err := s.repo.SupersedeBatchTx(tx, existing.ID, s.now()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede batch")
			}
			superseded = true
		case repo.IsNotFound(err):
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active batch")
		}

		participants, err := s.groups.ListParticipants(ctx, tx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
		}
		shares := Split(total, len(participants))
		batch := &models.PaymentRequestBatch{
			ID:              uuid.New(),
			GroupID:         groupID,
			TotalCostCents:  total,
			ServiceFeeCents: ServiceFee(total, s.rate),
			Method:          tag,
			MethodDetails:   details,
			Description:     description,
			CreatedBy:       identity.ID,
		}
		requests := make([]models.PaymentRequest, 0, len(participants))
		for i, p := range participants {
			if p.IsCreator {
				continue
			}
			requests = append(requests, models.PaymentRequest{
				ID:                 uuid.New(),
				BatchID:            batch.ID,
				GroupID:            groupID,
				PayerParticipantID: p.ID,
				PayerUserID:        p.UserID,
				PayerEmail:         p.Email,
				PayerName:          p.DisplayName,
				CreatorUserID:      group.CreatorUserID,
				AmountCents:        shares[i],
				Description:        description,
				Method:             tag,
				MethodDetails:      details,
				Status:             enums.PaymentRequestPending,
			})
		}
		if err := s.repo.CreateBatchTx(tx, batch, requests); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errConcurrentBatch
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment requests")
		}
		if err := s.repo.SetGroupTotalTx(tx, groupID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store total cost")
		}

		actor := &outbox.ActorRef{UserID: identity.ID, Email: identity.NormalizedEmail()}
		for _, r := range requests {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentRequestCreated,
				AggregateType: enums.AggregatePaymentRequest,
				AggregateID:   r.ID,
				Actor:         actor,
				Data: payloads.PaymentRequestCreatedEvent{
					RequestID:     r.ID,
					BatchID:       batch.ID,
					GroupID:       groupID,
					GroupName:     group.Name,
					CreatorName:   group.CreatorName,
					PayerName:     r.PayerName,
					PayerEmail:    r.PayerEmail,
					AmountCents:   r.AmountCents,
					Currency:      s.currency,
					Description:   description,
					Method:        tag,
					MethodDetails: details,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment request event")
			}
		}

		out = batchFromModel(batch, requests)
		resyncLimit = superseded && group.Status == enums.GroupStatusBooked
		disbursable = batch.TotalCostCents - batch.ServiceFeeCents
		return nil
	})
	if errors.Is(err, errConcurrentBatch) {
		return s.resolveConcurrentBatch(ctx, groupID, total, input.Method)
	}
	if err != nil {
		return nil, err
	}

	if resyncLimit && s.limits != nil {
		if err := s.limits.SyncLimit(ctx, groupID, disbursable); err != nil {
			s.logError(ctx, groupID, "sync instrument limit after regeneration", err)
		}
	}
	if !out.Reused {
		s.logInfo(ctx, groupID, fmt.Sprintf("generated %d payment requests", len(out.Requests)))
	}
	return out, nil
}

// resolveConcurrentBatch handles losing the race on the active batch index.
func (s *service) resolveConcurrentBatch(ctx context.Context, groupID uuid.UUID, total int64, method PaymentMethod) (*BatchDTO, error) {
	winner, err := s.repo.ActiveBatch(ctx, nil, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment requests were generated concurrently")
	}
	if !sameInputs(winner, total, method) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment requests were generated concurrently with different inputs")
	}
	out, err := s.loadBatch(ctx, nil, winner)
	if err != nil {
		return nil, err
	}
	out.Reused = true
	return out, nil
}

func (s *service) MarkPaid(ctx context.Context, requestID uuid.UUID, identity auth.Identity) (*RequestDTO, error) {
	var out *RequestDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.markPaidTx(ctx, tx, requestID, nil, identity)
		if err != nil {
			return err
		}
		dto := requestFromModel(*req)
		out = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkMarkPaid marks every listed request of the group paid, all or nothing.
func (s *service) BulkMarkPaid(ctx context.Context, groupID uuid.UUID, requestIDs []uuid.UUID, identity auth.Identity) ([]RequestDTO, error) {
	if len(requestIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request ids required").
			WithDetails(map[string]string{"request_ids": "required"})
	}
	out := make([]RequestDTO, 0, len(requestIDs))
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seen := map[uuid.UUID]struct{}{}
		for _, id := range requestIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			req, err := s.markPaidTx(ctx, tx, id, &groupID, identity)
			if err != nil {
				return err
			}
			out = append(out, requestFromModel(*req))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) markPaidTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, groupID *uuid.UUID, identity auth.Identity) (*models.PaymentRequest, error) {
	req, err := s.repo.LockRequestTx(tx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found").
				WithDetails(map[string]string{"request_id": requestID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment request")
	}
	if groupID != nil && req.GroupID != *groupID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment request does not belong to this group").
			WithDetails(map[string]string{"request_id": requestID.String()})
	}
	if req.CreatorUserID != identity.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the group creator can mark payments")
	}
	return s.settleTx(ctx, tx, req, nil, identity)
}

// settleTx applies pending -> paid; paid is a no-op and superseded refuses.
func (s *service) settleTx(ctx context.Context, tx *gorm.DB, req *models.PaymentRequest, gatewayPaymentID *string, identity auth.Identity) (*models.PaymentRequest, error) {
	switch req.Status {
	case enums.PaymentRequestPaid:
		return req, nil
	case enums.PaymentRequestSuperseded:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment request was superseded").
			WithDetails(map[string]string{"request_id": req.ID.String()})
	}

	paidAt := s.now()
	ok, err := s.repo.MarkPaidTx(tx, req.ID, paidAt, gatewayPaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark request paid")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment request changed concurrently")
	}
	req.Status = enums.PaymentRequestPaid
	req.PaidAt = &paidAt
	req.GatewayPaymentID = gatewayPaymentID

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRequestPaid,
		AggregateType: enums.AggregatePaymentRequest,
		AggregateID:   req.ID,
		Actor:         &outbox.ActorRef{UserID: identity.ID, Email: identity.NormalizedEmail()},
		Data: payloads.PaymentRequestPaidEvent{
			RequestID:   req.ID,
			GroupID:     req.GroupID,
			PayerUserID: req.PayerUserID,
			AmountCents: req.AmountCents,
			PaidAt:      paidAt,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
	}
	return req, nil
}

func (s *service) RegisterCard(ctx context.Context, groupID uuid.UUID, identity auth.Identity, input paymentmethods.StoreCardInput) (*paymentmethods.CardOnFile, error) {
	participant, err := s.requireParticipant(ctx, nil, groupID, identity)
	if err != nil {
		return nil, err
	}
	return s.cards.StoreCard(ctx, participant, input)
}

// PayByCard charges the payer's card on file for a card request. The request
// id doubles as the gateway idempotency key so a retried charge is not doubled.
func (s *service) PayByCard(ctx context.Context, requestID uuid.UUID, identity auth.Identity) (*RequestDTO, error) {
	req, err := s.repo.FindRequest(ctx, nil, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment request")
	}
	if req.PayerUserID != identity.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the payer can pay this request")
	}
	switch req.Status {
	case enums.PaymentRequestPaid:
		dto := requestFromModel(*req)
		return &dto, nil
	case enums.PaymentRequestSuperseded:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment request was superseded")
	}
	if req.Method != enums.PaymentMethodCard {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment request is not payable by card").
			WithDetails(map[string]any{"method": req.Method})
	}
	participant, err := s.groups.FindParticipant(ctx, nil, req.GroupID, identity.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
	}
	if participant.SquareCardID == nil || participant.SquareCustomerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "register a card before paying")
	}

	payment, err := s.charger.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    req.AmountCents,
		Currency:       s.currency,
		CustomerID:     *participant.SquareCustomerID,
		SourceID:       *participant.SquareCardID,
		IdempotencyKey: "pr:" + req.ID.String(),
		Note:           req.Description,
		ReferenceID:    req.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	var paymentID *string
	if payment != nil && payment.GetID() != nil {
		paymentID = payment.GetID()
	}

	var out *RequestDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.LockRequestTx(tx, requestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment request")
		}
		settled, err := s.settleTx(ctx, tx, locked, paymentID, identity)
		if err != nil {
			return err
		}
		dto := requestFromModel(*settled)
		out = &dto
		return nil
	})
	if err != nil {
		s.logError(ctx, req.GroupID, "card payment captured but request not updated", err)
		return nil, err
	}
	s.logInfo(ctx, req.GroupID, "payment request paid by card")
	return out, nil
}

// ReconcileCardPayment settles a request whose card charge completed at the
// gateway without the synchronous settle landing, e.g. after a timeout.
func (s *service) ReconcileCardPayment(ctx context.Context, requestID uuid.UUID, gatewayPaymentID string) error {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.repo.LockRequestTx(tx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment request")
		}
		if req.Method != enums.PaymentMethodCard {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment request is not payable by card")
		}
		if req.Status == enums.PaymentRequestSuperseded {
			// Money arrived for a superseded batch; the creator refunds out of band.
			s.logError(ctx, req.GroupID, "card payment completed for superseded request",
				fmt.Errorf("request %s payment %s", req.ID, gatewayPaymentID))
			return nil
		}
		_, err = s.settleTx(ctx, tx, req, &gatewayPaymentID, auth.Identity{ID: req.PayerUserID})
		return err
	})
}

func (s *service) Summary(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*SummaryDTO, error) {
	if _, err := s.requireParticipant(ctx, nil, groupID, identity); err != nil {
		return nil, err
	}
	out := &SummaryDTO{
		GroupID:     groupID,
		Currency:    s.currency,
		Collected:   FormatCents(0),
		Outstanding: FormatCents(0),
	}
	batch, err := s.repo.ActiveBatch(ctx, nil, groupID)
	if err != nil {
		if repo.IsNotFound(err) {
			return out, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active batch")
	}
	participants, err := s.groups.ListParticipants(ctx, nil, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
	}
	dto, err := s.loadBatch(ctx, nil, batch)
	if err != nil {
		return nil, err
	}
	breakdown := Breakdown(participants, batch.TotalCostCents, s.rate)
	out.Breakdown = &breakdown
	out.Batch = dto
	for _, r := range dto.Requests {
		switch r.Status {
		case enums.PaymentRequestPaid:
			out.CollectedCents += r.AmountCents
		case enums.PaymentRequestPending:
			out.OutstandingCents += r.AmountCents
		}
	}
	out.Collected = FormatCents(out.CollectedCents)
	out.Outstanding = FormatCents(out.OutstandingCents)
	return out, nil
}

func (s *service) loadBatch(ctx context.Context, tx *gorm.DB, batch *models.PaymentRequestBatch) (*BatchDTO, error) {
	requests, err := s.repo.ListRequests(ctx, tx, batch.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment requests")
	}
	return batchFromModel(batch, requests), nil
}

func (s *service) requireParticipant(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, identity auth.Identity) (*models.Participant, error) {
	if _, err := s.groups.FindByID(ctx, tx, groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	participant, err := s.groups.FindParticipant(ctx, tx, groupID, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "not a participant of this group")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
	}
	return participant, nil
}

// sameInputs compares the stored batch with a new request. Details are
// compared decoded since jsonb does not preserve formatting.
func sameInputs(batch *models.PaymentRequestBatch, total int64, method PaymentMethod) bool {
	if batch.TotalCostCents != total || method == nil || batch.Method != method.Type() {
		return false
	}
	stored, err := methodFromStorage(batch.Method, batch.MethodDetails)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(stored, method)
}

func (s *service) logInfo(ctx context.Context, groupID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithGroupID(ctx, groupID.String()), msg)
}

func (s *service) logError(ctx context.Context, groupID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithGroupID(ctx, groupID.String()), msg, err)
}

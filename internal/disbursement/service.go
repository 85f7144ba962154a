// Package disbursement issues and controls the spending card that pays the
// vendor once a group is booked.
package disbursement

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/stripe"
)

// Service controls a group's disbursement instrument.
type Service interface {
	Issue(ctx context.Context, group *models.Group, limitCents int64) error
	Get(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*InstrumentDTO, error)
	Freeze(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*InstrumentDTO, error)
	Unfreeze(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*InstrumentDTO, error)
	UpdateLimit(ctx context.Context, groupID uuid.UUID, identity auth.Identity, limitCents int64) (*InstrumentDTO, error)
	SyncLimit(ctx context.Context, groupID uuid.UUID, limitCents int64) error
	Transactions(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*TransactionLog, error)
	Reveal(ctx context.Context, groupID uuid.UUID, identity auth.Identity, nonce string) (*RevealDTO, error)
	RecordGatewayTransaction(ctx context.Context, txn GatewayTransaction) error
	SyncStatus(ctx context.Context, gatewayCardID, gatewayStatus string) error
}

// GatewayTransaction is an authorization reported by the card gateway.
type GatewayTransaction struct {
	GatewayCardID        string
	GatewayTransactionID string
	AmountCents          int64
	MerchantName         string
	Approved             bool
	AuthorizationCode    *string
	OccurredAt           time.Time
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type groupFinder interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Group, error)
}

type cardGateway interface {
	IssueCard(ctx context.Context, params stripe.IssueCardParams) (*stripe.Card, error)
	SetCardActive(ctx context.Context, cardID string, active bool) (*stripe.Card, error)
	SetSpendingLimit(ctx context.Context, cardID string, limitCents int64) (*stripe.Card, error)
	Authorizations(ctx context.Context, cardID string) iter.Seq2[stripe.Authorization, error]
	CreateRevealKey(ctx context.Context, cardID, nonce string) (*stripe.RevealKey, error)
}

type accessGate interface {
	RequireVerified(ctx context.Context, groupID uuid.UUID, identity auth.Identity) error
	RecordReveal(ctx context.Context, groupID uuid.UUID, identity auth.Identity)
}

// ServiceParams groups the controller's collaborators.
type ServiceParams struct {
	TransactionRunner txRunner
	Repo              *Repository
	Groups            groupFinder
	Outbox            outboxPublisher
	Gateway           cardGateway
	Gate              accessGate
	Logger            *logger.Logger
}

type service struct {
	tx      txRunner
	repo    *Repository
	groups  groupFinder
	outbox  outboxPublisher
	gateway cardGateway
	gate    accessGate
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("disbursement repository required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group finder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("card gateway required")
	}
	return &service{
		tx:      params.TransactionRunner,
		repo:    params.Repo,
		groups:  params.Groups,
		outbox:  params.Outbox,
		gateway: params.Gateway,
		gate:    params.Gate,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue creates the group's card at the gateway and records it. When the
// record cannot be written the card is deactivated again.
func (s *service) Issue(ctx context.Context, group *models.Group, limitCents int64) error {
	if group == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group required")
	}
	if limitCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "spending limit must be positive").
			WithDetails(map[string]any{"limit_cents": limitCents})
	}
	if _, err := s.repo.FindByGroup(ctx, nil, group.ID); err == nil {
		return pkgerrors.New(pkgerrors.CodeInstrumentAlreadyIssued, "a card was already issued for this group")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instrument")
	}

	vendor := ""
	if group.VendorName != nil {
		vendor = *group.VendorName
	}
	card, err := s.gateway.IssueCard(ctx, stripe.IssueCardParams{
		GroupID:    group.ID.String(),
		OwnerEmail: group.CreatorEmail,
		LimitCents: limitCents,
		VendorName: vendor,
	})
	if err != nil {
		return err
	}

	inst := &models.DisbursementInstrument{
		GroupID:             group.ID,
		OwnerUserID:         group.CreatorUserID,
		GatewayInstrumentID: card.ID,
		SpendingLimitCents:  limitCents,
		Status:              statusFromGateway(card.Status),
		VendorName:          group.VendorName,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, inst); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInstrumentIssued,
			AggregateType: enums.AggregateInstrument,
			AggregateID:   inst.ID,
			Actor:         &outbox.ActorRef{UserID: group.CreatorUserID, Email: group.CreatorEmail},
			Data: payloads.InstrumentIssuedEvent{
				GroupID:            group.ID,
				InstrumentID:       inst.ID,
				SpendingLimitCents: limitCents,
			},
		})
	})
	if err != nil {
		if _, rollbackErr := s.gateway.SetCardActive(context.WithoutCancel(ctx), card.ID, false); rollbackErr != nil {
			s.logError(ctx, group.ID, "deactivate orphaned card "+card.ID, rollbackErr)
		}
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeInstrumentAlreadyIssued, err, "a card was already issued for this group")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record instrument")
	}
	s.logInfo(ctx, group.ID, "disbursement card issued")
	return nil
}

func (s *service) Get(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*InstrumentDTO, error) {
	inst, err := s.ownedInstrument(ctx, groupID, identity)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, inst)
}

// Freeze deactivates the card. It does not require a verified gate session.
func (s *service) Freeze(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*InstrumentDTO, error) {
	return s.setActive(ctx, groupID, identity, false)
}

func (s *service) Unfreeze(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*InstrumentDTO, error) {
	return s.setActive(ctx, groupID, identity, true)
}

func (s *service) setActive(ctx context.Context, groupID uuid.UUID, identity auth.Identity, active bool) (*InstrumentDTO, error) {
	inst, err := s.ownedInstrument(ctx, groupID, identity)
	if err != nil {
		return nil, err
	}
	from, to := enums.InstrumentActive, enums.InstrumentFrozen
	if active {
		from, to = to, from
	}
	if inst.Status == to {
		return s.view(ctx, inst)
	}
	if inst.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeInstrumentInactive, "card is not ready yet").
			WithDetails(map[string]any{"status": inst.Status})
	}

	if _, err := s.gateway.SetCardActive(ctx, inst.GatewayInstrumentID, active); err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdateStatus(ctx, inst.ID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update instrument status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "card status changed concurrently")
	}
	inst.Status = to
	s.logInfo(ctx, groupID, "disbursement card set to "+string(to))
	return s.view(ctx, inst)
}

func (s *service) UpdateLimit(ctx context.Context, groupID uuid.UUID, identity auth.Identity, limitCents int64) (*InstrumentDTO, error) {
	inst, err := s.ownedInstrument(ctx, groupID, identity)
	if err != nil {
		return nil, err
	}
	if err := s.applyLimit(ctx, inst, limitCents); err != nil {
		return nil, err
	}
	return s.view(ctx, inst)
}

// SyncLimit aligns the card with a regenerated cost. A group without a card
// has nothing to sync.
func (s *service) SyncLimit(ctx context.Context, groupID uuid.UUID, limitCents int64) error {
	inst, err := s.repo.FindByGroup(ctx, nil, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instrument")
	}
	return s.applyLimit(ctx, inst, limitCents)
}

func (s *service) applyLimit(ctx context.Context, inst *models.DisbursementInstrument, limitCents int64) error {
	if limitCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "spending limit must be positive").
			WithDetails(map[string]string{"limit_cents": "must be greater than zero"})
	}
	if inst.SpendingLimitCents == limitCents {
		return nil
	}
	spent, err := s.repo.SumApproved(ctx, inst.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum approved spend")
	}
	if limitCents < spent {
		return pkgerrors.New(pkgerrors.CodeValidation, "spending limit is below what was already spent").
			WithDetails(map[string]any{"limit_cents": limitCents, "spent_cents": spent})
	}
	if _, err := s.gateway.SetSpendingLimit(ctx, inst.GatewayInstrumentID, limitCents); err != nil {
		return err
	}
	if err := s.repo.UpdateLimit(ctx, inst.ID, limitCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update spending limit")
	}
	inst.SpendingLimitCents = limitCents
	s.logInfo(ctx, inst.GroupID, "disbursement card limit updated")
	return nil
}

// Transactions pulls authorizations the log has not seen yet and returns the
// log. Gateway trouble degrades to the recorded log.
func (s *service) Transactions(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*TransactionLog, error) {
	inst, err := s.ownedInstrument(ctx, groupID, identity)
	if err != nil {
		return nil, err
	}
	stale := false
	if err := s.pullAuthorizations(ctx, inst); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			return nil, err
		}
		s.logError(ctx, groupID, "pull card authorizations", err)
		stale = true
	}
	view, err := s.view(ctx, inst)
	if err != nil {
		return nil, err
	}
	return &TransactionLog{
		Instrument:   *view,
		Stale:        stale,
		repo:         s.repo,
		instrumentID: inst.ID,
	}, nil
}

// pullAuthorizations walks the gateway newest first and stops at the first
// authorization already in the log.
func (s *service) pullAuthorizations(ctx context.Context, inst *models.DisbursementInstrument) error {
	for authz, err := range s.gateway.Authorizations(ctx, inst.GatewayInstrumentID) {
		if err != nil {
			return err
		}
		inserted, err := s.repo.AppendTransaction(ctx, transactionModel(inst.ID, GatewayTransaction{
			GatewayTransactionID: authz.ID,
			AmountCents:          authz.AmountCents,
			MerchantName:         authz.MerchantName,
			Approved:             authz.Approved,
			OccurredAt:           authz.CreatedAt,
		}))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transaction")
		}
		if !inserted {
			return nil
		}
	}
	return nil
}

// Reveal hands out a short-lived key for the gateway-hosted card display.
// The gate must be verified for the caller.
func (s *service) Reveal(ctx context.Context, groupID uuid.UUID, identity auth.Identity, nonce string) (*RevealDTO, error) {
	if s.gate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "card access gate not configured")
	}
	if strings.TrimSpace(nonce) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nonce required").
			WithDetails(map[string]string{"nonce": "required"})
	}
	if err := s.gate.RequireVerified(ctx, groupID, identity); err != nil {
		return nil, err
	}
	inst, err := s.ownedInstrument(ctx, groupID, identity)
	if err != nil {
		return nil, err
	}
	if inst.Status != enums.InstrumentActive {
		return nil, pkgerrors.New(pkgerrors.CodeInstrumentInactive, "card is not active").
			WithDetails(map[string]any{"status": inst.Status})
	}
	key, err := s.gateway.CreateRevealKey(ctx, inst.GatewayInstrumentID, nonce)
	if err != nil {
		return nil, err
	}
	s.gate.RecordReveal(ctx, groupID, identity)
	return &RevealDTO{
		CardID:             inst.GatewayInstrumentID,
		EphemeralKeySecret: key.Secret,
		ExpiresAt:          key.ExpiresAt,
	}, nil
}

// RecordGatewayTransaction logs an authorization pushed by the gateway. A
// repeat of a known authorization updates its decision.
func (s *service) RecordGatewayTransaction(ctx context.Context, txn GatewayTransaction) error {
	inst, err := s.repo.FindByGatewayID(ctx, txn.GatewayCardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeInstrumentNotFound, "unknown card").
				WithDetails(map[string]string{"card_id": txn.GatewayCardID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instrument")
	}
	model := transactionModel(inst.ID, txn)
	inserted, err := s.repo.AppendTransaction(ctx, model)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transaction")
	}
	if inserted {
		return nil
	}
	if err := s.repo.UpdateTransactionStatus(ctx, txn.GatewayTransactionID, model.Status, model.AmountCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction")
	}
	return nil
}

// SyncStatus records a status change made at the gateway.
func (s *service) SyncStatus(ctx context.Context, gatewayCardID, gatewayStatus string) error {
	inst, err := s.repo.FindByGatewayID(ctx, gatewayCardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeInstrumentNotFound, "unknown card").
				WithDetails(map[string]string{"card_id": gatewayCardID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instrument")
	}
	status := statusFromGateway(gatewayStatus)
	if status == inst.Status {
		return nil
	}
	if err := s.repo.SetStatus(ctx, inst.ID, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync instrument status")
	}
	s.logInfo(ctx, inst.GroupID, "disbursement card status synced to "+string(status))
	return nil
}

func (s *service) ownedInstrument(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*models.DisbursementInstrument, error) {
	group, err := s.groups.FindByID(ctx, nil, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	if group.CreatorUserID != identity.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the group creator can manage the card")
	}
	inst, err := s.repo.FindByGroup(ctx, nil, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInstrumentNotFound, "no disbursement card has been issued for this group")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instrument")
	}
	return inst, nil
}

func (s *service) view(ctx context.Context, inst *models.DisbursementInstrument) (*InstrumentDTO, error) {
	spent, err := s.repo.SumApproved(ctx, inst.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum approved spend")
	}
	out := instrumentFromModel(inst, spent)
	return &out, nil
}

func transactionModel(instrumentID uuid.UUID, txn GatewayTransaction) *models.InstrumentTransaction {
	status := enums.TransactionDeclined
	if txn.Approved {
		status = enums.TransactionApproved
	}
	occurred := txn.OccurredAt.UTC()
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return &models.InstrumentTransaction{
		InstrumentID:         instrumentID,
		GatewayTransactionID: txn.GatewayTransactionID,
		AmountCents:          txn.AmountCents,
		MerchantName:         txn.MerchantName,
		Status:               status,
		AuthorizationCode:    txn.AuthorizationCode,
		OccurredAt:           occurred,
	}
}

// statusFromGateway maps Issuing card statuses onto ours; anything not
// spendable is frozen.
func statusFromGateway(status string) enums.InstrumentStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return enums.InstrumentActive
	case "":
		return enums.InstrumentPending
	default:
		return enums.InstrumentFrozen
	}
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

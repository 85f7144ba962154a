// Package cardaccess gates disclosure of a group's disbursement card behind a
// short-lived, rate-limited verification performed by the group creator.
package cardaccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/metrics"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/stripe"
)

const lockSlack = 5 * time.Second

const (
	outcomeVerified      = "verified"
	outcomeFailed        = "failed"
	outcomeBlocked       = "blocked"
	outcomeNotAuthorized = "not_authorized"
	outcomeInFlight      = "in_flight"
	outcomeGatewayError  = "gateway_error"
)

// Service is the card access security gate.
type Service interface {
	Verify(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*StatusDTO, error)
	Status(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*StatusDTO, error)
	Reset(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*StatusDTO, error)
	RequireVerified(ctx context.Context, groupID uuid.UUID, identity auth.Identity) error
	RecordReveal(ctx context.Context, groupID uuid.UUID, identity auth.Identity)
}

// StatusDTO is what the creator sees of the gate.
type StatusDTO struct {
	GroupID          uuid.UUID             `json:"group_id"`
	State            enums.CardAccessState `json:"state"`
	FailedAttempts   int                   `json:"failed_attempts"`
	MaxAttempts      int                   `json:"max_attempts"`
	VerifiedUntil    *time.Time            `json:"verified_until,omitempty"`
	BlockedUntil     *time.Time            `json:"blocked_until,omitempty"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
}

type groupFinder interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Group, error)
}

type instrumentFinder interface {
	FindByGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (*models.DisbursementInstrument, error)
}

type cardChecker interface {
	GetCard(ctx context.Context, cardID string) (*stripe.Card, error)
}

type auditAppender interface {
	Append(ctx context.Context, event *models.CardAccessAuditEvent) error
}

// ServiceParams groups the gate's collaborators.
type ServiceParams struct {
	Store          stateStore
	Groups         groupFinder
	Instruments    instrumentFinder
	Gateway        cardChecker
	Audit          auditAppender
	Metrics        *metrics.CardAccessMetrics
	Config         config.CardAccessConfig
	GatewayTimeout time.Duration
	Logger         *logger.Logger
}

type service struct {
	store       stateStore
	groups      groupFinder
	instruments instrumentFinder
	gateway     cardChecker
	audit       auditAppender
	metrics     *metrics.CardAccessMetrics
	cfg         config.CardAccessConfig
	lockTTL     time.Duration
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("state store required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group finder required")
	}
	if params.Instruments == nil {
		return nil, fmt.Errorf("instrument finder required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("card gateway required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	cfg := params.Config
	if cfg.SessionTTL <= 0 || cfg.Cooldown <= 0 || cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("card access session ttl, cooldown and max attempts must be positive")
	}
	return &service{
		store:       params.Store,
		groups:      params.Groups,
		instruments: params.Instruments,
		gateway:     params.Gateway,
		audit:       params.Audit,
		metrics:     params.Metrics,
		cfg:         cfg,
		lockTTL:     params.GatewayTimeout + lockSlack,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Verify runs one verification attempt. Attempts are serialized per
// (group, creator) by a short-lived lock; a concurrent attempt is refused
// without being counted.
func (s *service) Verify(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*StatusDTO, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, groupID, identity.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	key := s.store.CardAccessKey(groupID.String(), identity.ID.String())
	sess, err := loadSession(ctx, s.store, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card access state")
	}
	now := s.now()

	if sess.state(now) == enums.CardAccessBlocked {
		s.metrics.IncAttempt(outcomeBlocked)
		return nil, blockedError(sess, now)
	}
	changed := s.observeExpiry(ctx, groupID, identity.ID, &sess, now)

	if group.CreatorUserID != identity.ID {
		reason := "caller is not the group creator"
		s.record(ctx, groupID, identity.ID, enums.CardAccessNotAuthorized, &reason, sess.FailedAttempts)
		s.metrics.IncAttempt(outcomeNotAuthorized)
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the group creator can access the card")
	}

	// A live session is returned as is; repeating the call is not an attempt.
	if sess.state(now) == enums.CardAccessVerified {
		if changed {
			s.persist(ctx, key, groupID, sess)
		}
		return s.view(groupID, sess, now), nil
	}

	last := sess.LastAttemptAt
	sess.LastAttemptAt = &now
	if last != nil && now.Sub(*last) < s.cfg.MinSpacing {
		wait := s.cfg.MinSpacing - now.Sub(*last)
		return nil, s.fail(ctx, key, groupID, identity.ID, sess, now,
			pkgerrors.New(pkgerrors.CodeTooFrequent, "verification attempted too soon").
				WithDetails(map[string]any{"retry_after_seconds": ceilSeconds(wait)}))
	}

	instrument, err := s.instruments.FindByGroup(ctx, nil, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.fail(ctx, key, groupID, identity.ID, sess, now,
				pkgerrors.New(pkgerrors.CodeInstrumentNotFound, "no disbursement card has been issued for this group"))
		}
		s.persist(ctx, key, groupID, sess)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instrument")
	}
	if instrument.Status != enums.InstrumentActive {
		return nil, s.fail(ctx, key, groupID, identity.ID, sess, now,
			pkgerrors.New(pkgerrors.CodeInstrumentInactive, "disbursement card is not active").
				WithDetails(map[string]any{"status": instrument.Status}))
	}

	started := time.Now()
	card, err := s.gateway.GetCard(ctx, instrument.GatewayInstrumentID)
	s.metrics.ObserveGateway("get_card", time.Since(started))
	if err != nil {
		// Gateway trouble is not the caller's fault and does not count.
		s.persist(ctx, key, groupID, sess)
		s.metrics.IncAttempt(outcomeGatewayError)
		return nil, err
	}
	if card == nil || !card.Active() {
		return nil, s.fail(ctx, key, groupID, identity.ID, sess, now,
			pkgerrors.New(pkgerrors.CodeInstrumentInactive, "card gateway denied access"))
	}

	until := now.Add(s.cfg.SessionTTL)
	sess.VerifiedUntil = &until
	sess.FailedAttempts = 0
	sess.BlockedUntil = nil
	if err := saveSession(ctx, s.store, key, sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save card access state")
	}
	s.record(ctx, groupID, identity.ID, enums.CardAccessVerifySucceeded, nil, 0)
	s.metrics.IncAttempt(outcomeVerified)
	s.logInfo(ctx, groupID, "card access verified")
	return s.view(groupID, sess, now), nil
}

// fail counts a failed attempt and moves the gate to blocked at the threshold.
func (s *service) fail(ctx context.Context, key string, groupID, userID uuid.UUID, sess session, now time.Time, cause *pkgerrors.Error) error {
	sess.FailedAttempts++
	reason := cause.Message()
	s.record(ctx, groupID, userID, enums.CardAccessVerifyFailed, &reason, sess.FailedAttempts)
	s.metrics.IncAttempt(outcomeFailed)

	var out error = cause.WithDetails(mergeDetails(cause.Details(), map[string]any{
		"failed_attempts": sess.FailedAttempts,
		"max_attempts":    s.cfg.MaxAttempts,
	}))
	if sess.FailedAttempts >= s.cfg.MaxAttempts {
		blockedUntil := now.Add(s.cfg.Cooldown)
		sess.BlockedUntil = &blockedUntil
		s.record(ctx, groupID, userID, enums.CardAccessLockedOut, &reason, sess.FailedAttempts)
		s.metrics.IncLockout()
		s.logWarn(ctx, groupID, "card access locked out")
		out = pkgerrors.Wrap(pkgerrors.CodeAccessBlocked, cause, "too many failed verification attempts").
			WithDetails(map[string]any{
				"blocked_until":       blockedUntil,
				"retry_after_seconds": ceilSeconds(s.cfg.Cooldown),
			})
	}
	if err := saveSession(ctx, s.store, key, sess); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save card access state")
	}
	return out
}

func (s *service) Status(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*StatusDTO, error) {
	if _, err := s.requireCreator(ctx, groupID, identity); err != nil {
		return nil, err
	}
	key := s.store.CardAccessKey(groupID.String(), identity.ID.String())
	sess, err := loadSession(ctx, s.store, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card access state")
	}
	now := s.now()
	s.settleExpiry(ctx, key, groupID, identity.ID, &sess, now)
	return s.view(groupID, sess, now), nil
}

// Reset returns a verified or locked gate to locked. A blocked gate stays
// blocked until its cooldown elapses.
func (s *service) Reset(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*StatusDTO, error) {
	if _, err := s.requireCreator(ctx, groupID, identity); err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx, groupID, identity.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	key := s.store.CardAccessKey(groupID.String(), identity.ID.String())
	sess, err := loadSession(ctx, s.store, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card access state")
	}
	now := s.now()
	s.observeExpiry(ctx, groupID, identity.ID, &sess, now)
	if sess.state(now) == enums.CardAccessBlocked {
		return s.view(groupID, sess, now), nil
	}
	sess.VerifiedUntil = nil
	if err := saveSession(ctx, s.store, key, sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save card access state")
	}
	s.record(ctx, groupID, identity.ID, enums.CardAccessReset, nil, sess.FailedAttempts)
	return s.view(groupID, sess, now), nil
}

func (s *service) RequireVerified(ctx context.Context, groupID uuid.UUID, identity auth.Identity) error {
	if _, err := s.requireCreator(ctx, groupID, identity); err != nil {
		return err
	}
	key := s.store.CardAccessKey(groupID.String(), identity.ID.String())
	sess, err := loadSession(ctx, s.store, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card access state")
	}
	now := s.now()
	switch sess.state(now) {
	case enums.CardAccessVerified:
		return nil
	case enums.CardAccessBlocked:
		return blockedError(sess, now)
	}
	s.settleExpiry(ctx, key, groupID, identity.ID, &sess, now)
	return pkgerrors.New(pkgerrors.CodeVerificationRequired, "card access verification required").
		WithDetails(map[string]any{"state": enums.CardAccessLocked})
}

func (s *service) RecordReveal(ctx context.Context, groupID uuid.UUID, identity auth.Identity) {
	s.record(ctx, groupID, identity.ID, enums.CardAccessRevealed, nil, 0)
}

// observeExpiry applies elapsed timers and audits them. It reports whether
// the session changed.
func (s *service) observeExpiry(ctx context.Context, groupID, userID uuid.UUID, sess *session, now time.Time) bool {
	expired, elapsed := sess.expire(now)
	if expired {
		s.record(ctx, groupID, userID, enums.CardAccessSessionExpired, nil, sess.FailedAttempts)
	}
	if elapsed {
		s.record(ctx, groupID, userID, enums.CardAccessCooldownElapsed, nil, 0)
	}
	return expired || elapsed
}

// settleExpiry persists elapsed timers when no verification holds the lock.
func (s *service) settleExpiry(ctx context.Context, key string, groupID, userID uuid.UUID, sess *session, now time.Time) {
	if !s.observeExpiry(ctx, groupID, userID, sess, now) {
		return
	}
	release, err := s.acquire(ctx, groupID, userID)
	if err != nil {
		return
	}
	defer release()
	s.persist(ctx, key, groupID, *sess)
}

func (s *service) acquire(ctx context.Context, groupID, userID uuid.UUID) (func(), error) {
	lockKey := s.store.CardAccessLockKey(groupID.String(), userID.String())
	token := uuid.NewString()
	ok, err := s.store.SetNX(ctx, lockKey, token, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire card access lock")
	}
	if !ok {
		s.metrics.IncAttempt(outcomeInFlight)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a verification is already in progress")
	}
	return func() {
		// The caller's context may already be cancelled; the lock must still go.
		// A lock that expired and was taken by another caller is left alone.
		if _, err := s.store.DeleteIfEquals(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logError(ctx, groupID, "release card access lock", err)
		}
	}, nil
}

func (s *service) loadGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, nil, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return group, nil
}

func (s *service) requireCreator(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*models.Group, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.CreatorUserID != identity.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the group creator can access the card")
	}
	return group, nil
}

func (s *service) persist(ctx context.Context, key string, groupID uuid.UUID, sess session) {
	if err := saveSession(ctx, s.store, key, sess); err != nil {
		s.logError(ctx, groupID, "persist card access state", err)
	}
}

// record appends an audit row. Audit failures never fail the gate.
func (s *service) record(ctx context.Context, groupID, userID uuid.UUID, event enums.CardAccessEvent, reason *string, failures int) {
	err := s.audit.Append(ctx, &models.CardAccessAuditEvent{
		GroupID:        groupID,
		ActorUserID:    userID,
		Event:          event,
		Reason:         reason,
		FailedAttempts: failures,
	})
	if err != nil {
		s.logError(ctx, groupID, "append card access audit event", err)
	}
}

func (s *service) view(groupID uuid.UUID, sess session, now time.Time) *StatusDTO {
	out := &StatusDTO{
		GroupID:        groupID,
		State:          sess.state(now),
		FailedAttempts: sess.FailedAttempts,
		MaxAttempts:    s.cfg.MaxAttempts,
	}
	switch out.State {
	case enums.CardAccessVerified:
		out.VerifiedUntil = sess.VerifiedUntil
		out.RemainingSeconds = ceilSeconds(sess.VerifiedUntil.Sub(now))
	case enums.CardAccessBlocked:
		out.BlockedUntil = sess.BlockedUntil
		out.RemainingSeconds = ceilSeconds(sess.BlockedUntil.Sub(now))
	}
	return out
}

func blockedError(sess session, now time.Time) error {
	return pkgerrors.New(pkgerrors.CodeAccessBlocked, "card access is temporarily blocked").
		WithDetails(map[string]any{
			"blocked_until":       sess.BlockedUntil,
			"retry_after_seconds": ceilSeconds(sess.BlockedUntil.Sub(now)),
		})
}

func mergeDetails(existing any, extra map[string]any) map[string]any {
	out := map[string]any{}
	if m, ok := existing.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

func (s *service) logInfo(ctx context.Context, groupID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithGroupID(ctx, groupID.String()), msg)
}

func (s *service) logWarn(ctx context.Context, groupID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithGroupID(ctx, groupID.String()), msg)
}

func (s *service) logError(ctx context.Context, groupID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithGroupID(ctx, groupID.String()), msg, err)
}

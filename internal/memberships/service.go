package memberships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/timeslots"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type consensus interface {
	AnalysisTx(ctx context.Context, tx *gorm.DB, group *models.Group) (*timeslots.Result, error)
}

// Service handles invitation redemption and participant slot choices.
type Service interface {
	GetJoinInfo(ctx context.Context, token string) (*JoinInfoDTO, error)
	Join(ctx context.Context, token string, identity auth.Identity, slotIDs []uuid.UUID) (*JoinResult, error)
	UpdateSelections(ctx context.Context, groupID uuid.UUID, identity auth.Identity, slotIDs []uuid.UUID) (*timeslots.Result, error)
	ListMembers(ctx context.Context, groupID uuid.UUID, identity auth.Identity) ([]groups.ParticipantDTO, error)
}

type service struct {
	tx        txRunner
	repo      *Repository
	groups    *groups.Repository
	outbox    outboxPublisher
	consensus consensus
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the membership manager.
func NewService(tx txRunner, repository *Repository, groupRepo *groups.Repository, publisher outboxPublisher, analysis consensus, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("membership repository required")
	}
	if groupRepo == nil {
		return nil, fmt.Errorf("group repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if analysis == nil {
		return nil, fmt.Errorf("time slot analysis required")
	}
	return &service{
		tx:        tx,
		repo:      repository,
		groups:    groupRepo,
		outbox:    publisher,
		consensus: analysis,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetJoinInfo(ctx context.Context, token string) (*JoinInfoDTO, error) {
	invitee, err := s.resolveToken(ctx, nil, token)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.FindByID(ctx, nil, invitee.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidToken()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	slots, err := s.groups.ListTimeSlots(ctx, nil, group.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
	}
	info := joinInfoFromModels(group, slots, invitee)
	return &info, nil
}

// Join turns an invitation into a participant. Every check and write runs in
// one transaction with the group row locked; the seat claim is a conditional
// update so capacity holds even without the lock.
func (s *service) Join(ctx context.Context, token string, identity auth.Identity, slotIDs []uuid.UUID) (*JoinResult, error) {
	if identity.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var (
		result *JoinResult
		filled bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invitee, err := s.resolveToken(ctx, tx, token)
		if err != nil {
			return err
		}
		if identity.NormalizedEmail() != auth.NormalizeEmail(invitee.Email) {
			return pkgerrors.New(pkgerrors.CodeIdentityMismatch, "signed-in email does not match the invitation")
		}

		group, err := s.groups.LockByIDTx(tx, invitee.GroupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidToken()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock group")
		}
		if group.Status != enums.GroupStatusForming || group.IsFull() {
			return groupFull(group)
		}
		if _, err := s.groups.FindParticipant(ctx, tx, group.ID, identity.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "already a participant of this group")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check participant")
		}

		slots, err := s.groups.ListTimeSlots(ctx, tx, group.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
		}
		selected, err := validateSelection(slots, slotIDs)
		if err != nil {
			return err
		}
		if len(slots) > 0 && len(selected) == 0 {
			return pkgerrors.New(pkgerrors.CodeTimeSlotSelectionRequired, "select at least one time slot")
		}

		ok, err := s.repo.ConsumeInviteeTx(tx, invitee.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume invitation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "invitation was already used")
		}
		ok, err = s.repo.IncrementParticipantsTx(tx, group.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim seat")
		}
		if !ok {
			return groupFull(group)
		}
		group.CurrentParticipants++

		participant := &models.Participant{
			GroupID:     group.ID,
			UserID:      identity.ID,
			Email:       identity.NormalizedEmail(),
			DisplayName: displayName(identity, invitee),
			Position:    group.CurrentParticipants,
		}
		if err := s.groups.CreateParticipantTx(tx, participant); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "already a participant of this group")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participant")
		}
		if err := s.groups.ReplaceSelectionsTx(tx, group.ID, participant.ID, selected); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store selections")
		}

		actor := &outbox.ActorRef{UserID: identity.ID, Email: identity.NormalizedEmail()}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberJoined,
			AggregateType: enums.AggregateGroup,
			AggregateID:   group.ID,
			Actor:         actor,
			Data: payloads.MemberJoinedEvent{
				GroupID:             group.ID,
				ParticipantID:       participant.ID,
				UserID:              identity.ID,
				DisplayName:         participant.DisplayName,
				CurrentParticipants: group.CurrentParticipants,
				MaxParticipants:     group.MaxParticipants,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit member joined")
		}

		if group.IsFull() {
			ok, err := s.groups.UpdateStatusTx(tx, group.ID, enums.GroupStatusForming, enums.GroupStatusFull, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark group full")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "group status changed concurrently")
			}
			group.Status = enums.GroupStatusFull
			filled = true
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGroupFull,
				AggregateType: enums.AggregateGroup,
				AggregateID:   group.ID,
				Actor:         actor,
				Data: payloads.GroupFullEvent{
					GroupID:             group.ID,
					CreatorUserID:       group.CreatorUserID,
					CurrentParticipants: group.CurrentParticipants,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit group full")
			}
		}

		analysis, err := s.consensus.AnalysisTx(ctx, tx, group)
		if err != nil {
			return err
		}
		participants, err := s.groups.ListParticipants(ctx, tx, group.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
		}
		dto := groups.FromModel(group)
		dto.Participants = participantsToDTO(participants)
		dto.TimeSlots = groups.TimeSlotsFromModels(slots)
		result = &JoinResult{
			Participant: groups.ParticipantFromModel(*participant),
			Group:       dto,
			Analysis:    analysis,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithGroupID(ctx, result.Group.ID.String())
		s.logg.Info(logCtx, "member joined")
		if filled {
			s.logg.Info(logCtx, "group is full")
		}
	}
	return result, nil
}

// UpdateSelections replaces the caller's selection set while the group forms.
func (s *service) UpdateSelections(ctx context.Context, groupID uuid.UUID, identity auth.Identity, slotIDs []uuid.UUID) (*timeslots.Result, error) {
	var result *timeslots.Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group, err := s.groups.LockByIDTx(tx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock group")
		}
		participant, err := s.groups.FindParticipant(ctx, tx, groupID, identity.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotAuthorized, "not a participant of this group")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
		}
		if group.Status != enums.GroupStatusForming {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "selections can only change while the group is forming").
				WithDetails(map[string]any{"status": group.Status})
		}
		slots, err := s.groups.ListTimeSlots(ctx, tx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
		}
		selected, err := validateSelection(slots, slotIDs)
		if err != nil {
			return err
		}
		if err := s.groups.ReplaceSelectionsTx(tx, groupID, participant.ID, selected); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace selections")
		}
		result, err = s.consensus.AnalysisTx(ctx, tx, group)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListMembers(ctx context.Context, groupID uuid.UUID, identity auth.Identity) ([]groups.ParticipantDTO, error) {
	if _, err := s.groups.FindByID(ctx, nil, groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	rows, err := s.groups.ListParticipants(ctx, nil, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
	}
	member := false
	for _, p := range rows {
		if p.UserID == identity.ID {
			member = true
			break
		}
	}
	if !member {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "not a participant of this group")
	}
	return participantsToDTO(rows), nil
}

func (s *service) resolveToken(ctx context.Context, tx *gorm.DB, token string) (*models.Invitee, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalidToken()
	}
	invitee, err := s.repo.FindOpenInvitee(ctx, tx, security.DigestJoinToken(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidToken()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve invitation")
	}
	return invitee, nil
}

// validateSelection collapses duplicates and rejects ids outside the group.
func validateSelection(slots []models.TimeSlot, slotIDs []uuid.UUID) ([]uuid.UUID, error) {
	known := make(map[uuid.UUID]struct{}, len(slots))
	for _, s := range slots {
		known[s.ID] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(slotIDs))
	out := make([]uuid.UUID, 0, len(slotIDs))
	for _, id := range slotIDs {
		if _, ok := known[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "time slot does not belong to this group").
				WithDetails(map[string]string{"time_slot_id": id.String()})
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func invalidToken() error {
	return pkgerrors.New(pkgerrors.CodeInvalidOrExpiredToken, "invitation link is invalid or has already been used")
}

func groupFull(group *models.Group) error {
	return pkgerrors.New(pkgerrors.CodeGroupFull, "group is no longer accepting members").
		WithDetails(map[string]any{
			"status":               group.Status,
			"current_participants": group.CurrentParticipants,
			"max_participants":     group.MaxParticipants,
		})
}

func displayName(identity auth.Identity, invitee *models.Invitee) string {
	if name := strings.TrimSpace(identity.DisplayName); name != "" {
		return name
	}
	if invitee.Name != "" {
		return invitee.Name
	}
	return identity.NormalizedEmail()
}

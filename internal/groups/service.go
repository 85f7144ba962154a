package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/security"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/types"
)

const (
	MinParticipants = 2
	MaxParticipants = 10
	MaxTimeSlots    = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// instrumentIssuer releases the group's spending instrument at booking.
type instrumentIssuer interface {
	Issue(ctx context.Context, group *models.Group, limitCents int64) error
}

// Service exposes the group registry.
type Service interface {
	Create(ctx context.Context, identity auth.Identity, input CreateGroupInput) (*CreatedGroup, error)
	Get(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*GroupDTO, error)
	ListMine(ctx context.Context, identity auth.Identity) ([]SummaryDTO, error)
	Book(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*GroupDTO, error)
	ConfirmService(ctx context.Context, groupID uuid.UUID, identity auth.Identity, input ConfirmServiceInput) (*GroupDTO, error)
	MarkDisbursed(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*GroupDTO, error)
	Delete(ctx context.Context, groupID uuid.UUID, identity auth.Identity) error
}

// CreateGroupInput is the creator's proposal.
type CreateGroupInput struct {
	Name            string
	Address         types.Address
	MaxParticipants int
	TimeSlotStarts  []time.Time
	Invitees        []InviteeInput
	VendorName      *string
	VendorWebsite   *string
}

// InviteeInput names one person to invite.
type InviteeInput struct {
	Name  string
	Email string
	Phone *string
}

// ConfirmServiceInput records the vendor booking.
type ConfirmServiceInput struct {
	VendorReference string
	VendorName      *string
	VendorWebsite   *string
}

type service struct {
	tx       txRunner
	repo     *Repository
	outbox   outboxPublisher
	issuer   instrumentIssuer
	logg     *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the group registry.
func NewService(tx txRunner, repository *Repository, publisher outboxPublisher, issuer instrumentIssuer, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("group repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("instrument issuer required")
	}
	return &service{
		tx:       tx,
		repo:     repository,
		outbox:   publisher,
		issuer:   issuer,
		logg:     logg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, identity auth.Identity, input CreateGroupInput) (*CreatedGroup, error) {
	if identity.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	input, err := s.validateCreate(identity, input)
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		ID:                  uuid.New(),
		Name:                input.Name,
		Address:             input.Address,
		CreatorUserID:       identity.ID,
		CreatorEmail:        identity.NormalizedEmail(),
		CreatorName:         displayName(identity),
		MaxParticipants:     input.MaxParticipants,
		CurrentParticipants: 1,
		Status:              enums.GroupStatusForming,
		VendorName:          input.VendorName,
		VendorWebsite:       input.VendorWebsite,
	}
	creator := &models.Participant{
		GroupID:     group.ID,
		UserID:      identity.ID,
		Email:       identity.NormalizedEmail(),
		DisplayName: displayName(identity),
		IsCreator:   true,
		Position:    1,
	}

	slots := make([]models.TimeSlot, 0, len(input.TimeSlotStarts))
	windows := make([]payloads.SlotWindow, 0, len(input.TimeSlotStarts))
	for i, start := range input.TimeSlotStarts {
		slot := models.TimeSlot{
			ID:        uuid.New(),
			GroupID:   group.ID,
			Position:  i + 1,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, SlotLengthDays),
		}
		slots = append(slots, slot)
		windows = append(windows, payloads.SlotWindow{
			TimeSlotID: slot.ID,
			StartDate:  slot.StartDate.Format(DateLayout),
			EndDate:    slot.EndDate.Format(DateLayout),
		})
	}

	tokens := make(map[string]string, len(input.Invitees))
	invitees := make([]models.Invitee, 0, len(input.Invitees))
	for _, in := range input.Invitees {
		token, err := security.NewJoinToken()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate join token")
		}
		tokens[in.Email] = token
		invitees = append(invitees, models.Invitee{
			ID:              uuid.New(),
			GroupID:         group.ID,
			Name:            in.Name,
			Email:           in.Email,
			Phone:           in.Phone,
			JoinTokenDigest: security.DigestJoinToken(token),
		})
	}

	actor := &outbox.ActorRef{UserID: identity.ID, Email: identity.NormalizedEmail()}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, group); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group")
		}
		if err := s.repo.CreateParticipantTx(tx, creator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create creator participant")
		}
		if err := s.repo.CreateTimeSlotsTx(tx, slots); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create time slots")
		}
		if err := s.repo.CreateInviteesTx(tx, invitees); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invitees")
		}
		for _, inv := range invitees {
			event := outbox.DomainEvent{
				EventType:     enums.EventInvitationCreated,
				AggregateType: enums.AggregateInvitee,
				AggregateID:   inv.ID,
				Actor:         actor,
				Data: payloads.InvitationCreatedEvent{
					GroupID:         group.ID,
					GroupName:       group.Name,
					Address:         group.Address.String(),
					CreatorName:     group.CreatorName,
					MaxParticipants: group.MaxParticipants,
					InviteeID:       inv.ID,
					InviteeName:     inv.Name,
					InviteeEmail:    inv.Email,
					JoinToken:       tokens[inv.Email],
					TimeSlots:       windows,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invitation event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, group.ID, "group created")

	dto := FromModel(group)
	dto.Participants = participantsFromModels([]models.Participant{*creator})
	dto.TimeSlots = TimeSlotsFromModels(slots)
	dto.Invitees = inviteesFromModels(invitees)
	return &CreatedGroup{GroupDTO: *dto, JoinTokens: tokens}, nil
}

func (s *service) validateCreate(identity auth.Identity, input CreateGroupInput) (CreateGroupInput, error) {
	problems := map[string]string{}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		problems["name"] = "required"
	}
	input.Address = input.Address.Normalize()
	for _, part := range input.Address.MissingParts() {
		problems["address."+part] = "required"
	}
	if input.MaxParticipants < MinParticipants || input.MaxParticipants > MaxParticipants {
		problems["max_participants"] = fmt.Sprintf("must be between %d and %d", MinParticipants, MaxParticipants)
	}
	if len(input.TimeSlotStarts) > MaxTimeSlots {
		problems["time_slots"] = fmt.Sprintf("at most %d time slots", MaxTimeSlots)
	}
	seenStarts := map[string]struct{}{}
	starts := make([]time.Time, 0, len(input.TimeSlotStarts))
	for _, start := range input.TimeSlotStarts {
		day := truncateDate(start)
		key := day.Format(DateLayout)
		if _, dup := seenStarts[key]; dup {
			problems["time_slots"] = "duplicate start date " + key
			continue
		}
		seenStarts[key] = struct{}{}
		starts = append(starts, day)
	}
	input.TimeSlotStarts = starts

	if input.MaxParticipants >= MinParticipants && len(input.Invitees) > input.MaxParticipants-1 {
		problems["invitees"] = fmt.Sprintf("at most %d invitees", input.MaxParticipants-1)
	}
	creatorEmail := identity.NormalizedEmail()
	seenEmails := map[string]struct{}{}
	for i := range input.Invitees {
		key := fmt.Sprintf("invitees[%d]", i)
		in := &input.Invitees[i]
		in.Name = strings.TrimSpace(in.Name)
		in.Email = auth.NormalizeEmail(in.Email)
		if in.Phone != nil {
			trimmed := strings.TrimSpace(*in.Phone)
			if trimmed == "" {
				in.Phone = nil
			} else {
				in.Phone = &trimmed
			}
		}
		switch {
		case in.Name == "":
			problems[key+".name"] = "required"
		case in.Email == "":
			problems[key+".email"] = "required"
		case s.validate.Var(in.Email, "email") != nil:
			problems[key+".email"] = "invalid email"
		case in.Email == creatorEmail:
			problems[key+".email"] = "cannot invite yourself"
		}
		if _, dup := seenEmails[in.Email]; dup && in.Email != "" {
			problems[key+".email"] = "duplicate invitee email"
		}
		seenEmails[in.Email] = struct{}{}
	}
	input.VendorName = trimOptional(input.VendorName)
	input.VendorWebsite = trimOptional(input.VendorWebsite)
	if input.VendorWebsite != nil && s.validate.Var(*input.VendorWebsite, "url") != nil {
		problems["vendor_website"] = "invalid url"
	}

	if len(problems) > 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid group").WithDetails(problems)
	}
	return input, nil
}

func (s *service) Get(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*GroupDTO, error) {
	group, err := s.loadGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, nil, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
	}
	if !containsUser(participants, identity.ID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "not a participant of this group")
	}
	slots, err := s.repo.ListTimeSlots(ctx, nil, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
	}

	dto := FromModel(group)
	dto.Participants = participantsFromModels(participants)
	dto.TimeSlots = TimeSlotsFromModels(slots)
	if group.CreatorUserID == identity.ID {
		invitees, err := s.repo.ListInvitees(ctx, nil, groupID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitees")
		}
		dto.Invitees = inviteesFromModels(invitees)
	}
	return dto, nil
}

func (s *service) ListMine(ctx context.Context, identity auth.Identity) ([]SummaryDTO, error) {
	rows, err := s.repo.ListForUser(ctx, identity.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list groups")
	}
	out := make([]SummaryDTO, 0, len(rows))
	for _, g := range rows {
		out = append(out, SummaryDTO{
			ID:                  g.ID,
			Name:                g.Name,
			Status:              g.Status,
			IsCreator:           g.CreatorUserID == identity.ID,
			MaxParticipants:     g.MaxParticipants,
			CurrentParticipants: g.CurrentParticipants,
			CreatedAt:           g.CreatedAt,
		})
	}
	return out, nil
}

// Book issues the spending instrument and moves full -> booked. The gateway
// call happens before the status write; a retry after a failed status write
// finds the instrument already issued and proceeds.
func (s *service) Book(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*GroupDTO, error) {
	group, err := s.loadGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(group, identity); err != nil {
		return nil, err
	}
	if err := CheckTransition(group.Status, enums.GroupStatusBooked); err != nil {
		return nil, err
	}
	if group.FinalTimeSlotID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "final time slot must be chosen before booking")
	}
	batch, err := s.repo.ActiveBatch(ctx, nil, groupID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment requests must be generated before booking")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment batch")
	}

	disbursable := batch.TotalCostCents - batch.ServiceFeeCents
	if err := s.issuer.Issue(ctx, group, disbursable); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInstrumentAlreadyIssued) {
		return nil, err
	}

	if err := s.transition(ctx, groupID, identity, enums.GroupStatusBooked, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, groupID, identity)
}

func (s *service) ConfirmService(ctx context.Context, groupID uuid.UUID, identity auth.Identity, input ConfirmServiceInput) (*GroupDTO, error) {
	ref := strings.TrimSpace(input.VendorReference)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor reference required").
			WithDetails(map[string]string{"vendor_reference": "required"})
	}
	extra := map[string]any{"vendor_reference": ref}
	if name := trimOptional(input.VendorName); name != nil {
		extra["vendor_name"] = *name
	}
	if site := trimOptional(input.VendorWebsite); site != nil {
		if s.validate.Var(*site, "url") != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid vendor website").
				WithDetails(map[string]string{"vendor_website": "invalid url"})
		}
		extra["vendor_website"] = *site
	}
	if err := s.transition(ctx, groupID, identity, enums.GroupStatusServiceConfirmed, extra); err != nil {
		return nil, err
	}
	return s.Get(ctx, groupID, identity)
}

func (s *service) MarkDisbursed(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*GroupDTO, error) {
	err := s.transitionWith(ctx, groupID, identity, enums.GroupStatusDisbursed, nil, func(tx *gorm.DB) error {
		pending, err := s.repo.CountRequestsByStatus(ctx, tx, groupID, enums.PaymentRequestPending)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending requests")
		}
		if pending > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment requests are still outstanding").
				WithDetails(map[string]int64{"pending": pending})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, groupID, identity)
}

func (s *service) transition(ctx context.Context, groupID uuid.UUID, identity auth.Identity, to enums.GroupStatus, extra map[string]any) error {
	return s.transitionWith(ctx, groupID, identity, to, extra, nil)
}

// transitionWith locks the group, validates the edge and the creator, runs the
// optional precondition and writes the new status with its outbox event.
func (s *service) transitionWith(ctx context.Context, groupID uuid.UUID, identity auth.Identity, to enums.GroupStatus, extra map[string]any, precondition func(tx *gorm.DB) error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group, err := s.loadGroupForUpdate(tx, groupID)
		if err != nil {
			return err
		}
		if err := requireCreator(group, identity); err != nil {
			return err
		}
		if err := CheckTransition(group.Status, to); err != nil {
			return err
		}
		if precondition != nil {
			if err := precondition(tx); err != nil {
				return err
			}
		}
		ok, err := s.repo.UpdateStatusTx(tx, groupID, group.Status, to, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "group status changed concurrently")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventGroupStatusChanged,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupID,
			Actor:         &outbox.ActorRef{UserID: identity.ID, Email: identity.NormalizedEmail()},
			Data: payloads.GroupStatusChangedEvent{
				GroupID:   groupID,
				From:      group.Status,
				To:        to,
				ChangedBy: identity.ID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status event")
		}
		s.logInfo(ctx, groupID, fmt.Sprintf("group status %s -> %s", group.Status, to))
		return nil
	})
}

// Delete removes a group that has no money or instrument attached yet.
func (s *service) Delete(ctx context.Context, groupID uuid.UUID, identity auth.Identity) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group, err := s.loadGroupForUpdate(tx, groupID)
		if err != nil {
			return err
		}
		if err := requireCreator(group, identity); err != nil {
			return err
		}
		if group.Status != enums.GroupStatusForming && group.Status != enums.GroupStatusFull {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "group can only be deleted while forming or full").
				WithDetails(map[string]any{"status": group.Status})
		}
		paid, err := s.repo.CountRequestsByStatus(ctx, tx, groupID, enums.PaymentRequestPaid)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count paid requests")
		}
		if paid > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "group has paid payment requests")
		}
		hasInstrument, err := s.repo.HasInstrument(ctx, tx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check instrument")
		}
		if hasInstrument {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "group has an issued instrument")
		}
		if err := s.repo.DeleteCascadeTx(tx, groupID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete group")
		}
		s.logInfo(ctx, groupID, "group deleted")
		return nil
	})
}

func (s *service) loadGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, tx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return group, nil
}

func (s *service) loadGroupForUpdate(tx *gorm.DB, groupID uuid.UUID) (*models.Group, error) {
	group, err := s.repo.LockByIDTx(tx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock group")
	}
	return group, nil
}

func (s *service) logInfo(ctx context.Context, groupID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithGroupID(ctx, groupID.String()), msg)
}

// RequireCreator fails with NOT_AUTHORIZED unless identity created the group.
func RequireCreator(group *models.Group, identity auth.Identity) error {
	return requireCreator(group, identity)
}

func requireCreator(group *models.Group, identity auth.Identity) error {
	if group == nil || identity.ID == uuid.Nil || group.CreatorUserID != identity.ID {
		return pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the group creator can do this")
	}
	return nil
}

func containsUser(participants []models.Participant, userID uuid.UUID) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func displayName(identity auth.Identity) string {
	if name := strings.TrimSpace(identity.DisplayName); name != "" {
		return name
	}
	return identity.NormalizedEmail()
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

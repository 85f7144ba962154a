package timeslots

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result is the analysis of a group together with its final choice.
type Result struct {
	GroupID      uuid.UUID      `json:"group_id"`
	Participants int            `json:"participants"`
	Slots        []SlotAnalysis `json:"slots"`
	// UniversalSlotIDs lists the slots every participant can make.
	UniversalSlotIDs []uuid.UUID `json:"universal_slot_ids"`
	FinalTimeSlotID  *uuid.UUID  `json:"final_time_slot_id,omitempty"`
}

// Service reads consensus and records the creator's final choice.
type Service interface {
	Analysis(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*Result, error)
	ChooseFinal(ctx context.Context, groupID uuid.UUID, identity auth.Identity, slotID uuid.UUID) (*Result, error)
	// AnalysisTx computes the result inside an open transaction.
	AnalysisTx(ctx context.Context, tx *gorm.DB, group *models.Group) (*Result, error)
}

type service struct {
	tx   txRunner
	repo *groups.Repository
	logg *logger.Logger
}

// NewService builds the consensus service over the group repository.
func NewService(tx txRunner, repository *groups.Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("group repository required")
	}
	return &service{tx: tx, repo: repository, logg: logg}, nil
}

func (s *service) Analysis(ctx context.Context, groupID uuid.UUID, identity auth.Identity) (*Result, error) {
	group, err := s.loadGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindParticipant(ctx, nil, groupID, identity.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "not a participant of this group")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
	}
	return s.AnalysisTx(ctx, nil, group)
}

func (s *service) AnalysisTx(ctx context.Context, tx *gorm.DB, group *models.Group) (*Result, error) {
	slots, err := s.repo.ListTimeSlots(ctx, tx, group.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
	}
	participants, err := s.repo.ListParticipants(ctx, tx, group.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participants")
	}
	selections, err := s.repo.ListSelections(ctx, tx, group.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list selections")
	}
	analysis := Analyze(slots, participants, selections)
	universal := []uuid.UUID{}
	for _, a := range Universal(analysis) {
		universal = append(universal, a.ID)
	}
	return &Result{
		GroupID:          group.ID,
		Participants:     len(participants),
		Slots:            analysis,
		UniversalSlotIDs: universal,
		FinalTimeSlotID:  group.FinalTimeSlotID,
	}, nil
}

// ChooseFinal records the creator's pick. The choice is write-once.
func (s *service) ChooseFinal(ctx context.Context, groupID uuid.UUID, identity auth.Identity, slotID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group, err := s.repo.LockByIDTx(tx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock group")
		}
		if err := groups.RequireCreator(group, identity); err != nil {
			return err
		}
		if group.FinalTimeSlotID != nil {
			if *group.FinalTimeSlotID == slotID {
				result, err = s.AnalysisTx(ctx, tx, group)
				return err
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "final time slot already chosen").
				WithDetails(map[string]string{"final_time_slot_id": group.FinalTimeSlotID.String()})
		}
		if group.Status != enums.GroupStatusFull {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "final time slot can only be chosen once the group is full").
				WithDetails(map[string]any{"status": group.Status})
		}

		slots, err := s.repo.ListTimeSlots(ctx, tx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time slots")
		}
		if !containsSlot(slots, slotID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "time slot does not belong to this group").
				WithDetails(map[string]string{"time_slot_id": slotID.String()})
		}
		ok, err := s.repo.SetFinalTimeSlotTx(tx, groupID, slotID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set final time slot")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "final time slot already chosen")
		}
		group.FinalTimeSlotID = &slotID
		result, err = s.AnalysisTx(ctx, tx, group)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithGroupID(ctx, groupID.String()), "final time slot chosen")
	}
	return result, nil
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

func containsSlot(slots []models.TimeSlot, id uuid.UUID) bool {
	for _, s := range slots {
		if s.ID == id {
			return true
		}
	}
	return false
}

package groups

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// Repository persists groups and their directly owned children.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to group operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// CreateTx inserts the group row.
func (r *Repository) CreateTx(tx *gorm.DB, group *models.Group) error {
	if group == nil {
		return fmt.Errorf("group is required")
	}
	return tx.Create(group).Error
}

// CreateParticipantTx inserts one participant.
func (r *Repository) CreateParticipantTx(tx *gorm.DB, participant *models.Participant) error {
	return tx.Create(participant).Error
}

// CreateTimeSlotsTx inserts the candidate windows.
func (r *Repository) CreateTimeSlotsTx(tx *gorm.DB, slots []models.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return tx.Create(&slots).Error
}

// CreateInviteesTx inserts pending invitations.
func (r *Repository) CreateInviteesTx(tx *gorm.DB, invitees []models.Invitee) error {
	if len(invitees) == 0 {
		return nil
	}
	return tx.Create(&invitees).Error
}

// FindByID loads a group by id.
func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := r.Conn(ctx, tx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// LockByIDTx loads the group row under a row lock.
func (r *Repository) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*models.Group, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var group models.Group
	if err := repo.ForUpdate(tx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// ListForUser returns the groups the user participates in, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := r.DB(ctx).
		Joins("JOIN participants ON participants.group_id = groups.id").
		Where("participants.user_id = ?", userID).
		Order("groups.created_at DESC").
		Find(&groups).Error
	return groups, err
}

// ListParticipants returns members in join order.
func (r *Repository) ListParticipants(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]models.Participant, error) {
	var rows []models.Participant
	err := r.Conn(ctx, tx).Where("group_id = ?", groupID).Order("position ASC").Find(&rows).Error
	return rows, err
}

// FindParticipant loads the caller's participant row.
func (r *Repository) FindParticipant(ctx context.Context, tx *gorm.DB, groupID, userID uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	if err := r.Conn(ctx, tx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateParticipantCard stores the chargeable method for a participant.
func (r *Repository) UpdateParticipantCard(ctx context.Context, participantID uuid.UUID, customerID, cardID string) error {
	return r.DB(ctx).Model(&models.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]any{
			"square_customer_id": customerID,
			"square_card_id":     cardID,
		}).Error
}

// ListTimeSlots returns the group's slots in creation order.
func (r *Repository) ListTimeSlots(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]models.TimeSlot, error) {
	var rows []models.TimeSlot
	err := r.Conn(ctx, tx).Where("group_id = ?", groupID).Order("position ASC").Find(&rows).Error
	return rows, err
}

// ListInvitees returns every invitation of the group.
func (r *Repository) ListInvitees(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]models.Invitee, error) {
	var rows []models.Invitee
	err := r.Conn(ctx, tx).Where("group_id = ?", groupID).Order("created_at ASC, email ASC").Find(&rows).Error
	return rows, err
}

// ListSelections returns every slot selection of the group.
func (r *Repository) ListSelections(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) ([]models.TimeSlotSelection, error) {
	var rows []models.TimeSlotSelection
	err := r.Conn(ctx, tx).Where("group_id = ?", groupID).Find(&rows).Error
	return rows, err
}

// ReplaceSelectionsTx swaps the participant's selection set.
func (r *Repository) ReplaceSelectionsTx(tx *gorm.DB, groupID, participantID uuid.UUID, slotIDs []uuid.UUID) error {
	if err := tx.Where("participant_id = ?", participantID).Delete(&models.TimeSlotSelection{}).Error; err != nil {
		return err
	}
	if len(slotIDs) == 0 {
		return nil
	}
	rows := make([]models.TimeSlotSelection, 0, len(slotIDs))
	for _, id := range slotIDs {
		rows = append(rows, models.TimeSlotSelection{
			ParticipantID: participantID,
			TimeSlotID:    id,
			GroupID:       groupID,
		})
	}
	return tx.Create(&rows).Error
}

// UpdateStatusTx moves the group from one status to another. It reports false
// when the row was no longer in the expected status.
func (r *Repository) UpdateStatusTx(tx *gorm.DB, id uuid.UUID, from, to enums.GroupStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Group{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetFinalTimeSlotTx records the chosen slot if none is set yet.
func (r *Repository) SetFinalTimeSlotTx(tx *gorm.DB, id, slotID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Group{}).
		Where("id = ? AND final_time_slot_id IS NULL", id).
		Updates(map[string]any{"final_time_slot_id": slotID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ActiveBatch returns the group's non-superseded payment request batch.
func (r *Repository) ActiveBatch(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (*models.PaymentRequestBatch, error) {
	var batch models.PaymentRequestBatch
	if err := r.Conn(ctx, tx).
		Where("group_id = ? AND superseded_at IS NULL", groupID).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// CountRequestsByStatus counts the group's requests in status across all of
// its batches. Superseding retires pending requests and a batch with paid
// requests is never superseded, so only the live batch holds pending or paid.
func (r *Repository) CountRequestsByStatus(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, status enums.PaymentRequestStatus) (int64, error) {
	var count int64
	err := r.Conn(ctx, tx).Model(&models.PaymentRequest{}).
		Where("group_id = ? AND status = ?", groupID, status).
		Count(&count).Error
	return count, err
}

// HasInstrument reports whether a disbursement instrument exists for the group.
func (r *Repository) HasInstrument(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (bool, error) {
	var count int64
	err := r.Conn(ctx, tx).Model(&models.DisbursementInstrument{}).Where("group_id = ?", groupID).Count(&count).Error
	return count > 0, err
}

// DeleteCascadeTx removes the group and everything it owns.
func (r *Repository) DeleteCascadeTx(tx *gorm.DB, groupID uuid.UUID) error {
	steps := []struct {
		model any
		where string
	}{
		{&models.TimeSlotSelection{}, "group_id = ?"},
		{&models.PaymentRequest{}, "group_id = ?"},
		{&models.PaymentRequestBatch{}, "group_id = ?"},
		{&models.Invitee{}, "group_id = ?"},
		{&models.Participant{}, "group_id = ?"},
	}
	for _, step := range steps {
		if err := tx.Where(step.where, groupID).Delete(step.model).Error; err != nil {
			return err
		}
	}
	if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Update("final_time_slot_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&models.TimeSlot{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", groupID).Delete(&models.Group{}).Error
}

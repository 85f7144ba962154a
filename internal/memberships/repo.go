package memberships

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// Repository exposes invitation and membership persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindOpenInvitee resolves an unconsumed invitation by token digest.
func (r *Repository) FindOpenInvitee(ctx context.Context, tx *gorm.DB, digest string) (*models.Invitee, error) {
	var invitee models.Invitee
	err := r.Conn(ctx, tx).
		Where("join_token_digest = ? AND consumed_at IS NULL", digest).
		First(&invitee).Error
	if err != nil {
		return nil, err
	}
	return &invitee, nil
}

// ConsumeInviteeTx marks the invitation used. It reports false when another
// join consumed it first.
func (r *Repository) ConsumeInviteeTx(tx *gorm.DB, inviteeID uuid.UUID, at time.Time) (bool, error) {
	res := tx.Model(&models.Invitee{}).
		Where("id = ? AND consumed_at IS NULL", inviteeID).
		Update("consumed_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementParticipantsTx claims a seat. It reports false when the group is no
// longer forming or has no seat left.
func (r *Repository) IncrementParticipantsTx(tx *gorm.DB, groupID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Group{}).
		Where("id = ? AND status = ? AND current_participants < max_participants", groupID, enums.GroupStatusForming).
		Updates(map[string]any{
			"current_participants": gorm.Expr("current_participants + 1"),
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkInvitationSent flags the invitation email as delivered.
func (r *Repository) MarkInvitationSent(ctx context.Context, inviteeID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Invitee{}).
		Where("id = ?", inviteeID).
		Update("invitation_sent", true).Error
}

package cardaccess

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
)

// AuditRepository appends gate transitions to card_access_audit_events.
type AuditRepository struct {
	repo.Base
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{Base: repo.NewBase(db)}
}

// Append writes one audit row. Rows are never updated.
func (r *AuditRepository) Append(ctx context.Context, event *models.CardAccessAuditEvent) error {
	return r.Conn(ctx, nil).Create(event).Error
}

// List returns a group's audit trail oldest first.
func (r *AuditRepository) List(ctx context.Context, groupID string) ([]models.CardAccessAuditEvent, error) {
	var rows []models.CardAccessAuditEvent
	err := r.Conn(ctx, nil).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

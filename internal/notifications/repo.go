package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
)

// Repository records email deliveries.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) RecordDelivery(ctx context.Context, delivery *models.NotificationDelivery) error {
	return r.DB(ctx).Create(delivery).Error
}

// ListDeliveries returns the attempts made for one event, oldest first.
func (r *Repository) ListDeliveries(ctx context.Context, eventID uuid.UUID) ([]models.NotificationDelivery, error) {
	var rows []models.NotificationDelivery
	err := r.DB(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// DeleteDeliveriesBefore drops delivery records created before cutoff.
func (r *Repository) DeleteDeliveriesBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := r.Conn(ctx, tx).Where("created_at < ?", cutoff).Delete(&models.NotificationDelivery{})
	return res.RowsAffected, res.Error
}

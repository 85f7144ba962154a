package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// NotificationDelivery records each outbound email attempt.
type NotificationDelivery struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	EventID        uuid.UUID                `gorm:"column:event_id;type:uuid;not null;index"`
	Kind           enums.NotificationKind   `gorm:"column:kind;type:notification_kind;not null"`
	RecipientEmail string                   `gorm:"column:recipient_email;not null"`
	Status         enums.NotificationStatus `gorm:"column:status;type:notification_status;not null"`
	ProviderStatus int                      `gorm:"column:provider_status;not null"`
	Error          *string                  `gorm:"column:error"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (n *NotificationDelivery) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

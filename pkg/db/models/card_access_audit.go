package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// CardAccessAuditEvent is an append-only record of one security gate transition.
type CardAccessAuditEvent struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	GroupID        uuid.UUID             `gorm:"column:group_id;type:uuid;not null;index"`
	ActorUserID    uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	Event          enums.CardAccessEvent `gorm:"column:event;type:card_access_event;not null"`
	Reason         *string               `gorm:"column:reason"`
	FailedAttempts int                   `gorm:"column:failed_attempts;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *CardAccessAuditEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
)

// DLQRepository stores outbox rows that will not be retried.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes entry inside tx, clipping the error text to the same
// limit as outbox_events.last_error. The reason must be a known value.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !entry.ErrorReason.IsValid() {
		return errors.New("invalid dlq reason " + string(entry.ErrorReason))
	}
	if entry.ErrorMessage != nil {
		entry.ErrorMessage = clip(*entry.ErrorMessage)
	}
	return tx.Create(&entry).Error
}

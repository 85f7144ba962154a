package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// DisbursementInstrument is the virtual card released to a group's creator.
type DisbursementInstrument struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	GroupID             uuid.UUID              `gorm:"column:group_id;type:uuid;not null;uniqueIndex"`
	OwnerUserID         uuid.UUID              `gorm:"column:owner_user_id;type:uuid;not null"`
	GatewayInstrumentID string                 `gorm:"column:gateway_instrument_id;not null;uniqueIndex"`
	SpendingLimitCents  int64                  `gorm:"column:spending_limit_cents;not null"`
	Status              enums.InstrumentStatus `gorm:"column:status;type:instrument_status;not null"`
	VendorName          *string                `gorm:"column:vendor_name"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DisbursementInstrument) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// InstrumentTransaction is an append-only spend record.
type InstrumentTransaction struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	InstrumentID         uuid.UUID               `gorm:"column:instrument_id;type:uuid;not null;index"`
	GatewayTransactionID string                  `gorm:"column:gateway_transaction_id;not null;uniqueIndex"`
	AmountCents          int64                   `gorm:"column:amount_cents;not null"`
	MerchantName         string                  `gorm:"column:merchant_name;not null"`
	Status               enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null"`
	AuthorizationCode    *string                 `gorm:"column:authorization_code"`
	OccurredAt           time.Time               `gorm:"column:occurred_at;not null"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (t *InstrumentTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

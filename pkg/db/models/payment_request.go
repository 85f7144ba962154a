package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// PaymentRequestBatch groups the requests produced by one cost finalization.
// At most one batch per group has a nil SupersededAt.
type PaymentRequestBatch struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	GroupID         uuid.UUID               `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_payment_request_batches_active,where:superseded_at IS NULL"`
	TotalCostCents  int64                   `gorm:"column:total_cost_cents;not null"`
	ServiceFeeCents int64                   `gorm:"column:service_fee_cents;not null"`
	Method          enums.PaymentMethodType `gorm:"column:method;type:payment_method_type;not null"`
	MethodDetails   json.RawMessage         `gorm:"column:method_details;type:jsonb;not null"`
	Description     string                  `gorm:"column:description;not null"`
	CreatedBy       uuid.UUID               `gorm:"column:created_by;type:uuid;not null"`
	SupersededAt    *time.Time              `gorm:"column:superseded_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (b *PaymentRequestBatch) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// PaymentRequest is one member's share of a batch.
type PaymentRequest struct {
	ID                 uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	BatchID            uuid.UUID                  `gorm:"column:batch_id;type:uuid;not null;index"`
	GroupID            uuid.UUID                  `gorm:"column:group_id;type:uuid;not null;index"`
	PayerParticipantID uuid.UUID                  `gorm:"column:payer_participant_id;type:uuid;not null"`
	PayerUserID        uuid.UUID                  `gorm:"column:payer_user_id;type:uuid;not null"`
	PayerEmail         string                     `gorm:"column:payer_email;not null"`
	PayerName          string                     `gorm:"column:payer_name;not null"`
	CreatorUserID      uuid.UUID                  `gorm:"column:creator_user_id;type:uuid;not null"`
	AmountCents        int64                      `gorm:"column:amount_cents;not null"`
	Description        string                     `gorm:"column:description;not null"`
	Method             enums.PaymentMethodType    `gorm:"column:method;type:payment_method_type;not null"`
	MethodDetails      json.RawMessage            `gorm:"column:method_details;type:jsonb;not null"`
	Status             enums.PaymentRequestStatus `gorm:"column:status;type:payment_request_status;not null"`
	GatewayPaymentID   *string                    `gorm:"column:gateway_payment_id"`
	PaidAt             *time.Time                 `gorm:"column:paid_at"`
	CreatedAt          time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (r *PaymentRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

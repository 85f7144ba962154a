package disbursement

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/internal/funding"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// InstrumentDTO is the creator's view of the card. It never carries card data.
type InstrumentDTO struct {
	ID                 uuid.UUID              `json:"id"`
	GroupID            uuid.UUID              `json:"group_id"`
	Status             enums.InstrumentStatus `json:"status"`
	VendorName         *string                `json:"vendor_name,omitempty"`
	SpendingLimitCents int64                  `json:"spending_limit_cents"`
	SpendingLimit      string                 `json:"spending_limit"`
	SpentCents         int64                  `json:"spent_cents"`
	Spent              string                 `json:"spent"`
	RemainingCents     int64                  `json:"remaining_cents"`
	Remaining          string                 `json:"remaining"`
	CreatedAt          time.Time              `json:"created_at"`
}

// TransactionDTO is one logged authorization.
type TransactionDTO struct {
	ID                   uuid.UUID               `json:"id"`
	GatewayTransactionID string                  `json:"gateway_transaction_id"`
	AmountCents          int64                   `json:"amount_cents"`
	Amount               string                  `json:"amount"`
	MerchantName         string                  `json:"merchant_name"`
	Status               enums.TransactionStatus `json:"status"`
	OccurredAt           time.Time               `json:"occurred_at"`
}

// RevealDTO lets a gateway-hosted element render the card once.
type RevealDTO struct {
	CardID             string    `json:"card_id"`
	EphemeralKeySecret string    `json:"ephemeral_key_secret"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func instrumentFromModel(m *models.DisbursementInstrument, spent int64) InstrumentDTO {
	remaining := max(m.SpendingLimitCents-spent, 0)
	return InstrumentDTO{
		ID:                 m.ID,
		GroupID:            m.GroupID,
		Status:             m.Status,
		VendorName:         m.VendorName,
		SpendingLimitCents: m.SpendingLimitCents,
		SpendingLimit:      funding.FormatCents(m.SpendingLimitCents),
		SpentCents:         spent,
		Spent:              funding.FormatCents(spent),
		RemainingCents:     remaining,
		Remaining:          funding.FormatCents(remaining),
		CreatedAt:          m.CreatedAt,
	}
}

func transactionFromModel(m models.InstrumentTransaction) TransactionDTO {
	return TransactionDTO{
		ID:                   m.ID,
		GatewayTransactionID: m.GatewayTransactionID,
		AmountCents:          m.AmountCents,
		Amount:               funding.FormatCents(m.AmountCents),
		MerchantName:         m.MerchantName,
		Status:               m.Status,
		OccurredAt:           m.OccurredAt,
	}
}

package funding

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// ShareDTO is one participant's slice of the total.
type ShareDTO struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	UserID        uuid.UUID `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	Position      int       `json:"position"`
	IsCreator     bool      `json:"is_creator"`
	AmountCents   int64     `json:"amount_cents"`
	Amount        string    `json:"amount"`
}

// BreakdownDTO is the cost split for a total.
type BreakdownDTO struct {
	TotalCostCents      int64      `json:"total_cost_cents"`
	TotalCost           string     `json:"total_cost"`
	Participants        int        `json:"participants"`
	IndividualCostCents int64      `json:"individual_cost_cents"`
	IndividualCost      string     `json:"individual_cost"`
	ServiceFeeRate      string     `json:"service_fee_rate"`
	ServiceFeeCents     int64      `json:"service_fee_cents"`
	ServiceFee          string     `json:"service_fee"`
	DisbursableCents    int64      `json:"disbursable_cents"`
	Disbursable         string     `json:"disbursable"`
	OwedCents           int64      `json:"owed_cents"`
	Owed                string     `json:"owed"`
	Shares              []ShareDTO `json:"shares"`
}

// RequestDTO is one payer's request.
type RequestDTO struct {
	ID                 uuid.UUID                  `json:"id"`
	BatchID            uuid.UUID                  `json:"batch_id"`
	GroupID            uuid.UUID                  `json:"group_id"`
	PayerParticipantID uuid.UUID                  `json:"payer_participant_id"`
	PayerUserID        uuid.UUID                  `json:"payer_user_id"`
	PayerName          string                     `json:"payer_name"`
	PayerEmail         string                     `json:"payer_email"`
	AmountCents        int64                      `json:"amount_cents"`
	Amount             string                     `json:"amount"`
	Description        string                     `json:"description"`
	Method             json.RawMessage            `json:"method"`
	Status             enums.PaymentRequestStatus `json:"status"`
	PaidAt             *time.Time                 `json:"paid_at,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
}

// BatchDTO is a generated set of requests.
type BatchDTO struct {
	ID               uuid.UUID       `json:"id"`
	GroupID          uuid.UUID       `json:"group_id"`
	TotalCostCents   int64           `json:"total_cost_cents"`
	ServiceFeeCents  int64           `json:"service_fee_cents"`
	DisbursableCents int64           `json:"disbursable_cents"`
	Description      string          `json:"description"`
	Method           json.RawMessage `json:"method"`
	CreatedAt        time.Time       `json:"created_at"`
	Requests         []RequestDTO    `json:"requests"`
	// Reused is true when an identical generation returned the live batch.
	Reused bool `json:"reused"`
}

// SummaryDTO is the funding view of a group.
type SummaryDTO struct {
	GroupID          uuid.UUID     `json:"group_id"`
	Currency         string        `json:"currency"`
	Breakdown        *BreakdownDTO `json:"breakdown,omitempty"`
	Batch            *BatchDTO     `json:"batch,omitempty"`
	CollectedCents   int64         `json:"collected_cents"`
	Collected        string        `json:"collected"`
	OutstandingCents int64         `json:"outstanding_cents"`
	Outstanding      string        `json:"outstanding"`
}

// Breakdown splits total across participants in join order.
func Breakdown(participants []models.Participant, totalCents int64, rate decimal.Decimal) BreakdownDTO {
	n := len(participants)
	fee := ServiceFee(totalCents, rate)
	shares := Split(totalCents, n)
	out := BreakdownDTO{
		TotalCostCents:      totalCents,
		TotalCost:           FormatCents(totalCents),
		Participants:        n,
		IndividualCostCents: RoundedShare(totalCents, n),
		ServiceFeeRate:      rate.String(),
		ServiceFeeCents:     fee,
		ServiceFee:          FormatCents(fee),
		DisbursableCents:    totalCents - fee,
		Disbursable:         FormatCents(totalCents - fee),
		Shares:              make([]ShareDTO, 0, n),
	}
	out.IndividualCost = FormatCents(out.IndividualCostCents)
	for i, p := range participants {
		out.Shares = append(out.Shares, ShareDTO{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			Position:      p.Position,
			IsCreator:     p.IsCreator,
			AmountCents:   shares[i],
			Amount:        FormatCents(shares[i]),
		})
		if !p.IsCreator {
			out.OwedCents += shares[i]
		}
	}
	out.Owed = FormatCents(out.OwedCents)
	return out
}

func requestFromModel(m models.PaymentRequest) RequestDTO {
	return RequestDTO{
		ID:                 m.ID,
		BatchID:            m.BatchID,
		GroupID:            m.GroupID,
		PayerParticipantID: m.PayerParticipantID,
		PayerUserID:        m.PayerUserID,
		PayerName:          m.PayerName,
		PayerEmail:         m.PayerEmail,
		AmountCents:        m.AmountCents,
		Amount:             FormatCents(m.AmountCents),
		Description:        m.Description,
		Method:             wireMethod(m.Method, m.MethodDetails),
		Status:             m.Status,
		PaidAt:             m.PaidAt,
		CreatedAt:          m.CreatedAt,
	}
}

func batchFromModel(m *models.PaymentRequestBatch, requests []models.PaymentRequest) *BatchDTO {
	out := &BatchDTO{
		ID:               m.ID,
		GroupID:          m.GroupID,
		TotalCostCents:   m.TotalCostCents,
		ServiceFeeCents:  m.ServiceFeeCents,
		DisbursableCents: m.TotalCostCents - m.ServiceFeeCents,
		Description:      m.Description,
		Method:           wireMethod(m.Method, m.MethodDetails),
		CreatedAt:        m.CreatedAt,
		Requests:         make([]RequestDTO, 0, len(requests)),
	}
	for _, r := range requests {
		out.Requests = append(out.Requests, requestFromModel(r))
	}
	return out
}

func wireMethod(tag enums.PaymentMethodType, details json.RawMessage) json.RawMessage {
	method, err := methodFromStorage(tag, details)
	if err != nil {
		return json.RawMessage(`{"type":"` + string(tag) + `"}`)
	}
	raw, err := MarshalMethod(method)
	if err != nil {
		return json.RawMessage(`{"type":"` + string(tag) + `"}`)
	}
	return raw
}

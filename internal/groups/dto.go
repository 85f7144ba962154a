package groups

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/types"
)

// DateLayout is the wire format of time slot dates.
const DateLayout = "2006-01-02"

// SlotLengthDays is the inclusive length of a rental window minus one.
const SlotLengthDays = 6

// GroupDTO is the participant-facing snapshot of a group.
type GroupDTO struct {
	ID                  uuid.UUID         `json:"id"`
	Name                string            `json:"name"`
	Address             types.Address     `json:"address"`
	CreatorUserID       uuid.UUID         `json:"creator_user_id"`
	CreatorName         string            `json:"creator_name"`
	MaxParticipants     int               `json:"max_participants"`
	CurrentParticipants int               `json:"current_participants"`
	Status              enums.GroupStatus `json:"status"`
	FinalTimeSlotID     *uuid.UUID        `json:"final_time_slot_id,omitempty"`
	TotalCostCents      *int64            `json:"total_cost_cents,omitempty"`
	VendorName          *string           `json:"vendor_name,omitempty"`
	VendorWebsite       *string           `json:"vendor_website,omitempty"`
	VendorReference     *string           `json:"vendor_reference,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	Participants        []ParticipantDTO  `json:"participants,omitempty"`
	TimeSlots           []TimeSlotDTO     `json:"time_slots"`
	Invitees            []InviteeDTO      `json:"invitees,omitempty"`
}

// ParticipantDTO is one member in join order.
type ParticipantDTO struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	IsCreator   bool      `json:"is_creator"`
	Position    int       `json:"position"`
	HasCard     bool      `json:"has_card"`
	JoinedAt    time.Time `json:"joined_at"`
}

// TimeSlotDTO is a candidate 7-day window.
type TimeSlotDTO struct {
	ID        uuid.UUID `json:"id"`
	Position  int       `json:"position"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

// InviteeDTO is a pending or consumed invitation, never with its token.
type InviteeDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          *string   `json:"phone,omitempty"`
	InvitationSent bool      `json:"invitation_sent"`
	Joined         bool      `json:"joined"`
}

// SummaryDTO is the list-view projection of a group.
type SummaryDTO struct {
	ID                  uuid.UUID         `json:"id"`
	Name                string            `json:"name"`
	Status              enums.GroupStatus `json:"status"`
	IsCreator           bool              `json:"is_creator"`
	MaxParticipants     int               `json:"max_participants"`
	CurrentParticipants int               `json:"current_participants"`
	CreatedAt           time.Time         `json:"created_at"`
}

// CreatedGroup is returned to the creator right after creation. JoinTokens maps
// invitee email to the raw join token so the creator can share links directly.
type CreatedGroup struct {
	GroupDTO
	JoinTokens map[string]string `json:"join_tokens,omitempty"`
}

// FromModel maps the group row alone; children are attached by the caller.
func FromModel(m *models.Group) *GroupDTO {
	if m == nil {
		return nil
	}
	return &GroupDTO{
		ID:                  m.ID,
		Name:                m.Name,
		Address:             m.Address,
		CreatorUserID:       m.CreatorUserID,
		CreatorName:         m.CreatorName,
		MaxParticipants:     m.MaxParticipants,
		CurrentParticipants: m.CurrentParticipants,
		Status:              m.Status,
		FinalTimeSlotID:     m.FinalTimeSlotID,
		TotalCostCents:      m.TotalCostCents,
		VendorName:          m.VendorName,
		VendorWebsite:       m.VendorWebsite,
		VendorReference:     m.VendorReference,
		CreatedAt:           m.CreatedAt,
		TimeSlots:           []TimeSlotDTO{},
	}
}

func participantsFromModels(rows []models.Participant) []ParticipantDTO {
	out := make([]ParticipantDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, ParticipantFromModel(p))
	}
	return out
}

// ParticipantFromModel maps one participant row.
func ParticipantFromModel(p models.Participant) ParticipantDTO {
	return ParticipantDTO{
		ID:          p.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		IsCreator:   p.IsCreator,
		Position:    p.Position,
		HasCard:     p.SquareCardID != nil,
		JoinedAt:    p.JoinedAt,
	}
}

// TimeSlotsFromModels maps slot rows, preserving order.
func TimeSlotsFromModels(rows []models.TimeSlot) []TimeSlotDTO {
	out := make([]TimeSlotDTO, 0, len(rows))
	for _, s := range rows {
		out = append(out, TimeSlotDTO{
			ID:        s.ID,
			Position:  s.Position,
			StartDate: s.StartDate.Format(DateLayout),
			EndDate:   s.EndDate.Format(DateLayout),
		})
	}
	return out
}

func inviteesFromModels(rows []models.Invitee) []InviteeDTO {
	out := make([]InviteeDTO, 0, len(rows))
	for _, i := range rows {
		out = append(out, InviteeDTO{
			ID:             i.ID,
			Name:           i.Name,
			Email:          i.Email,
			Phone:          i.Phone,
			InvitationSent: i.InvitationSent,
			Joined:         i.ConsumedAt != nil,
		})
	}
	return out
}

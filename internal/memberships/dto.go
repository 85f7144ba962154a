package memberships

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/internal/timeslots"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/types"
)

// JoinInfoDTO is what an invitee sees before accepting.
type JoinInfoDTO struct {
	GroupID             uuid.UUID            `json:"group_id"`
	GroupName           string               `json:"group_name"`
	Address             types.Address        `json:"address"`
	Status              enums.GroupStatus    `json:"status"`
	CreatorName         string               `json:"creator_name"`
	MaxParticipants     int                  `json:"max_participants"`
	CurrentParticipants int                  `json:"current_participants"`
	TimeSlots           []groups.TimeSlotDTO `json:"time_slots"`
	Invitee             InviteeDTO           `json:"invitee"`
}

// InviteeDTO names the invited person.
type InviteeDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// JoinResult is returned after a successful join.
type JoinResult struct {
	Participant groups.ParticipantDTO `json:"participant"`
	Group       *groups.GroupDTO      `json:"group"`
	Analysis    *timeslots.Result     `json:"time_slot_analysis"`
}

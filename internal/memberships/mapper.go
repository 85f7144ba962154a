package memberships

import (
	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
)

func joinInfoFromModels(group *models.Group, slots []models.TimeSlot, invitee *models.Invitee) JoinInfoDTO {
	return JoinInfoDTO{
		GroupID:             group.ID,
		GroupName:           group.Name,
		Address:             group.Address,
		Status:              group.Status,
		CreatorName:         group.CreatorName,
		MaxParticipants:     group.MaxParticipants,
		CurrentParticipants: group.CurrentParticipants,
		TimeSlots:           groups.TimeSlotsFromModels(slots),
		Invitee: InviteeDTO{
			Name:  invitee.Name,
			Email: invitee.Email,
		},
	}
}

func participantsToDTO(rows []models.Participant) []groups.ParticipantDTO {
	out := make([]groups.ParticipantDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, groups.ParticipantFromModel(p))
	}
	return out
}

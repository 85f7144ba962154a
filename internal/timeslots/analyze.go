// Package timeslots computes which candidate rental windows work for everyone.
package timeslots

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/internal/groups"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
)

// SlotAnalysis is the availability summary of one slot.
type SlotAnalysis struct {
	groups.TimeSlotDTO
	SelectedByCount int      `json:"selected_by_count"`
	SelectedBy      []string `json:"selected_by"`
	IsUniversal     bool     `json:"is_universal"`
}

// Analyze counts selections per slot. Names follow participant join order so
// the result does not depend on the order selections were recorded in.
// Selections by unknown participants or for unknown slots are ignored.
func Analyze(slots []models.TimeSlot, participants []models.Participant, selections []models.TimeSlotSelection) []SlotAnalysis {
	out := make([]SlotAnalysis, 0, len(slots))
	if len(slots) == 0 {
		return out
	}

	picked := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(slots))
	for _, s := range slots {
		picked[s.ID] = map[uuid.UUID]struct{}{}
	}
	for _, sel := range selections {
		if set, ok := picked[sel.TimeSlotID]; ok {
			set[sel.ParticipantID] = struct{}{}
		}
	}

	dtos := groups.TimeSlotsFromModels(slots)
	for i, s := range slots {
		names := []string{}
		for _, p := range participants {
			if _, ok := picked[s.ID][p.ID]; ok {
				names = append(names, p.DisplayName)
			}
		}
		out = append(out, SlotAnalysis{
			TimeSlotDTO:     dtos[i],
			SelectedByCount: len(names),
			SelectedBy:      names,
			IsUniversal:     len(names) > 0 && len(names) == len(participants),
		})
	}
	return out
}

// Universal returns the slots every participant selected.
func Universal(analysis []SlotAnalysis) []SlotAnalysis {
	var out []SlotAnalysis
	for _, a := range analysis {
		if a.IsUniversal {
			out = append(out, a)
		}
	}
	return out
}

package repotest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/types"
)

// GroupFixture describes a group to seed. Members are joined participants in
// addition to the creator.
type GroupFixture struct {
	Max     int
	Members int
	Status  enums.GroupStatus
	Slots   int
}

// Seeded is what SeedGroup wrote.
type Seeded struct {
	Group        models.Group
	Participants []models.Participant
	Slots        []models.TimeSlot
}

// Creator returns the position 1 participant.
func (s Seeded) Creator() models.Participant {
	return s.Participants[0]
}

// SeedGroup inserts a group with a creator, members and slots directly.
func SeedGroup(tb testing.TB, conn *gorm.DB, fx GroupFixture) Seeded {
	tb.Helper()
	if fx.Max == 0 {
		fx.Max = fx.Members + 1
	}
	if fx.Status == "" {
		fx.Status = enums.GroupStatusForming
	}
	creatorID := uuid.New()
	group := models.Group{
		ID:                  uuid.New(),
		Name:                "Spring cleanout",
		Address:             types.Address{Street: "12 Elm St", City: "Austin", State: "TX", Zip: "78701"},
		CreatorUserID:       creatorID,
		CreatorEmail:        "creator@example.com",
		CreatorName:         "Casey Creator",
		MaxParticipants:     fx.Max,
		CurrentParticipants: fx.Members + 1,
		Status:              fx.Status,
	}
	if err := conn.Create(&group).Error; err != nil {
		tb.Fatalf("seed group: %v", err)
	}

	out := Seeded{Group: group}
	for i := 0; i <= fx.Members; i++ {
		p := models.Participant{
			GroupID:     group.ID,
			UserID:      uuid.New(),
			Email:       fmt.Sprintf("member%d@example.com", i),
			DisplayName: fmt.Sprintf("Member %d", i),
			Position:    i + 1,
		}
		if i == 0 {
			p.UserID = creatorID
			p.Email = group.CreatorEmail
			p.DisplayName = group.CreatorName
			p.IsCreator = true
		}
		if err := conn.Create(&p).Error; err != nil {
			tb.Fatalf("seed participant: %v", err)
		}
		out.Participants = append(out.Participants, p)
	}

	start := time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < fx.Slots; i++ {
		s := models.TimeSlot{
			GroupID:   group.ID,
			Position:  i + 1,
			StartDate: start.AddDate(0, 0, 7*i),
			EndDate:   start.AddDate(0, 0, 7*i+6),
		}
		if err := conn.Create(&s).Error; err != nil {
			tb.Fatalf("seed slot: %v", err)
		}
		out.Slots = append(out.Slots, s)
	}
	return out
}

// Select records slot selections for a participant.
func Select(tb testing.TB, conn *gorm.DB, p models.Participant, slots ...models.TimeSlot) {
	tb.Helper()
	for _, s := range slots {
		row := models.TimeSlotSelection{ParticipantID: p.ID, TimeSlotID: s.ID, GroupID: p.GroupID}
		if err := conn.Create(&row).Error; err != nil {
			tb.Fatalf("seed selection: %v", err)
		}
	}
}

// Events returns the outbox rows of one type in insertion order.
func Events(tb testing.TB, conn *gorm.DB, eventType enums.OutboxEventType) []models.OutboxEvent {
	tb.Helper()
	var rows []models.OutboxEvent
	if err := conn.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error; err != nil {
		tb.Fatalf("load events: %v", err)
	}
	return rows
}

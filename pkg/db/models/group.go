package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/types"
)

// Group is one shared dumpster rental being coordinated.
type Group struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name                string            `gorm:"column:name;not null"`
	Address             types.Address     `gorm:"embedded;embeddedPrefix:address_"`
	CreatorUserID       uuid.UUID         `gorm:"column:creator_user_id;type:uuid;not null;index"`
	CreatorEmail        string            `gorm:"column:creator_email;not null"`
	CreatorName         string            `gorm:"column:creator_name;not null"`
	MaxParticipants     int               `gorm:"column:max_participants;not null"`
	CurrentParticipants int               `gorm:"column:current_participants;not null"`
	Status              enums.GroupStatus `gorm:"column:status;type:group_status;not null"`
	FinalTimeSlotID     *uuid.UUID        `gorm:"column:final_time_slot_id;type:uuid"`
	TotalCostCents      *int64            `gorm:"column:total_cost_cents"`
	VendorName          *string           `gorm:"column:vendor_name"`
	VendorWebsite       *string           `gorm:"column:vendor_website"`
	VendorReference     *string           `gorm:"column:vendor_reference"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *Group) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// IsFull reports whether every seat is taken.
func (g Group) IsFull() bool {
	return g.CurrentParticipants >= g.MaxParticipants
}

// Participant links an accepted member to a group. Position is the 1-based
// join order; the creator is always position 1.
type Participant struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GroupID          uuid.UUID `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_participants_group_user,priority:1;uniqueIndex:ux_participants_group_position,priority:1"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_participants_group_user,priority:2"`
	Email            string    `gorm:"column:email;not null"`
	DisplayName      string    `gorm:"column:display_name;not null"`
	IsCreator        bool      `gorm:"column:is_creator;not null"`
	Position         int       `gorm:"column:position;not null;uniqueIndex:ux_participants_group_position,priority:2"`
	SquareCustomerID *string   `gorm:"column:square_customer_id"`
	SquareCardID     *string   `gorm:"column:square_card_id"`
	JoinedAt         time.Time `gorm:"column:joined_at;autoCreateTime"`
}

func (p *Participant) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Invitee is a pending single-use invitation. Only the token digest is stored.
type Invitee struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	GroupID         uuid.UUID  `gorm:"column:group_id;type:uuid;not null;index"`
	Name            string     `gorm:"column:name;not null"`
	Email           string     `gorm:"column:email;not null"`
	Phone           *string    `gorm:"column:phone"`
	JoinTokenDigest string     `gorm:"column:join_token_digest;not null;uniqueIndex"`
	InvitationSent  bool       `gorm:"column:invitation_sent;not null"`
	ConsumedAt      *time.Time `gorm:"column:consumed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *Invitee) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// TimeSlot is a candidate 7-day rental window.
type TimeSlot struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GroupID   uuid.UUID `gorm:"column:group_id;type:uuid;not null;index"`
	Position  int       `gorm:"column:position;not null"`
	StartDate time.Time `gorm:"column:start_date;type:date;not null"`
	EndDate   time.Time `gorm:"column:end_date;type:date;not null"`
}

func (s *TimeSlot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// TimeSlotSelection records that a participant is available for a slot.
type TimeSlotSelection struct {
	ParticipantID uuid.UUID `gorm:"column:participant_id;type:uuid;primaryKey"`
	TimeSlotID    uuid.UUID `gorm:"column:time_slot_id;type:uuid;primaryKey"`
	GroupID       uuid.UUID `gorm:"column:group_id;type:uuid;not null;index"`
}

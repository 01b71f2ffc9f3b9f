package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Team struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClassID   uuid.UUID `gorm:"type:uuid;not null;index" json:"class_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Class   *Class       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Members []TeamMember `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type TeamMember struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID     uuid.UUID `gorm:"type:uuid;not null;index:idx_team_member,unique,priority:1" json:"team_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_team_member,unique,priority:2;index" json:"user_id"`
	JoinedDate time.Time `gorm:"autoCreateTime" json:"joined_date"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IcebreakerQuestion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Question  string    `gorm:"size:255;uniqueIndex;not null" json:"question"`
	Category  *string   `gorm:"size:50;index" json:"category,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (q *IcebreakerQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type ClassIcebreakerQuestion struct {
	ClassID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"class_id"`
	QuestionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"question_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	Class    *Class              `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Question *IcebreakerQuestion `gorm:"constraint:OnDelete:CASCADE" json:"question,omitempty"`
}

type IcebreakerResponse struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_icebreaker_response,unique,priority:1" json:"user_id"`
	TeamID      uuid.UUID `gorm:"type:uuid;not null;index:idx_icebreaker_response,unique,priority:2" json:"team_id"`
	QuestionID  uuid.UUID `gorm:"type:uuid;not null;index:idx_icebreaker_response,unique,priority:3" json:"question_id"`
	Response    string    `gorm:"type:text;not null" json:"response"`
	IsCompleted bool      `gorm:"default:true" json:"is_completed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User     *User               `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Team     *Team               `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Question *IcebreakerQuestion `gorm:"constraint:OnDelete:CASCADE" json:"question,omitempty"`
}

func (r *IcebreakerResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

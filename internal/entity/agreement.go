package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamAgreement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID      uuid.UUID `gorm:"type:uuid;not null;index" json:"team_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedDate time.Time `gorm:"autoCreateTime" json:"created_date"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	IsLocked    bool      `gorm:"default:false" json:"is_locked"`

	Team       *Team                `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Signatures []AgreementSignature `gorm:"foreignKey:AgreementID;constraint:OnDelete:CASCADE" json:"signatures,omitempty"`
}

func (a *TeamAgreement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type AgreementSignature struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AgreementID uuid.UUID `gorm:"type:uuid;not null;index:idx_agreement_signature,unique,priority:1" json:"agreement_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_agreement_signature,unique,priority:2" json:"user_id"`
	SignedDate  time.Time `gorm:"autoCreateTime" json:"signed_date"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (s *AgreementSignature) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

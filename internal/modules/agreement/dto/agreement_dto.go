package dto

import (
	"time"

	"github.com/google/uuid"
)

type SaveAgreementRequest struct {
	AgreementID *uuid.UUID `json:"agreement_id"`
	Content     string     `json:"content" binding:"required,min=10,max=20000"`
}

type SignatureResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	SignedDate time.Time `json:"signed_date"`
}

type AgreementResponse struct {
	ID          uuid.UUID           `json:"id"`
	TeamID      uuid.UUID           `json:"team_id"`
	Content     string              `json:"content"`
	CreatedBy   uuid.UUID           `json:"created_by"`
	CreatedDate time.Time           `json:"created_date"`
	UpdatedAt   time.Time           `json:"updated_at"`
	IsLocked    bool                `json:"is_locked"`
	Signatures  []SignatureResponse `json:"signatures"`
	SignedByMe  bool                `json:"signed_by_me"`
}

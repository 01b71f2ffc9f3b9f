package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateTeamRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

type MemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type MoveMemberRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	ToTeamID uuid.UUID `json:"to_team_id" binding:"required"`
}

type MemberResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	JoinedDate time.Time `json:"joined_date"`
}

type TeamResponse struct {
	ID          uuid.UUID        `json:"id"`
	ClassID     uuid.UUID        `json:"class_id"`
	Name        string           `json:"name"`
	MemberCount int              `json:"member_count"`
	Capacity    *int             `json:"capacity"`
	IsFull      bool             `json:"is_full"`
	Members     []MemberResponse `json:"members"`
}

type SignatureResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	SignedDate time.Time `json:"signed_date"`
}

type AgreementSummary struct {
	ID          uuid.UUID           `json:"id"`
	Content     string              `json:"content"`
	IsLocked    bool                `json:"is_locked"`
	CreatedDate time.Time           `json:"created_date"`
	Signatures  []SignatureResponse `json:"signatures"`
}

type IcebreakerAnswer struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	QuestionID uuid.UUID `json:"question_id"`
	Question   string    `json:"question"`
	Response   string    `json:"response"`
}

type TeamDetailResponse struct {
	TeamResponse
	Agreement   *AgreementSummary  `json:"agreement"`
	Icebreakers []IcebreakerAnswer `json:"icebreakers"`
}

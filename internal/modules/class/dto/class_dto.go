package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateClassRequest struct {
	Name             string   `json:"name" binding:"required,min=1,max=100"`
	Quarter          string   `json:"quarter" binding:"required,min=1,max=50"`
	Section          string   `json:"section" binding:"required,min=1,max=50"`
	Year             int      `json:"year" binding:"required,min=1900,max=2100"`
	Description      string   `json:"description" binding:"max=500"`
	MaxTeamSize      *int     `json:"max_team_size" binding:"omitempty,min=2,max=20"`
	InstructorEmails []string `json:"instructor_emails" binding:"omitempty,dive,email"`
	TAEmails         []string `json:"ta_emails" binding:"omitempty,dive,email"`
}

type CreateClassResponse struct {
	ID            uuid.UUID `json:"id"`
	ClassCode     string    `json:"class_code"`
	FailedInvites []string  `json:"failed_invites,omitempty"`
}

type ToggleArchiveRequest struct {
	IsArchived *bool `json:"is_archived" binding:"required"`
}

type ToggleArchiveResponse struct {
	ID         uuid.UUID `json:"id"`
	IsArchived bool      `json:"is_archived"`
}

type JoinClassRequest struct {
	ClassCode string `json:"class_code" binding:"required,min=1,max=20"`
}

type JoinClassResponse struct {
	ClassID   uuid.UUID `json:"class_id"`
	ClassName string    `json:"class_name"`
}

type TeamSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MemberCount int64     `json:"member_count"`
}

type ClassDetailResponse struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Quarter     string        `json:"quarter"`
	Section     string        `json:"section"`
	Year        int           `json:"year"`
	Description string        `json:"description"`
	MaxTeamSize *int          `json:"max_team_size"`
	ClassCode   string        `json:"class_code"`
	IsArchived  bool          `json:"is_archived"`
	CreatedBy   uuid.UUID     `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	Teams       []TeamSummary `json:"teams"`
}

type RosterEntry struct {
	UserID   uuid.UUID  `json:"user_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	TeamID   *uuid.UUID `json:"team_id"`
	TeamName *string    `json:"team_name"`
}

package dto

import (
	"time"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
)

type QuestionInput struct {
	QuestionText string `json:"question_text" binding:"required,min=1,max=500"`
	Type         string `json:"type" binding:"omitempty,oneof=likert"`
}

type CreateSurveyRequest struct {
	ReleaseDate time.Time       `json:"release_date" binding:"required"`
	DueDate     time.Time       `json:"due_date" binding:"required,gtefield=ReleaseDate"`
	Questions   []QuestionInput `json:"questions" binding:"omitempty,dive"`
}

type SubmitResponseRequest struct {
	TeamID  uuid.UUID `json:"team_id" binding:"required"`
	Answers []string  `json:"answers" binding:"required,min=1,dive,oneof=1 2 3 4 5"`
}

type SurveyResponse struct {
	ID            uuid.UUID               `json:"id"`
	ClassID       uuid.UUID               `json:"class_id"`
	SentDate      time.Time               `json:"sent_date"`
	DueDate       time.Time               `json:"due_date"`
	Questions     []entity.SurveyQuestion `json:"questions"`
	IsOpen        bool                    `json:"is_open"`
	Responded     *bool                   `json:"responded,omitempty"`
	ResponseCount *int64                  `json:"response_count,omitempty"`
}

// PendingReminder is one student who still owes an answer to a survey closing soon.
type PendingReminder struct {
	SurveyID uuid.UUID
	ClassID  uuid.UUID
	UserID   uuid.UUID
	DueDate  time.Time
}

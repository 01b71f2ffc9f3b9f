package dto

import (
	"time"

	"github.com/google/uuid"
)

type AddQuestionRequest struct {
	Question string  `json:"question" binding:"required,min=1,max=255"`
	Category *string `json:"category" binding:"omitempty,max=50"`
}

type QuestionResponse struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Category *string   `json:"category,omitempty"`
}

type SearchQuery struct {
	Query    string `form:"q" binding:"max=100"`
	Category string `form:"category" binding:"max=50"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type SubmitAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Response   string    `json:"response" binding:"required,min=1,max=1000"`
}

type AnswerResponse struct {
	TeamID     uuid.UUID `json:"team_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Response   string    `json:"response"`
	UpdatedAt  time.Time `json:"updated_at"`
}

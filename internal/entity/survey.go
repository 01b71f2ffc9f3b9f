package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const QuestionTypeLikert = "likert"

type SurveyQuestion struct {
	QuestionText string `json:"question_text"`
	Type         string `json:"type"`
}

// DefaultPulseQuestions is used when a survey is released without its own questions.
func DefaultPulseQuestions() []SurveyQuestion {
	texts := []string{
		"Members provide timely response to communications",
		"Members are present at scheduled meetings",
		"Members have equitable workload distribution",
		"Our team has good morale and energy",
		"Our team is making good progress on our project",
	}
	out := make([]SurveyQuestion, len(texts))
	for i, t := range texts {
		out[i] = SurveyQuestion{QuestionText: t, Type: QuestionTypeLikert}
	}
	return out
}

type Survey struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ClassID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"class_id"`
	CreatedBy uuid.UUID        `gorm:"type:uuid;not null" json:"created_by"`
	SentDate  time.Time        `gorm:"not null" json:"sent_date"`
	DueDate   time.Time        `gorm:"not null;index" json:"due_date"`
	Questions []SurveyQuestion `gorm:"type:jsonb;serializer:json;not null" json:"questions"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`

	// ReleaseNotifiedAt is set once students have been told the survey is open.
	ReleaseNotifiedAt *time.Time `gorm:"index" json:"-"`

	Class *Class `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (s *Survey) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Response answers are Likert values "1".."5", positionally aligned with Survey.Questions.
type Response struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SurveyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_survey_response,unique,priority:1" json:"survey_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_survey_response,unique,priority:2" json:"user_id"`
	TeamID    uuid.UUID `gorm:"type:uuid;not null;index" json:"team_id"`
	Answers   []string  `gorm:"type:jsonb;serializer:json;not null" json:"answers"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`

	Survey *Survey `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Team   *Team   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

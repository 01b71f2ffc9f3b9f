package dto

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusAll      = "all"
)

type DashboardQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=active archived all"`
}

type InstructorClass struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Quarter    string    `json:"quarter"`
	Section    string    `json:"section"`
	Year       int       `json:"year"`
	ClassCode  string    `json:"class_code"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
}

type InstructorDashboard struct {
	Status  string            `json:"status"`
	Classes []InstructorClass `json:"classes"`
}

type TeamRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type StudentClass struct {
	ClassID            uuid.UUID `json:"class_id"`
	Name               string    `json:"name"`
	Quarter            string    `json:"quarter"`
	Section            string    `json:"section"`
	Year               int       `json:"year"`
	IsArchived         bool      `json:"is_archived"`
	Team               *TeamRef  `json:"team"`
	PendingSurveys     int64     `json:"pending_surveys"`
	PendingIcebreakers int64     `json:"pending_icebreakers"`
	PendingAgreements  int64     `json:"pending_agreements"`
}

type StudentDashboard struct {
	Status                  string         `json:"status"`
	Classes                 []StudentClass `json:"classes"`
	TotalPendingSurveys     int64          `json:"total_pending_surveys"`
	TotalPendingIcebreakers int64          `json:"total_pending_icebreakers"`
	TotalPendingAgreements  int64          `json:"total_pending_agreements"`
}

// Enrollment is one active student role row joined with its class and team.
type Enrollment struct {
	ClassID    uuid.UUID
	Name       string
	Quarter    string
	Section    string
	Year       int
	IsArchived bool
	TeamID     *uuid.UUID
	TeamName   *string
}

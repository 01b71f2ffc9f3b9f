package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleInstructor = "instructor"
	RoleTA         = "TA"
	RoleStudent    = "student"
)

// StaffRoles are the roles allowed to manage a class.
var StaffRoles = []string{RoleInstructor, RoleTA}

type Class struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Quarter     string    `gorm:"size:50;not null" json:"quarter"`
	Section     string    `gorm:"size:50;not null" json:"section"`
	Year        int       `gorm:"not null" json:"year"`
	Description string    `gorm:"size:500" json:"description"`
	MaxTeamSize *int      `json:"max_team_size"`
	ClassCode   string    `gorm:"size:8;uniqueIndex;not null" json:"class_code"`
	IsArchived  bool      `gorm:"default:false;index" json:"is_archived"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Creator *User `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Class) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type ClassRole struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClassID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_class_role,unique,priority:1" json:"class_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_class_role,unique,priority:2;index" json:"user_id"`
	Role      string     `gorm:"size:20;not null;index:idx_class_role,unique,priority:3" json:"role"`
	TeamID    *uuid.UUID `gorm:"type:uuid;index" json:"team_id"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Class *Class `gorm:"constraint:OnDelete:CASCADE" json:"class,omitempty"`
	User  *User  `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Team  *Team  `gorm:"constraint:OnDelete:SET NULL" json:"team,omitempty"`
}

func (r *ClassRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func IsStaffRole(role string) bool {
	return role == RoleInstructor || role == RoleTA
}

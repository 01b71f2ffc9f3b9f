package dto

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// UpdateProfileInput is bound from multipart form fields or JSON; nil fields are left untouched.
type UpdateProfileInput struct {
	Name     *string `json:"name" form:"name" binding:"omitempty,min=1,max=50"`
	Email    *string `json:"email" form:"email" binding:"omitempty,email,max=255"`
	Phone    *string `json:"phone" form:"phone" binding:"omitempty,max=20"`
	Password *string `json:"password" form:"password" binding:"omitempty,min=8,max=72"`
}

type AvatarFile struct {
	Reader   io.Reader
	FileName string
}

type ProfileResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

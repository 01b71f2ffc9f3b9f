package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/profile/dto"
	userRepo "chimu.app/backend/internal/modules/user/repository"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"chimu.app/backend/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errEmailTaken = apperror.Conflict("email is already in use")

type ProfileService interface {
	GetCurrentProfile(ctx context.Context, userID uuid.UUID) (*dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input dto.UpdateProfileInput, avatar *dto.AvatarFile) (*dto.ProfileResponse, error)
}

type profileService struct {
	repo         userRepo.UserRepository
	photoStorage storage.PhotoStorage
	views        cache.ViewCache
}

// NewProfileService accepts a nil photoStorage, in which case avatar uploads are refused.
func NewProfileService(repo userRepo.UserRepository, photoStorage storage.PhotoStorage, views cache.ViewCache) ProfileService {
	return &profileService{
		repo:         repo,
		photoStorage: photoStorage,
		views:        views,
	}
}

func (s *profileService) GetCurrentProfile(ctx context.Context, userID uuid.UUID) (*dto.ProfileResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfileResponse(user), nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID uuid.UUID, input dto.UpdateProfileInput, avatar *dto.AvatarFile) (*dto.ProfileResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len([]rune(name)) > 50 {
			return nil, apperror.NewValidationError("name", "Name must be between 1 and 50 characters")
		}
		user.Name = name
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email != strings.ToLower(user.Email) {
			existing, err := s.repo.FindByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != user.ID:
				return nil, errEmailTaken
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, apperror.Internal("failed to check email", err)
			}
			user.Email = email
		}
	}

	if input.Phone != nil {
		if phone := strings.TrimSpace(*input.Phone); phone != "" {
			user.Phone = &phone
		} else {
			user.Phone = nil
		}
	}

	if input.Password != nil && *input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperror.Internal("failed to update password", fmt.Errorf("hash password: %w", err))
		}
		user.PasswordHash = string(hashed)
	}

	var previousAvatar string
	if avatar != nil && avatar.Reader != nil {
		if s.photoStorage == nil {
			return nil, apperror.BadRequest("avatar uploads are not available")
		}
		if !storage.IsImage(avatar.FileName) {
			return nil, apperror.NewValidationError("avatar", "Avatar must be a jpg, png, gif or webp image")
		}

		url, err := s.photoStorage.Upload(ctx, avatar.Reader, storage.AvatarFolder, user.ID.String()+strings.ToLower(filepath.Ext(avatar.FileName)))
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedImage) {
				return nil, apperror.NewValidationError("avatar", "Avatar must be a jpg, png, gif or webp image")
			}
			return nil, apperror.Internal("failed to upload avatar", err)
		}
		if user.AvatarURL != nil {
			previousAvatar = *user.AvatarURL
		}
		user.AvatarURL = &url
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, apperror.Internal("failed to update profile", err)
	}

	if previousAvatar != "" && storage.PublicID(previousAvatar) != storage.PublicID(*user.AvatarURL) {
		if err := s.photoStorage.Delete(ctx, previousAvatar); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to delete previous avatar")
		}
	}

	s.invalidateViews(ctx, user.ID)
	return toProfileResponse(user), nil
}

// invalidateViews drops cached team and class views that embed the user's name or avatar.
func (s *profileService) invalidateViews(ctx context.Context, userID uuid.UUID) {
	var keys []string

	teamIDs, err := s.repo.TeamIDs(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("could not list teams for cache invalidation")
	}
	for _, id := range teamIDs {
		keys = append(keys, cache.TeamKey(id))
	}

	classIDs, err := s.repo.ClassIDs(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("could not list classes for cache invalidation")
	}
	for _, id := range classIDs {
		keys = append(keys, cache.ClassKey(id))
	}

	if len(keys) > 0 {
		s.views.Invalidate(ctx, keys...)
	}
}

func (s *profileService) findUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user not found")
		}
		return nil, apperror.Internal("failed to load user", err)
	}
	return user, nil
}

func toProfileResponse(u *entity.User) *dto.ProfileResponse {
	return &dto.ProfileResponse{
		ID:        u.ID,
		Name:      u.DisplayName(),
		Email:     u.Email,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

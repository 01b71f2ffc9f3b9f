package repository

import (
	"context"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccessRepository interface {
	RolesInClass(ctx context.Context, userID, classID uuid.UUID) ([]string, error)
	TeamClassID(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error)
	IsTeamMember(ctx context.Context, userID, teamID uuid.UUID) (bool, error)
}

type accessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) AccessRepository {
	return &accessRepository{db: db}
}

func (r *accessRepository) RolesInClass(ctx context.Context, userID, classID uuid.UUID) ([]string, error) {
	var roles []string
	err := r.db.WithContext(ctx).
		Model(&entity.ClassRole{}).
		Where("class_id = ? AND user_id = ?", classID, userID).
		Pluck("role", &roles).Error
	return roles, err
}

func (r *accessRepository) TeamClassID(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	var team entity.Team
	if err := r.db.WithContext(ctx).Select("id", "class_id").First(&team, "id = ?", teamID).Error; err != nil {
		return uuid.Nil, err
	}
	return team.ClassID, nil
}

func (r *accessRepository) IsTeamMember(ctx context.Context, userID, teamID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	return count > 0, err
}

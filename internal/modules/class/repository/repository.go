package repository

import (
	"context"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/class/dto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClassRepository interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	CreateWithInstructor(ctx context.Context, class *entity.Class) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Class, error)
	FindByCode(ctx context.Context, code string) (*entity.Class, error)
	SetArchived(ctx context.Context, classID, createdBy uuid.UUID, archived bool) (bool, error)
	HasAnyRole(ctx context.Context, classID, userID uuid.UUID) (bool, error)
	AddRole(ctx context.Context, role *entity.ClassRole) error
	TeamSummaries(ctx context.Context, classID uuid.UUID) ([]dto.TeamSummary, error)
	Roster(ctx context.Context, classID uuid.UUID) ([]entity.ClassRole, error)
	MemberIDs(ctx context.Context, classID uuid.UUID, role string) ([]uuid.UUID, error)
}

type classRepository struct {
	db *gorm.DB
}

func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Class{}).Where("class_code = ?", code).Count(&count).Error
	return count > 0, err
}

// CreateWithInstructor inserts the class and the creator's instructor role together.
func (r *classRepository) CreateWithInstructor(ctx context.Context, class *entity.Class) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(class).Error; err != nil {
			return err
		}
		return tx.Create(&entity.ClassRole{
			ClassID:  class.ID,
			UserID:   class.CreatedBy,
			Role:     entity.RoleInstructor,
			IsActive: true,
		}).Error
	})
}

func (r *classRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Class, error) {
	var class entity.Class
	if err := r.db.WithContext(ctx).First(&class, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepository) FindByCode(ctx context.Context, code string) (*entity.Class, error) {
	var class entity.Class
	if err := r.db.WithContext(ctx).Where("class_code = ?", code).First(&class).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepository) SetArchived(ctx context.Context, classID, createdBy uuid.UUID, archived bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Class{}).
		Where("id = ? AND created_by = ?", classID, createdBy).
		Update("is_archived", archived)
	return res.RowsAffected > 0, res.Error
}

func (r *classRepository) HasAnyRole(ctx context.Context, classID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ClassRole{}).
		Where("class_id = ? AND user_id = ?", classID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *classRepository) AddRole(ctx context.Context, role *entity.ClassRole) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *classRepository) TeamSummaries(ctx context.Context, classID uuid.UUID) ([]dto.TeamSummary, error) {
	var summaries []dto.TeamSummary
	err := r.db.WithContext(ctx).
		Table("teams").
		Select("teams.id, teams.name, COUNT(team_members.id) AS member_count").
		Joins("LEFT JOIN team_members ON team_members.team_id = teams.id").
		Where("teams.class_id = ?", classID).
		Group("teams.id, teams.name").
		Order("teams.name ASC").
		Scan(&summaries).Error
	return summaries, err
}

func (r *classRepository) Roster(ctx context.Context, classID uuid.UUID) ([]entity.ClassRole, error) {
	var roles []entity.ClassRole
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Team").
		Where("class_id = ?", classID).
		Order("role ASC, created_at ASC").
		Find(&roles).Error
	return roles, err
}

func (r *classRepository) MemberIDs(ctx context.Context, classID uuid.UUID, role string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&entity.ClassRole{}).Where("class_id = ?", classID)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	err := query.Distinct().Pluck("user_id", &ids).Error
	return ids, err
}

package repository

import (
	"context"
	"time"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/dashboard/dto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DashboardRepository interface {
	InstructorClasses(ctx context.Context, userID uuid.UUID) ([]entity.Class, error)
	StudentEnrollments(ctx context.Context, userID uuid.UUID) ([]dto.Enrollment, error)
	PendingSurveyCounts(ctx context.Context, userID uuid.UUID, classIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int64, error)
	PendingIcebreakerCounts(ctx context.Context, userID uuid.UUID, classIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	UnsignedAgreementCounts(ctx context.Context, userID uuid.UUID, teamIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

type groupCount struct {
	GroupID uuid.UUID
	Total   int64
}

func toMap(rows []groupCount) map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		out[r.GroupID] = r.Total
	}
	return out
}

// InstructorClasses lists every class the user created, newest first.
func (r *dashboardRepository) InstructorClasses(ctx context.Context, userID uuid.UUID) ([]entity.Class, error) {
	var classes []entity.Class
	err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Find(&classes).Error
	return classes, err
}

func (r *dashboardRepository) StudentEnrollments(ctx context.Context, userID uuid.UUID) ([]dto.Enrollment, error) {
	var rows []dto.Enrollment
	err := r.db.WithContext(ctx).
		Table("class_roles").
		Select("classes.id AS class_id, classes.name, classes.quarter, classes.section, classes.year, classes.is_archived, teams.id AS team_id, teams.name AS team_name").
		Joins("JOIN classes ON classes.id = class_roles.class_id").
		Joins("LEFT JOIN teams ON teams.id = class_roles.team_id").
		Where("class_roles.user_id = ? AND class_roles.role = ? AND class_roles.is_active = ?", userID, entity.RoleStudent, true).
		Order("classes.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// PendingSurveyCounts counts open surveys per class that the user has not answered.
func (r *dashboardRepository) PendingSurveyCounts(ctx context.Context, userID uuid.UUID, classIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int64, error) {
	if len(classIDs) == 0 {
		return map[uuid.UUID]int64{}, nil
	}
	var rows []groupCount
	err := r.db.WithContext(ctx).
		Table("surveys").
		Select("surveys.class_id AS group_id, COUNT(*) AS total").
		Joins("LEFT JOIN responses ON responses.survey_id = surveys.id AND responses.user_id = ?", userID).
		Where("surveys.class_id IN ? AND surveys.sent_date <= ? AND surveys.due_date >= ?", classIDs, now, now).
		Where("responses.id IS NULL").
		Group("surveys.class_id").
		Scan(&rows).Error
	return toMap(rows), err
}

// PendingIcebreakerCounts counts class questions the user has not answered for their current team.
func (r *dashboardRepository) PendingIcebreakerCounts(ctx context.Context, userID uuid.UUID, classIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	if len(classIDs) == 0 {
		return map[uuid.UUID]int64{}, nil
	}
	var rows []groupCount
	err := r.db.WithContext(ctx).
		Table("class_icebreaker_questions AS ciq").
		Select("ciq.class_id AS group_id, COUNT(*) AS total").
		Joins("JOIN class_roles cr ON cr.class_id = ciq.class_id AND cr.user_id = ? AND cr.role = ? AND cr.team_id IS NOT NULL", userID, entity.RoleStudent).
		Joins("LEFT JOIN icebreaker_responses ir ON ir.question_id = ciq.question_id AND ir.user_id = cr.user_id AND ir.team_id = cr.team_id").
		Where("ciq.class_id IN ?", classIDs).
		Where("ir.id IS NULL").
		Group("ciq.class_id").
		Scan(&rows).Error
	return toMap(rows), err
}

func (r *dashboardRepository) UnsignedAgreementCounts(ctx context.Context, userID uuid.UUID, teamIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	if len(teamIDs) == 0 {
		return map[uuid.UUID]int64{}, nil
	}
	var rows []groupCount
	err := r.db.WithContext(ctx).
		Table("team_agreements").
		Select("team_agreements.team_id AS group_id, COUNT(*) AS total").
		Joins("LEFT JOIN agreement_signatures ON agreement_signatures.agreement_id = team_agreements.id AND agreement_signatures.user_id = ?", userID).
		Where("team_agreements.team_id IN ?", teamIDs).
		Where("agreement_signatures.id IS NULL").
		Group("team_agreements.team_id").
		Scan(&rows).Error
	return toMap(rows), err
}

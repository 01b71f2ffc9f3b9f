package repository

import (
	"context"
	"time"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/survey/dto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SurveyRepository interface {
	Create(ctx context.Context, survey *entity.Survey) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Survey, error)
	ListByClass(ctx context.Context, classID uuid.UUID, releasedBefore *time.Time) ([]entity.Survey, error)
	StudentRole(ctx context.Context, classID, userID uuid.UUID) (*entity.ClassRole, error)
	StudentIDs(ctx context.Context, classID uuid.UUID) ([]uuid.UUID, error)
	HasResponded(ctx context.Context, surveyID, userID uuid.UUID) (bool, error)
	CreateResponse(ctx context.Context, response *entity.Response) error
	RespondedSurveyIDs(ctx context.Context, userID uuid.UUID, surveyIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	ResponseCounts(ctx context.Context, surveyIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	PendingReminders(ctx context.Context, from, to time.Time) ([]dto.PendingReminder, error)
	UnannouncedReleases(ctx context.Context, now time.Time) ([]entity.Survey, error)
	MarkReleaseNotified(ctx context.Context, surveyID uuid.UUID, at time.Time) (bool, error)
}

type surveyRepository struct {
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) SurveyRepository {
	return &surveyRepository{db: db}
}

func (r *surveyRepository) Create(ctx context.Context, survey *entity.Survey) error {
	return r.db.WithContext(ctx).Create(survey).Error
}

func (r *surveyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Survey, error) {
	var survey entity.Survey
	if err := r.db.WithContext(ctx).First(&survey, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &survey, nil
}

func (r *surveyRepository) ListByClass(ctx context.Context, classID uuid.UUID, releasedBefore *time.Time) ([]entity.Survey, error) {
	var surveys []entity.Survey
	query := r.db.WithContext(ctx).Where("class_id = ?", classID)
	if releasedBefore != nil {
		query = query.Where("sent_date <= ?", *releasedBefore)
	}
	err := query.Order("due_date DESC").Find(&surveys).Error
	return surveys, err
}

func (r *surveyRepository) StudentRole(ctx context.Context, classID, userID uuid.UUID) (*entity.ClassRole, error) {
	var role entity.ClassRole
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND user_id = ? AND role = ?", classID, userID, entity.RoleStudent).
		First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *surveyRepository) StudentIDs(ctx context.Context, classID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.ClassRole{}).
		Where("class_id = ? AND role = ? AND is_active = ?", classID, entity.RoleStudent, true).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *surveyRepository) HasResponded(ctx context.Context, surveyID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Response{}).
		Where("survey_id = ? AND user_id = ?", surveyID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *surveyRepository) CreateResponse(ctx context.Context, response *entity.Response) error {
	return r.db.WithContext(ctx).Create(response).Error
}

func (r *surveyRepository) RespondedSurveyIDs(ctx context.Context, userID uuid.UUID, surveyIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(surveyIDs))
	if len(surveyIDs) == 0 {
		return out, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.Response{}).
		Where("user_id = ? AND survey_id IN ?", userID, surveyIDs).
		Pluck("survey_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *surveyRepository) ResponseCounts(ctx context.Context, surveyIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(surveyIDs))
	if len(surveyIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		SurveyID uuid.UUID
		Total    int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Response{}).
		Select("survey_id, COUNT(*) AS total").
		Where("survey_id IN ?", surveyIDs).
		Group("survey_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SurveyID] = row.Total
	}
	return out, nil
}

// PendingReminders lists released surveys due in [from, to) paired with enrolled students who have not answered.
func (r *surveyRepository) PendingReminders(ctx context.Context, from, to time.Time) ([]dto.PendingReminder, error) {
	var rows []dto.PendingReminder
	err := r.db.WithContext(ctx).
		Table("surveys").
		Select("surveys.id AS survey_id, surveys.class_id, class_roles.user_id, surveys.due_date").
		Joins("JOIN classes ON classes.id = surveys.class_id AND classes.is_archived = FALSE").
		Joins("JOIN class_roles ON class_roles.class_id = surveys.class_id AND class_roles.role = ? AND class_roles.is_active = TRUE", entity.RoleStudent).
		Joins("LEFT JOIN responses ON responses.survey_id = surveys.id AND responses.user_id = class_roles.user_id").
		Where("surveys.sent_date <= ? AND surveys.due_date >= ? AND surveys.due_date < ?", from, from, to).
		Where("responses.id IS NULL").
		Scan(&rows).Error
	return rows, err
}

// UnannouncedReleases lists surveys of active classes that are open at now and whose release was never announced.
func (r *surveyRepository) UnannouncedReleases(ctx context.Context, now time.Time) ([]entity.Survey, error) {
	var surveys []entity.Survey
	err := r.db.WithContext(ctx).
		Joins("JOIN classes ON classes.id = surveys.class_id AND classes.is_archived = FALSE").
		Where("surveys.release_notified_at IS NULL AND surveys.sent_date <= ? AND surveys.due_date >= ?", now, now).
		Order("surveys.sent_date").
		Find(&surveys).Error
	return surveys, err
}

// MarkReleaseNotified claims the release announcement. It reports false when another run already did.
func (r *surveyRepository) MarkReleaseNotified(ctx context.Context, surveyID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Survey{}).
		Where("id = ? AND release_notified_at IS NULL", surveyID).
		Update("release_notified_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

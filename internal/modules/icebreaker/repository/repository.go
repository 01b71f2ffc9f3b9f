package repository

import (
	"context"
	"errors"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IcebreakerRepository interface {
	FindQuestionByText(ctx context.Context, text string) (*entity.IcebreakerQuestion, error)
	CreateQuestion(ctx context.Context, question *entity.IcebreakerQuestion) error
	FindQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.IcebreakerQuestion, error)
	SearchQuestions(ctx context.Context, query, category string, limit int) ([]entity.IcebreakerQuestion, error)
	AllQuestions(ctx context.Context) ([]entity.IcebreakerQuestion, error)

	IsLinked(ctx context.Context, classID, questionID uuid.UUID) (bool, error)
	LinkQuestion(ctx context.Context, classID, questionID uuid.UUID) error
	UnlinkQuestion(ctx context.Context, classID, questionID uuid.UUID) (bool, error)
	ClassQuestions(ctx context.Context, classID uuid.UUID) ([]entity.IcebreakerQuestion, error)
	StudentIDs(ctx context.Context, classID uuid.UUID) ([]uuid.UUID, error)

	TeamClassID(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error)
	IsTeamMember(ctx context.Context, userID, teamID uuid.UUID) (bool, error)
	UpsertResponse(ctx context.Context, response *entity.IcebreakerResponse) error
}

type icebreakerRepository struct {
	db *gorm.DB
}

func NewIcebreakerRepository(db *gorm.DB) IcebreakerRepository {
	return &icebreakerRepository{db: db}
}

func (r *icebreakerRepository) FindQuestionByText(ctx context.Context, text string) (*entity.IcebreakerQuestion, error) {
	var q entity.IcebreakerQuestion
	if err := r.db.WithContext(ctx).Where("question = ?", text).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *icebreakerRepository) CreateQuestion(ctx context.Context, question *entity.IcebreakerQuestion) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *icebreakerRepository) FindQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.IcebreakerQuestion, error) {
	var questions []entity.IcebreakerQuestion
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *icebreakerRepository) SearchQuestions(ctx context.Context, query, category string, limit int) ([]entity.IcebreakerQuestion, error) {
	var questions []entity.IcebreakerQuestion
	db := r.db.WithContext(ctx).Model(&entity.IcebreakerQuestion{})
	if query != "" {
		db = db.Where("question ILIKE ?", "%"+query+"%")
	}
	if category != "" {
		db = db.Where("category = ?", category)
	}
	err := db.Order("question ASC").Limit(limit).Find(&questions).Error
	return questions, err
}

func (r *icebreakerRepository) AllQuestions(ctx context.Context) ([]entity.IcebreakerQuestion, error) {
	var questions []entity.IcebreakerQuestion
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&questions).Error
	return questions, err
}

func (r *icebreakerRepository) IsLinked(ctx context.Context, classID, questionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ClassIcebreakerQuestion{}).
		Where("class_id = ? AND question_id = ?", classID, questionID).
		Count(&count).Error
	return count > 0, err
}

func (r *icebreakerRepository) LinkQuestion(ctx context.Context, classID, questionID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&entity.ClassIcebreakerQuestion{ClassID: classID, QuestionID: questionID}).Error
}

func (r *icebreakerRepository) UnlinkQuestion(ctx context.Context, classID, questionID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("class_id = ? AND question_id = ?", classID, questionID).
		Delete(&entity.ClassIcebreakerQuestion{})
	return result.RowsAffected > 0, result.Error
}

func (r *icebreakerRepository) ClassQuestions(ctx context.Context, classID uuid.UUID) ([]entity.IcebreakerQuestion, error) {
	var questions []entity.IcebreakerQuestion
	err := r.db.WithContext(ctx).
		Joins("JOIN class_icebreaker_questions ciq ON ciq.question_id = icebreaker_questions.id").
		Where("ciq.class_id = ?", classID).
		Order("ciq.created_at ASC").
		Find(&questions).Error
	return questions, err
}

func (r *icebreakerRepository) StudentIDs(ctx context.Context, classID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.ClassRole{}).
		Where("class_id = ? AND role = ? AND is_active = ?", classID, entity.RoleStudent, true).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *icebreakerRepository) TeamClassID(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	var team entity.Team
	if err := r.db.WithContext(ctx).Select("id", "class_id").First(&team, "id = ?", teamID).Error; err != nil {
		return uuid.Nil, err
	}
	return team.ClassID, nil
}

func (r *icebreakerRepository) IsTeamMember(ctx context.Context, userID, teamID uuid.UUID) (bool, error) {
	var member entity.TeamMember
	err := r.db.WithContext(ctx).Select("id").Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UpsertResponse keeps a single answer per (user, team, question); resubmitting replaces the text.
func (r *icebreakerRepository) UpsertResponse(ctx context.Context, response *entity.IcebreakerResponse) error {
	return upsertResponse(r.db.WithContext(ctx), response).Error
}

func upsertResponse(db *gorm.DB, response *entity.IcebreakerResponse) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "team_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "is_completed", "updated_at"}),
	}).Create(response)
}

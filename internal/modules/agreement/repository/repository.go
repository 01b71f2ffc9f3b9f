package repository

import (
	"context"
	"errors"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AgreementRepository interface {
	TeamClassID(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error)
	MemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)

	Latest(ctx context.Context, teamID uuid.UUID) (*entity.TeamAgreement, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.TeamAgreement, error)
	CreateSigned(ctx context.Context, agreement *entity.TeamAgreement) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) (bool, error)
	Lock(ctx context.Context, id uuid.UUID) (bool, error)

	HasSigned(ctx context.Context, agreementID, userID uuid.UUID) (bool, error)
	CreateSignature(ctx context.Context, signature *entity.AgreementSignature) error
}

type agreementRepository struct {
	db *gorm.DB
}

func NewAgreementRepository(db *gorm.DB) AgreementRepository {
	return &agreementRepository{db: db}
}

func (r *agreementRepository) TeamClassID(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	var team entity.Team
	if err := r.db.WithContext(ctx).Select("id", "class_id").First(&team, "id = ?", teamID).Error; err != nil {
		return uuid.Nil, err
	}
	return team.ClassID, nil
}

func (r *agreementRepository) MemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.TeamMember{}).
		Where("team_id = ?", teamID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *agreementRepository) withSignatures(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Signatures", func(db *gorm.DB) *gorm.DB {
			return db.Order("signed_date ASC")
		}).
		Preload("Signatures.User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email")
		})
}

func (r *agreementRepository) Latest(ctx context.Context, teamID uuid.UUID) (*entity.TeamAgreement, error) {
	var agreement entity.TeamAgreement
	err := r.withSignatures(ctx).
		Where("team_id = ?", teamID).
		Order("created_date DESC").
		First(&agreement).Error
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

func (r *agreementRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.TeamAgreement, error) {
	var agreement entity.TeamAgreement
	if err := r.withSignatures(ctx).First(&agreement, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// CreateSigned inserts the agreement together with the author's signature.
func (r *agreementRepository) CreateSigned(ctx context.Context, agreement *entity.TeamAgreement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Signatures").Create(agreement).Error; err != nil {
			return err
		}
		signature := entity.AgreementSignature{AgreementID: agreement.ID, UserID: agreement.CreatedBy}
		if err := tx.Create(&signature).Error; err != nil {
			return err
		}
		agreement.Signatures = []entity.AgreementSignature{signature}
		return nil
	})
}

// UpdateContent only touches unlocked rows and reports whether one changed.
func (r *agreementRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.TeamAgreement{}).
		Where("id = ? AND is_locked = ?", id, false).
		Update("content", content)
	return result.RowsAffected > 0, result.Error
}

func (r *agreementRepository) Lock(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.TeamAgreement{}).
		Where("id = ? AND is_locked = ?", id, false).
		Update("is_locked", true)
	return result.RowsAffected > 0, result.Error
}

func (r *agreementRepository) HasSigned(ctx context.Context, agreementID, userID uuid.UUID) (bool, error) {
	var signature entity.AgreementSignature
	err := r.db.WithContext(ctx).
		Select("id").
		Where("agreement_id = ? AND user_id = ?", agreementID, userID).
		First(&signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *agreementRepository) CreateSignature(ctx context.Context, signature *entity.AgreementSignature) error {
	return r.db.WithContext(ctx).Create(signature).Error
}

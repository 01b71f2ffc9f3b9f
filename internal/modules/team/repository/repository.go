package repository

import (
	"context"
	"errors"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTeamFull      = errors.New("team is full")
	ErrAlreadyOnTeam = errors.New("already on a team in this class")
)

type TeamRepository interface {
	FindClass(ctx context.Context, classID uuid.UUID) (*entity.Class, error)
	FindTeam(ctx context.Context, teamID uuid.UUID) (*entity.Team, error)
	StudentRole(ctx context.Context, classID, userID uuid.UUID) (*entity.ClassRole, error)
	MembershipInClass(ctx context.Context, classID, userID uuid.UUID) (*entity.TeamMember, error)
	CountMembers(ctx context.Context, teamID uuid.UUID) (int64, error)

	CreateTeam(ctx context.Context, team *entity.Team, firstMember uuid.UUID, asStudent bool) error
	AddMember(ctx context.Context, classID, teamID, userID uuid.UUID, capacity *int) error
	RemoveMember(ctx context.Context, classID, teamID, userID uuid.UUID) (bool, error)
	MoveMember(ctx context.Context, classID, fromTeamID, toTeamID, userID uuid.UUID, capacity *int) error
	DeleteTeam(ctx context.Context, teamID uuid.UUID) error

	ListTeams(ctx context.Context, classID uuid.UUID) ([]entity.Team, error)
	FindTeamWithMembers(ctx context.Context, teamID uuid.UUID) (*entity.Team, error)
	LatestAgreement(ctx context.Context, teamID uuid.UUID) (*entity.TeamAgreement, error)
	IcebreakerResponses(ctx context.Context, teamID uuid.UUID) ([]entity.IcebreakerResponse, error)
}

type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) FindClass(ctx context.Context, classID uuid.UUID) (*entity.Class, error) {
	var class entity.Class
	if err := r.db.WithContext(ctx).First(&class, "id = ?", classID).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *teamRepository) FindTeam(ctx context.Context, teamID uuid.UUID) (*entity.Team, error) {
	var team entity.Team
	if err := r.db.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *teamRepository) StudentRole(ctx context.Context, classID, userID uuid.UUID) (*entity.ClassRole, error) {
	var role entity.ClassRole
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND user_id = ? AND role = ?", classID, userID, entity.RoleStudent).
		First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// MembershipInClass finds the user's membership in any team of the class.
func (r *teamRepository) MembershipInClass(ctx context.Context, classID, userID uuid.UUID) (*entity.TeamMember, error) {
	return membershipInClass(r.db.WithContext(ctx), classID, userID)
}

func membershipInClass(db *gorm.DB, classID, userID uuid.UUID) (*entity.TeamMember, error) {
	var member entity.TeamMember
	err := db.
		Joins("JOIN teams ON teams.id = team_members.team_id").
		Where("teams.class_id = ? AND team_members.user_id = ?", classID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *teamRepository) CountMembers(ctx context.Context, teamID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TeamMember{}).Where("team_id = ?", teamID).Count(&count).Error
	return count, err
}

// CreateTeam inserts the team with its creator as first member. A student creator is held to the
// one-team-per-class rule and gets the role pointer set.
func (r *teamRepository) CreateTeam(ctx context.Context, team *entity.Team, firstMember uuid.UUID, asStudent bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if asStudent {
			if err := lockStudentRole(tx, team.ClassID, firstMember); err != nil {
				return err
			}
			if _, err := membershipInClass(tx, team.ClassID, firstMember); err == nil {
				return ErrAlreadyOnTeam
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := tx.Create(team).Error; err != nil {
			return err
		}
		if err := tx.Create(&entity.TeamMember{TeamID: team.ID, UserID: firstMember}).Error; err != nil {
			return err
		}
		if !asStudent {
			return nil
		}
		return setTeamPointer(tx, team.ClassID, firstMember, &team.ID)
	})
}

// AddMember locks the student's role row, then the team row, so the membership check, the capacity
// check and the insert all see the same state.
func (r *teamRepository) AddMember(ctx context.Context, classID, teamID, userID uuid.UUID, capacity *int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockStudentRole(tx, classID, userID); err != nil {
			return err
		}
		if err := lockTeam(tx, teamID); err != nil {
			return err
		}
		if _, err := membershipInClass(tx, classID, userID); err == nil {
			return ErrAlreadyOnTeam
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := checkCapacity(tx, teamID, capacity); err != nil {
			return err
		}
		if err := tx.Create(&entity.TeamMember{TeamID: teamID, UserID: userID}).Error; err != nil {
			return err
		}
		return setTeamPointer(tx, classID, userID, &teamID)
	})
}

func (r *teamRepository) RemoveMember(ctx context.Context, classID, teamID, userID uuid.UUID) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockStudentRole(tx, classID, userID); err != nil {
			return err
		}
		res := tx.Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&entity.TeamMember{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		if !removed {
			return nil
		}
		return setTeamPointer(tx, classID, userID, nil)
	})
	return removed, err
}

func (r *teamRepository) MoveMember(ctx context.Context, classID, fromTeamID, toTeamID, userID uuid.UUID, capacity *int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockStudentRole(tx, classID, userID); err != nil {
			return err
		}
		if err := lockTeam(tx, toTeamID); err != nil {
			return err
		}
		if err := checkCapacity(tx, toTeamID, capacity); err != nil {
			return err
		}
		res := tx.Model(&entity.TeamMember{}).
			Where("team_id = ? AND user_id = ?", fromTeamID, userID).
			Updates(map[string]any{"team_id": toTeamID, "joined_date": gorm.Expr("NOW()")})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return setTeamPointer(tx, classID, userID, &toTeamID)
	})
}

func (r *teamRepository) DeleteTeam(ctx context.Context, teamID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.ClassRole{}).Where("team_id = ?", teamID).Update("team_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&entity.TeamMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Team{}, "id = ?", teamID).Error
	})
}

func (r *teamRepository) ListTeams(ctx context.Context, classID uuid.UUID) ([]entity.Team, error) {
	var teams []entity.Team
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_date ASC") }).
		Preload("Members.User").
		Where("class_id = ?", classID).
		Order("name ASC").
		Find(&teams).Error
	return teams, err
}

func (r *teamRepository) FindTeamWithMembers(ctx context.Context, teamID uuid.UUID) (*entity.Team, error) {
	var team entity.Team
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_date ASC") }).
		Preload("Members.User").
		First(&team, "id = ?", teamID).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *teamRepository) LatestAgreement(ctx context.Context, teamID uuid.UUID) (*entity.TeamAgreement, error) {
	var agreement entity.TeamAgreement
	err := r.db.WithContext(ctx).
		Preload("Signatures.User").
		Where("team_id = ?", teamID).
		Order("created_date DESC").
		First(&agreement).Error
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

func (r *teamRepository) IcebreakerResponses(ctx context.Context, teamID uuid.UUID) ([]entity.IcebreakerResponse, error) {
	var responses []entity.IcebreakerResponse
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Question").
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&responses).Error
	return responses, err
}

// lockStudentRole serializes membership changes per student and class. It is always taken before
// lockTeam. Users without a student role (staff on their own team) have nothing to lock.
func lockStudentRole(tx *gorm.DB, classID, userID uuid.UUID) error {
	var roles []entity.ClassRole
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("class_id = ? AND user_id = ? AND role = ?", classID, userID, entity.RoleStudent).
		Limit(1).
		Find(&roles).Error
}

func lockTeam(tx *gorm.DB, teamID uuid.UUID) error {
	var team entity.Team
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&team, "id = ?", teamID).Error
}

func checkCapacity(tx *gorm.DB, teamID uuid.UUID, capacity *int) error {
	if capacity == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&entity.TeamMember{}).Where("team_id = ?", teamID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(*capacity) {
		return ErrTeamFull
	}
	return nil
}

func setTeamPointer(tx *gorm.DB, classID, userID uuid.UUID, teamID *uuid.UUID) error {
	return tx.Model(&entity.ClassRole{}).
		Where("class_id = ? AND user_id = ? AND role = ?", classID, userID, entity.RoleStudent).
		Update("team_id", teamID).Error
}

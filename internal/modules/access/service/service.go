package service

import (
	"context"
	"slices"

	"chimu.app/backend/internal/entity"
	accessRepo "chimu.app/backend/internal/modules/access/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Checker answers role questions for every workflow. A failed lookup is reported as "not authorized".
type Checker interface {
	IsAuthorized(ctx context.Context, userID, classID uuid.UUID, allowedRoles ...string) bool
	IsTeamAuthorized(ctx context.Context, userID, teamID uuid.UUID) bool
	Roles(ctx context.Context, userID, classID uuid.UUID) ([]string, error)
}

type checker struct {
	repo accessRepo.AccessRepository
}

func NewChecker(repo accessRepo.AccessRepository) Checker {
	return &checker{repo: repo}
}

func (s *checker) IsAuthorized(ctx context.Context, userID, classID uuid.UUID, allowedRoles ...string) bool {
	roles, err := s.repo.RolesInClass(ctx, userID, classID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"class_id": classID,
		}).Warn("role lookup failed, denying access")
		return false
	}

	for _, role := range roles {
		if slices.Contains(allowedRoles, role) {
			return true
		}
	}
	return false
}

func (s *checker) IsTeamAuthorized(ctx context.Context, userID, teamID uuid.UUID) bool {
	isMember, err := s.repo.IsTeamMember(ctx, userID, teamID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"team_id": teamID,
		}).Warn("team membership lookup failed, denying access")
		return false
	}
	if isMember {
		return true
	}

	classID, err := s.repo.TeamClassID(ctx, teamID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"team_id": teamID,
		}).Warn("team lookup failed, denying access")
		return false
	}

	return s.IsAuthorized(ctx, userID, classID, entity.StaffRoles...)
}

func (s *checker) Roles(ctx context.Context, userID, classID uuid.UUID) ([]string, error) {
	return s.repo.RolesInClass(ctx, userID, classID)
}

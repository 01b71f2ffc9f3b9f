package service

import (
	"context"
	"time"

	"chimu.app/backend/internal/modules/dashboard/dto"
	dashboardRepo "chimu.app/backend/internal/modules/dashboard/repository"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
)

type DashboardService interface {
	InstructorDashboard(ctx context.Context, userID uuid.UUID, status string) (*dto.InstructorDashboard, error)
	StudentDashboard(ctx context.Context, userID uuid.UUID, status string) (*dto.StudentDashboard, error)
}

type dashboardService struct {
	repo  dashboardRepo.DashboardRepository
	views cache.ViewCache
	now   func() time.Time
}

func NewDashboardService(repo dashboardRepo.DashboardRepository, views cache.ViewCache) DashboardService {
	return &dashboardService{repo: repo, views: views, now: time.Now}
}

// matches reports whether a class with the given archive flag belongs in the status filter.
func matches(status string, archived bool) bool {
	switch status {
	case dto.StatusAll:
		return true
	case dto.StatusArchived:
		return archived
	default:
		return !archived
	}
}

func normalize(status string) string {
	switch status {
	case dto.StatusArchived, dto.StatusAll:
		return status
	default:
		return dto.StatusActive
	}
}

func (s *dashboardService) InstructorDashboard(ctx context.Context, userID uuid.UUID, status string) (*dto.InstructorDashboard, error) {
	status = normalize(status)

	var all []dto.InstructorClass
	key := cache.InstructorDashboardKey(userID)
	if !s.views.Get(ctx, key, &all) {
		classes, err := s.repo.InstructorClasses(ctx, userID)
		if err != nil {
			return nil, apperror.Internal("failed to load classes", err)
		}
		all = make([]dto.InstructorClass, 0, len(classes))
		for _, c := range classes {
			all = append(all, dto.InstructorClass{
				ID:         c.ID,
				Name:       c.Name,
				Quarter:    c.Quarter,
				Section:    c.Section,
				Year:       c.Year,
				ClassCode:  c.ClassCode,
				IsArchived: c.IsArchived,
				CreatedAt:  c.CreatedAt,
			})
		}
		s.views.Set(ctx, key, all, cache.DefaultTTL)
	}

	res := &dto.InstructorDashboard{Status: status, Classes: []dto.InstructorClass{}}
	for _, c := range all {
		if matches(status, c.IsArchived) {
			res.Classes = append(res.Classes, c)
		}
	}
	return res, nil
}

func (s *dashboardService) StudentDashboard(ctx context.Context, userID uuid.UUID, status string) (*dto.StudentDashboard, error) {
	status = normalize(status)

	var all []dto.StudentClass
	key := cache.StudentDashboardKey(userID)
	if !s.views.Get(ctx, key, &all) {
		var err error
		if all, err = s.buildStudentClasses(ctx, userID); err != nil {
			return nil, err
		}
		s.views.Set(ctx, key, all, cache.DefaultTTL)
	}

	res := &dto.StudentDashboard{Status: status, Classes: []dto.StudentClass{}}
	for _, c := range all {
		if !matches(status, c.IsArchived) {
			continue
		}
		res.Classes = append(res.Classes, c)
		res.TotalPendingSurveys += c.PendingSurveys
		res.TotalPendingIcebreakers += c.PendingIcebreakers
		res.TotalPendingAgreements += c.PendingAgreements
	}
	return res, nil
}

func (s *dashboardService) buildStudentClasses(ctx context.Context, userID uuid.UUID) ([]dto.StudentClass, error) {
	enrollments, err := s.repo.StudentEnrollments(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("failed to load enrollments", err)
	}

	classIDs := make([]uuid.UUID, 0, len(enrollments))
	var teamIDs []uuid.UUID
	for _, e := range enrollments {
		classIDs = append(classIDs, e.ClassID)
		if e.TeamID != nil {
			teamIDs = append(teamIDs, *e.TeamID)
		}
	}

	surveys, err := s.repo.PendingSurveyCounts(ctx, userID, classIDs, s.now())
	if err != nil {
		return nil, apperror.Internal("failed to count pending surveys", err)
	}
	icebreakers, err := s.repo.PendingIcebreakerCounts(ctx, userID, classIDs)
	if err != nil {
		return nil, apperror.Internal("failed to count pending icebreakers", err)
	}
	agreements, err := s.repo.UnsignedAgreementCounts(ctx, userID, teamIDs)
	if err != nil {
		return nil, apperror.Internal("failed to count pending agreements", err)
	}

	out := make([]dto.StudentClass, 0, len(enrollments))
	for _, e := range enrollments {
		item := dto.StudentClass{
			ClassID:            e.ClassID,
			Name:               e.Name,
			Quarter:            e.Quarter,
			Section:            e.Section,
			Year:               e.Year,
			IsArchived:         e.IsArchived,
			PendingSurveys:     surveys[e.ClassID],
			PendingIcebreakers: icebreakers[e.ClassID],
		}
		if e.TeamID != nil {
			item.Team = &dto.TeamRef{ID: *e.TeamID}
			if e.TeamName != nil {
				item.Team.Name = *e.TeamName
			}
			item.PendingAgreements = agreements[*e.TeamID]
		}
		out = append(out, item)
	}
	return out, nil
}

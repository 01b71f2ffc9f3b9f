package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chimu.app/backend/internal/entity"
	accessService "chimu.app/backend/internal/modules/access/service"
	notifService "chimu.app/backend/internal/modules/notification/service"
	"chimu.app/backend/internal/modules/team/dto"
	teamRepo "chimu.app/backend/internal/modules/team/repository"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	errTeamFull         = apperror.Conflict("team is full")
	errAlreadyOnTeam    = apperror.Conflict("you are already on a team in this class")
	errStudentHasTeam   = apperror.Conflict("student is already in a team within this class")
	errTeamNotInClass   = apperror.NotFound("team not found in this class")
	errStaffOnly        = apperror.Forbidden("only instructors and TAs can manage teams")
	errNotEnrolled      = apperror.Forbidden("you are not a student in this class")
	errTargetNotInClass = apperror.BadRequest("user is not a student in this class")
)

type TeamService interface {
	CreateTeam(ctx context.Context, actorID, classID uuid.UUID, name string, asInstructor bool) (*dto.TeamResponse, error)
	JoinTeam(ctx context.Context, studentID, classID, teamID uuid.UUID) error
	AddMember(ctx context.Context, actorID, teamID, studentID uuid.UUID) error
	RemoveMember(ctx context.Context, actorID, teamID, userID uuid.UUID) error
	MoveMember(ctx context.Context, actorID, fromTeamID, toTeamID, userID uuid.UUID) error
	DeleteTeam(ctx context.Context, actorID, classID, teamID uuid.UUID) error
	ListTeams(ctx context.Context, actorID, classID uuid.UUID) ([]dto.TeamResponse, error)
	GetTeam(ctx context.Context, actorID, teamID uuid.UUID) (*dto.TeamDetailResponse, error)
}

type teamService struct {
	repo     teamRepo.TeamRepository
	access   accessService.Checker
	notifier notifService.Notifier
	views    cache.ViewCache
}

func NewTeamService(repo teamRepo.TeamRepository, access accessService.Checker, notifier notifService.Notifier, views cache.ViewCache) TeamService {
	return &teamService{
		repo:     repo,
		access:   access,
		notifier: notifier,
		views:    views,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, actorID, classID uuid.UUID, name string, asInstructor bool) (*dto.TeamResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidationError("name", "Name is required")
	}

	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	if asInstructor {
		if !s.access.IsAuthorized(ctx, actorID, classID, entity.StaffRoles...) {
			return nil, errStaffOnly
		}
	} else {
		role, err := s.repo.StudentRole(ctx, classID, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errNotEnrolled
			}
			return nil, apperror.Internal("failed to load enrollment", err)
		}
		if role.TeamID != nil {
			return nil, errAlreadyOnTeam
		}
	}

	team := &entity.Team{ClassID: classID, Name: name, CreatedBy: actorID}
	if err := s.repo.CreateTeam(ctx, team, actorID, !asInstructor); err != nil {
		if errors.Is(err, teamRepo.ErrAlreadyOnTeam) {
			return nil, errAlreadyOnTeam
		}
		return nil, apperror.Internal("failed to create team", err)
	}

	s.invalidate(ctx, classID, team.ID, actorID)

	logrus.WithFields(logrus.Fields{
		"team_id":  team.ID,
		"class_id": classID,
		"actor_id": actorID,
	}).Info("team created")

	return &dto.TeamResponse{
		ID:          team.ID,
		ClassID:     classID,
		Name:        team.Name,
		MemberCount: 1,
		Capacity:    class.MaxTeamSize,
		IsFull:      class.MaxTeamSize != nil && *class.MaxTeamSize <= 1,
		Members:     []dto.MemberResponse{},
	}, nil
}

func (s *teamService) JoinTeam(ctx context.Context, studentID, classID, teamID uuid.UUID) error {
	role, err := s.repo.StudentRole(ctx, classID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotEnrolled
		}
		return apperror.Internal("failed to load enrollment", err)
	}
	if role.TeamID != nil {
		return errAlreadyOnTeam
	}

	team, err := s.teamInClass(ctx, teamID, classID)
	if err != nil {
		return err
	}
	class, err := s.loadClass(ctx, team.ClassID)
	if err != nil {
		return err
	}

	if err := s.ensureCapacity(ctx, teamID, class.MaxTeamSize); err != nil {
		return err
	}

	if err := s.repo.AddMember(ctx, classID, teamID, studentID, class.MaxTeamSize); err != nil {
		return s.mapMembershipError(err, errAlreadyOnTeam)
	}

	s.invalidate(ctx, classID, teamID, studentID)
	return nil
}

func (s *teamService) AddMember(ctx context.Context, actorID, teamID, studentID uuid.UUID) error {
	team, class, err := s.staffTeam(ctx, actorID, teamID)
	if err != nil {
		return err
	}

	if _, err := s.repo.StudentRole(ctx, class.ID, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errTargetNotInClass
		}
		return apperror.Internal("failed to load enrollment", err)
	}

	if _, err := s.repo.MembershipInClass(ctx, class.ID, studentID); err == nil {
		return errStudentHasTeam
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Internal("failed to check membership", err)
	}

	if err := s.ensureCapacity(ctx, teamID, class.MaxTeamSize); err != nil {
		return err
	}

	if err := s.repo.AddMember(ctx, class.ID, teamID, studentID, class.MaxTeamSize); err != nil {
		return s.mapMembershipError(err, errStudentHasTeam)
	}

	s.invalidate(ctx, class.ID, teamID, studentID)
	s.notifyMember(ctx, actorID, studentID, team, entity.NotificationTeamAssigned,
		fmt.Sprintf("You were added to team %s", team.Name))
	return nil
}

func (s *teamService) RemoveMember(ctx context.Context, actorID, teamID, userID uuid.UUID) error {
	team, class, err := s.staffTeam(ctx, actorID, teamID)
	if err != nil {
		return err
	}

	removed, err := s.repo.RemoveMember(ctx, class.ID, teamID, userID)
	if err != nil {
		return apperror.Internal("failed to remove member", err)
	}
	if !removed {
		return apperror.NotFound("user is not a member of this team")
	}

	s.invalidate(ctx, class.ID, teamID, userID)
	s.notifyMember(ctx, actorID, userID, team, entity.NotificationTeamRemoved,
		fmt.Sprintf("You were removed from team %s", team.Name))
	return nil
}

func (s *teamService) MoveMember(ctx context.Context, actorID, fromTeamID, toTeamID, userID uuid.UUID) error {
	if fromTeamID == toTeamID {
		return apperror.BadRequest("source and destination teams are the same")
	}

	from, class, err := s.staffTeam(ctx, actorID, fromTeamID)
	if err != nil {
		return err
	}
	to, err := s.teamInClass(ctx, toTeamID, from.ClassID)
	if err != nil {
		return err
	}

	if err := s.ensureCapacity(ctx, toTeamID, class.MaxTeamSize); err != nil {
		return err
	}

	if err := s.repo.MoveMember(ctx, class.ID, fromTeamID, toTeamID, userID, class.MaxTeamSize); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("user is not a member of the source team")
		}
		return s.mapMembershipError(err, errStudentHasTeam)
	}

	s.invalidate(ctx, class.ID, fromTeamID, userID)
	s.views.Invalidate(ctx, cache.TeamKey(toTeamID))
	s.notifyMember(ctx, actorID, userID, to, entity.NotificationTeamAssigned,
		fmt.Sprintf("You were moved to team %s", to.Name))
	return nil
}

func (s *teamService) DeleteTeam(ctx context.Context, actorID, classID, teamID uuid.UUID) error {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.StaffRoles...) {
		return errStaffOnly
	}
	team, err := s.teamInClass(ctx, teamID, classID)
	if err != nil {
		return err
	}

	members, err := s.repo.FindTeamWithMembers(ctx, teamID)
	if err != nil {
		return apperror.Internal("failed to load team", err)
	}

	if err := s.repo.DeleteTeam(ctx, team.ID); err != nil {
		return apperror.Internal("failed to delete team", err)
	}

	keys := []string{cache.ClassKey(classID), cache.TeamKey(teamID)}
	for _, m := range members.Members {
		keys = append(keys, cache.StudentDashboardKey(m.UserID))
	}
	s.views.Invalidate(ctx, keys...)

	logrus.WithFields(logrus.Fields{"team_id": teamID, "class_id": classID, "actor_id": actorID}).Info("team deleted")
	return nil
}

func (s *teamService) ListTeams(ctx context.Context, actorID, classID uuid.UUID) ([]dto.TeamResponse, error) {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.RoleInstructor, entity.RoleTA, entity.RoleStudent) {
		return nil, apperror.Forbidden("you are not a member of this class")
	}

	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	teams, err := s.repo.ListTeams(ctx, classID)
	if err != nil {
		return nil, apperror.Internal("failed to load teams", err)
	}

	out := make([]dto.TeamResponse, 0, len(teams))
	for i := range teams {
		out = append(out, toTeamResponse(&teams[i], class.MaxTeamSize))
	}
	return out, nil
}

func (s *teamService) GetTeam(ctx context.Context, actorID, teamID uuid.UUID) (*dto.TeamDetailResponse, error) {
	if !s.access.IsTeamAuthorized(ctx, actorID, teamID) {
		return nil, apperror.Forbidden("you do not have access to this team")
	}

	var cached dto.TeamDetailResponse
	if s.views.Get(ctx, cache.TeamKey(teamID), &cached) {
		return &cached, nil
	}

	team, err := s.repo.FindTeamWithMembers(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("team not found")
		}
		return nil, apperror.Internal("failed to load team", err)
	}
	class, err := s.loadClass(ctx, team.ClassID)
	if err != nil {
		return nil, err
	}

	detail := &dto.TeamDetailResponse{
		TeamResponse: toTeamResponse(team, class.MaxTeamSize),
		Icebreakers:  []dto.IcebreakerAnswer{},
	}

	agreement, err := s.repo.LatestAgreement(ctx, teamID)
	switch {
	case err == nil:
		detail.Agreement = toAgreementSummary(agreement)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperror.Internal("failed to load agreement", err)
	}

	responses, err := s.repo.IcebreakerResponses(ctx, teamID)
	if err != nil {
		return nil, apperror.Internal("failed to load icebreaker responses", err)
	}
	for _, r := range responses {
		answer := dto.IcebreakerAnswer{UserID: r.UserID, QuestionID: r.QuestionID, Response: r.Response}
		if r.User != nil {
			answer.Name = r.User.DisplayName()
		}
		if r.Question != nil {
			answer.Question = r.Question.Question
		}
		detail.Icebreakers = append(detail.Icebreakers, answer)
	}

	s.views.Set(ctx, cache.TeamKey(teamID), detail, cache.DefaultTTL)
	return detail, nil
}

func (s *teamService) loadClass(ctx context.Context, classID uuid.UUID) (*entity.Class, error) {
	class, err := s.repo.FindClass(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("class not found")
		}
		return nil, apperror.Internal("failed to load class", err)
	}
	return class, nil
}

func (s *teamService) teamInClass(ctx context.Context, teamID, classID uuid.UUID) (*entity.Team, error) {
	team, err := s.repo.FindTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errTeamNotInClass
		}
		return nil, apperror.Internal("failed to load team", err)
	}
	if team.ClassID != classID {
		return nil, errTeamNotInClass
	}
	return team, nil
}

// staffTeam loads the team and checks that the actor manages its class.
func (s *teamService) staffTeam(ctx context.Context, actorID, teamID uuid.UUID) (*entity.Team, *entity.Class, error) {
	team, err := s.repo.FindTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperror.NotFound("team not found")
		}
		return nil, nil, apperror.Internal("failed to load team", err)
	}
	if !s.access.IsAuthorized(ctx, actorID, team.ClassID, entity.StaffRoles...) {
		return nil, nil, errStaffOnly
	}
	class, err := s.loadClass(ctx, team.ClassID)
	if err != nil {
		return nil, nil, err
	}
	return team, class, nil
}

func (s *teamService) ensureCapacity(ctx context.Context, teamID uuid.UUID, capacity *int) error {
	if capacity == nil {
		return nil
	}
	count, err := s.repo.CountMembers(ctx, teamID)
	if err != nil {
		return apperror.Internal("failed to count team members", err)
	}
	if count >= int64(*capacity) {
		return errTeamFull
	}
	return nil
}

func (s *teamService) mapMembershipError(err error, duplicate error) error {
	switch {
	case errors.Is(err, teamRepo.ErrTeamFull):
		return errTeamFull
	case errors.Is(err, teamRepo.ErrAlreadyOnTeam), errors.Is(err, gorm.ErrDuplicatedKey):
		return duplicate
	default:
		return apperror.Internal("failed to update team membership", err)
	}
}

func (s *teamService) invalidate(ctx context.Context, classID, teamID, userID uuid.UUID) {
	s.views.Invalidate(ctx,
		cache.ClassKey(classID),
		cache.TeamKey(teamID),
		cache.StudentDashboardKey(userID),
	)
}

func (s *teamService) notifyMember(ctx context.Context, actorID, userID uuid.UUID, team *entity.Team, kind, message string) {
	if s.notifier == nil {
		return
	}
	actor := actorID
	s.notifier.Notify(ctx, &entity.Notification{
		UserID:     userID,
		ActorID:    &actor,
		EntityID:   team.ID,
		EntityType: "team",
		Type:       kind,
		Message:    message,
	})
}

func toTeamResponse(team *entity.Team, capacity *int) dto.TeamResponse {
	members := make([]dto.MemberResponse, 0, len(team.Members))
	for _, m := range team.Members {
		member := dto.MemberResponse{UserID: m.UserID, JoinedDate: m.JoinedDate}
		if m.User != nil {
			member.Name = m.User.DisplayName()
			member.Email = m.User.Email
			member.AvatarURL = m.User.AvatarURL
		}
		members = append(members, member)
	}

	return dto.TeamResponse{
		ID:          team.ID,
		ClassID:     team.ClassID,
		Name:        team.Name,
		MemberCount: len(members),
		Capacity:    capacity,
		IsFull:      capacity != nil && len(members) >= *capacity,
		Members:     members,
	}
}

func toAgreementSummary(a *entity.TeamAgreement) *dto.AgreementSummary {
	summary := &dto.AgreementSummary{
		ID:          a.ID,
		Content:     a.Content,
		IsLocked:    a.IsLocked,
		CreatedDate: a.CreatedDate,
		Signatures:  make([]dto.SignatureResponse, 0, len(a.Signatures)),
	}
	for _, sig := range a.Signatures {
		item := dto.SignatureResponse{UserID: sig.UserID, SignedDate: sig.SignedDate}
		if sig.User != nil {
			item.Name = sig.User.DisplayName()
		}
		summary.Signatures = append(summary.Signatures, item)
	}
	return summary
}

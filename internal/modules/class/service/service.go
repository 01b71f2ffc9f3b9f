package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"chimu.app/backend/internal/entity"
	accessService "chimu.app/backend/internal/modules/access/service"
	"chimu.app/backend/internal/modules/class/dto"
	classRepo "chimu.app/backend/internal/modules/class/repository"
	userService "chimu.app/backend/internal/modules/user/service"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"chimu.app/backend/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const joinClassAction = "join_class"

var errInvalidClassCode = apperror.NotFound("invalid class code or class is not active")

type ClassService interface {
	CreateClass(ctx context.Context, creatorID uuid.UUID, req dto.CreateClassRequest) (*dto.CreateClassResponse, error)
	ToggleArchive(ctx context.Context, actorID, classID uuid.UUID, currentStatus bool) (*dto.ToggleArchiveResponse, error)
	JoinClass(ctx context.Context, userID uuid.UUID, classCode string) (*dto.JoinClassResponse, error)
	GetClass(ctx context.Context, actorID, classID uuid.UUID) (*dto.ClassDetailResponse, error)
	ListRoster(ctx context.Context, actorID, classID uuid.UUID) ([]dto.RosterEntry, error)
}

type classService struct {
	repo        classRepo.ClassRepository
	access      accessService.Checker
	provisioner userService.Provisioner
	views       cache.ViewCache
	redisClient *redis.Client
	joinLimit   time.Duration
	newCode     func() (string, error)
}

func NewClassService(
	repo classRepo.ClassRepository,
	access accessService.Checker,
	provisioner userService.Provisioner,
	views cache.ViewCache,
	redisClient *redis.Client,
	joinLimit time.Duration,
) ClassService {
	return &classService{
		repo:        repo,
		access:      access,
		provisioner: provisioner,
		views:       views,
		redisClient: redisClient,
		joinLimit:   joinLimit,
		newCode:     GenerateClassCode,
	}
}

func (s *classService) CreateClass(ctx context.Context, creatorID uuid.UUID, req dto.CreateClassRequest) (*dto.CreateClassResponse, error) {
	class := &entity.Class{
		Name:        strings.TrimSpace(req.Name),
		Quarter:     strings.TrimSpace(req.Quarter),
		Section:     strings.TrimSpace(req.Section),
		Year:        req.Year,
		Description: strings.TrimSpace(req.Description),
		MaxTeamSize: req.MaxTeamSize,
		CreatedBy:   creatorID,
	}
	if class.Name == "" {
		return nil, apperror.NewValidationError("name", "Name is required")
	}

	if err := s.insertWithUniqueCode(ctx, class); err != nil {
		return nil, err
	}

	failed := s.invite(ctx, class.ID, req.InstructorEmails, entity.RoleInstructor)
	failed = append(failed, s.invite(ctx, class.ID, req.TAEmails, entity.RoleTA)...)

	s.views.Invalidate(ctx, cache.InstructorDashboardKey(creatorID))

	logrus.WithFields(logrus.Fields{
		"class_id":   class.ID,
		"creator_id": creatorID,
	}).Info("class created")

	return &dto.CreateClassResponse{ID: class.ID, ClassCode: class.ClassCode, FailedInvites: failed}, nil
}

// insertWithUniqueCode re-rolls the join code until it is free; the unique index settles races.
func (s *classService) insertWithUniqueCode(ctx context.Context, class *entity.Class) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return apperror.Internal("failed to generate class code", err)
		}

		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return apperror.Internal("failed to create class", err)
		}
		if exists {
			continue
		}

		class.ClassCode = code
		err = s.repo.CreateWithInstructor(ctx, class)
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			class.ID = uuid.Nil
			continue
		}
		return apperror.Internal("failed to create class", err)
	}

	return apperror.Internal("failed to create class", errors.New("no free class code after retries"))
}

func (s *classService) invite(ctx context.Context, classID uuid.UUID, emails []string, role string) []string {
	var failed []string
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		log := logrus.WithFields(logrus.Fields{"class_id": classID, "email": email, "role": role})

		user, err := s.provisioner.ProvisionByEmail(ctx, email)
		if err != nil {
			log.WithError(err).Warn("invitation skipped: could not provision user")
			failed = append(failed, email)
			continue
		}

		err = s.repo.AddRole(ctx, &entity.ClassRole{ClassID: classID, UserID: user.ID, Role: role, IsActive: true})
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			log.WithError(err).Warn("invitation skipped: could not assign role")
			failed = append(failed, email)
			continue
		}

		s.views.Invalidate(ctx, cache.InstructorDashboardKey(user.ID))
	}
	return failed
}

func (s *classService) ToggleArchive(ctx context.Context, actorID, classID uuid.UUID, currentStatus bool) (*dto.ToggleArchiveResponse, error) {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.RoleInstructor) {
		return nil, apperror.Forbidden("only instructors can archive a class")
	}

	next := !currentStatus
	changed, err := s.repo.SetArchived(ctx, classID, actorID, next)
	if err != nil {
		return nil, apperror.Internal("failed to update class", err)
	}
	if !changed {
		return nil, apperror.Forbidden("only the class creator can archive it")
	}

	s.invalidateClass(ctx, classID, actorID)

	return &dto.ToggleArchiveResponse{ID: classID, IsArchived: next}, nil
}

func (s *classService) JoinClass(ctx context.Context, userID uuid.UUID, classCode string) (*dto.JoinClassResponse, error) {
	if err := ratelimiter.Guard(ctx, s.redisClient, userID, joinClassAction, s.joinLimit); err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(classCode))
	class, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidClassCode
		}
		return nil, apperror.Internal("failed to look up class", err)
	}
	if class.IsArchived {
		return nil, errInvalidClassCode
	}

	enrolled, err := s.repo.HasAnyRole(ctx, class.ID, userID)
	if err != nil {
		return nil, apperror.Internal("failed to check enrollment", err)
	}
	if enrolled {
		return nil, apperror.Conflict("you are already enrolled in this class")
	}

	err = s.repo.AddRole(ctx, &entity.ClassRole{ClassID: class.ID, UserID: userID, Role: entity.RoleStudent, IsActive: true})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("you are already enrolled in this class")
		}
		return nil, apperror.Internal("failed to join class", err)
	}

	s.views.Invalidate(ctx, cache.StudentDashboardKey(userID), cache.ClassKey(class.ID))

	return &dto.JoinClassResponse{ClassID: class.ID, ClassName: class.Name}, nil
}

func (s *classService) GetClass(ctx context.Context, actorID, classID uuid.UUID) (*dto.ClassDetailResponse, error) {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.RoleInstructor, entity.RoleTA, entity.RoleStudent) {
		return nil, apperror.Forbidden("you are not a member of this class")
	}

	var cached dto.ClassDetailResponse
	if s.views.Get(ctx, cache.ClassKey(classID), &cached) {
		return &cached, nil
	}

	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("class not found")
		}
		return nil, apperror.Internal("failed to load class", err)
	}

	teams, err := s.repo.TeamSummaries(ctx, classID)
	if err != nil {
		return nil, apperror.Internal("failed to load teams", err)
	}
	if teams == nil {
		teams = []dto.TeamSummary{}
	}

	detail := &dto.ClassDetailResponse{
		ID:          class.ID,
		Name:        class.Name,
		Quarter:     class.Quarter,
		Section:     class.Section,
		Year:        class.Year,
		Description: class.Description,
		MaxTeamSize: class.MaxTeamSize,
		ClassCode:   class.ClassCode,
		IsArchived:  class.IsArchived,
		CreatedBy:   class.CreatedBy,
		CreatedAt:   class.CreatedAt,
		Teams:       teams,
	}
	s.views.Set(ctx, cache.ClassKey(classID), detail, cache.DefaultTTL)

	return detail, nil
}

func (s *classService) ListRoster(ctx context.Context, actorID, classID uuid.UUID) ([]dto.RosterEntry, error) {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.StaffRoles...) {
		return nil, apperror.Forbidden("only instructors and TAs can view the roster")
	}

	roles, err := s.repo.Roster(ctx, classID)
	if err != nil {
		return nil, apperror.Internal("failed to load roster", err)
	}

	roster := make([]dto.RosterEntry, 0, len(roles))
	for _, r := range roles {
		entry := dto.RosterEntry{UserID: r.UserID, Role: r.Role, TeamID: r.TeamID}
		if r.User != nil {
			entry.Name = r.User.Name
			entry.Email = r.User.Email
		}
		if r.Team != nil {
			entry.TeamName = &r.Team.Name
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

func (s *classService) invalidateClass(ctx context.Context, classID, actorID uuid.UUID) {
	keys := []string{cache.ClassKey(classID), cache.InstructorDashboardKey(actorID)}

	members, err := s.repo.MemberIDs(ctx, classID, "")
	if err != nil {
		logrus.WithError(err).WithField("class_id", classID).Warn("could not list class members for cache invalidation")
	}
	for _, id := range members {
		keys = append(keys, cache.StudentDashboardKey(id), cache.InstructorDashboardKey(id))
	}

	s.views.Invalidate(ctx, keys...)
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"chimu.app/backend/internal/entity"
	accessService "chimu.app/backend/internal/modules/access/service"
	"chimu.app/backend/internal/modules/icebreaker/dto"
	icebreakerRepo "chimu.app/backend/internal/modules/icebreaker/repository"
	searchService "chimu.app/backend/internal/modules/search/service"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultSearchLimit = 20

var errAlreadyLinked = apperror.Conflict("this question is already added to this class")

type IcebreakerService interface {
	AddQuestion(ctx context.Context, actorID, classID uuid.UUID, req dto.AddQuestionRequest) (*dto.QuestionResponse, error)
	RemoveQuestion(ctx context.Context, actorID, classID, questionID uuid.UUID) error
	ListClassQuestions(ctx context.Context, actorID, classID uuid.UUID) ([]dto.QuestionResponse, error)
	SearchCatalog(ctx context.Context, query dto.SearchQuery) ([]dto.QuestionResponse, error)
	SubmitResponse(ctx context.Context, userID, teamID uuid.UUID, req dto.SubmitAnswerRequest) (*dto.AnswerResponse, error)
}

type icebreakerService struct {
	repo   icebreakerRepo.IcebreakerRepository
	access accessService.Checker
	index  searchService.CatalogIndex
	views  cache.ViewCache
	now    func() time.Time
}

func NewIcebreakerService(repo icebreakerRepo.IcebreakerRepository, access accessService.Checker, index searchService.CatalogIndex, views cache.ViewCache) IcebreakerService {
	return &icebreakerService{
		repo:   repo,
		access: access,
		index:  index,
		views:  views,
		now:    time.Now,
	}
}

func (s *icebreakerService) AddQuestion(ctx context.Context, actorID, classID uuid.UUID, req dto.AddQuestionRequest) (*dto.QuestionResponse, error) {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.StaffRoles...) {
		return nil, apperror.Forbidden("you are not authorized to manage icebreaker questions for this class")
	}

	text := strings.TrimSpace(req.Question)
	if text == "" {
		return nil, apperror.NewValidationError("question", "Question text is required")
	}

	question, err := s.findOrCreateQuestion(ctx, text, req.Category)
	if err != nil {
		return nil, err
	}

	linked, err := s.repo.IsLinked(ctx, classID, question.ID)
	if err != nil {
		return nil, apperror.Internal("failed to add icebreaker question", err)
	}
	if linked {
		return nil, errAlreadyLinked
	}
	if err := s.repo.LinkQuestion(ctx, classID, question.ID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errAlreadyLinked
		}
		return nil, apperror.Internal("failed to link icebreaker question to class", err)
	}

	s.invalidateClass(ctx, classID)
	return toQuestionResponse(question), nil
}

func (s *icebreakerService) findOrCreateQuestion(ctx context.Context, text string, category *string) (*entity.IcebreakerQuestion, error) {
	existing, err := s.repo.FindQuestionByText(ctx, text)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Internal("failed to add icebreaker question", err)
	}

	if category != nil {
		if c := strings.TrimSpace(*category); c != "" {
			category = &c
		} else {
			category = nil
		}
	}
	question := &entity.IcebreakerQuestion{Question: text, Category: category}
	if err := s.repo.CreateQuestion(ctx, question); err != nil {
		// another staff member created the same text concurrently
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := s.repo.FindQuestionByText(ctx, text); findErr == nil {
				return existing, nil
			}
		}
		return nil, apperror.Internal("failed to add icebreaker question", err)
	}

	if err := s.index.IndexQuestions(ctx, *question); err != nil {
		logrus.WithError(err).WithField("question_id", question.ID).Warn("failed to index icebreaker question")
	}
	return question, nil
}

func (s *icebreakerService) RemoveQuestion(ctx context.Context, actorID, classID, questionID uuid.UUID) error {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.StaffRoles...) {
		return apperror.Forbidden("you are not authorized to remove icebreaker questions from this class")
	}

	removed, err := s.repo.UnlinkQuestion(ctx, classID, questionID)
	if err != nil {
		return apperror.Internal("failed to remove icebreaker question from class", err)
	}
	if !removed {
		return apperror.NotFound("question is not part of this class")
	}

	s.invalidateClass(ctx, classID)
	return nil
}

func (s *icebreakerService) ListClassQuestions(ctx context.Context, actorID, classID uuid.UUID) ([]dto.QuestionResponse, error) {
	roles, err := s.access.Roles(ctx, actorID, classID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": actorID, "class_id": classID}).Warn("role lookup failed, denying access")
	}
	if err != nil || len(roles) == 0 {
		return nil, apperror.Forbidden("you are not a member of this class")
	}

	questions, err := s.repo.ClassQuestions(ctx, classID)
	if err != nil {
		return nil, apperror.Internal("failed to load icebreaker questions", err)
	}
	return toQuestionResponses(questions), nil
}

func (s *icebreakerService) SearchCatalog(ctx context.Context, query dto.SearchQuery) ([]dto.QuestionResponse, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	text := strings.TrimSpace(query.Query)
	category := strings.TrimSpace(query.Category)

	ids, err := s.index.SearchQuestions(ctx, text, category, limit)
	if err == nil {
		questions, err := s.repo.FindQuestionsByIDs(ctx, ids)
		if err != nil {
			return nil, apperror.Internal("failed to load icebreaker questions", err)
		}
		return toQuestionResponses(inOrder(ids, questions)), nil
	}
	if !errors.Is(err, searchService.ErrDisabled) {
		logrus.WithError(err).Warn("icebreaker search index unavailable, using database")
	}

	questions, err := s.repo.SearchQuestions(ctx, text, category, limit)
	if err != nil {
		return nil, apperror.Internal("failed to search icebreaker questions", err)
	}
	return toQuestionResponses(questions), nil
}

func (s *icebreakerService) SubmitResponse(ctx context.Context, userID, teamID uuid.UUID, req dto.SubmitAnswerRequest) (*dto.AnswerResponse, error) {
	isMember, err := s.repo.IsTeamMember(ctx, userID, teamID)
	if err != nil {
		return nil, apperror.Internal("failed to check team membership", err)
	}
	if !isMember {
		return nil, apperror.Forbidden("only team members can answer icebreakers")
	}

	classID, err := s.repo.TeamClassID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("team not found")
		}
		return nil, apperror.Internal("failed to load team", err)
	}

	linked, err := s.repo.IsLinked(ctx, classID, req.QuestionID)
	if err != nil {
		return nil, apperror.Internal("failed to load icebreaker question", err)
	}
	if !linked {
		return nil, apperror.NotFound("question is not part of this class")
	}

	answer := strings.TrimSpace(req.Response)
	if answer == "" {
		return nil, apperror.NewValidationError("response", "Response is required")
	}

	row := &entity.IcebreakerResponse{
		UserID:      userID,
		TeamID:      teamID,
		QuestionID:  req.QuestionID,
		Response:    answer,
		IsCompleted: true,
		UpdatedAt:   s.now(),
	}
	if err := s.repo.UpsertResponse(ctx, row); err != nil {
		return nil, apperror.Internal("failed to save icebreaker response", err)
	}

	s.views.Invalidate(ctx, cache.TeamKey(teamID), cache.StudentDashboardKey(userID))
	return &dto.AnswerResponse{
		TeamID:     teamID,
		QuestionID: req.QuestionID,
		Response:   answer,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (s *icebreakerService) invalidateClass(ctx context.Context, classID uuid.UUID) {
	keys := []string{cache.ClassKey(classID)}
	students, err := s.repo.StudentIDs(ctx, classID)
	if err != nil {
		logrus.WithError(err).WithField("class_id", classID).Warn("could not list students for cache invalidation")
	}
	s.views.Invalidate(ctx, append(keys, cache.StudentDashboardKeys(students)...)...)
}

func inOrder(ids []uuid.UUID, questions []entity.IcebreakerQuestion) []entity.IcebreakerQuestion {
	byID := make(map[uuid.UUID]entity.IcebreakerQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]entity.IcebreakerQuestion, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out
}

func toQuestionResponse(q *entity.IcebreakerQuestion) *dto.QuestionResponse {
	return &dto.QuestionResponse{ID: q.ID, Question: q.Question, Category: q.Category}
}

func toQuestionResponses(questions []entity.IcebreakerQuestion) []dto.QuestionResponse {
	out := make([]dto.QuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, *toQuestionResponse(&questions[i]))
	}
	return out
}

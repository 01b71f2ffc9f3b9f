package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chimu.app/backend/internal/entity"
	accessService "chimu.app/backend/internal/modules/access/service"
	notifService "chimu.app/backend/internal/modules/notification/service"
	"chimu.app/backend/internal/modules/survey/dto"
	surveyRepo "chimu.app/backend/internal/modules/survey/repository"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	likertMin = "1"
	likertMax = "5"

	reminderWindow = 24 * time.Hour
)

var errAlreadyResponded = apperror.Conflict("you have already responded to this survey")

type SurveyService interface {
	CreateSurvey(ctx context.Context, actorID, classID uuid.UUID, req dto.CreateSurveyRequest) (*dto.SurveyResponse, error)
	SubmitResponse(ctx context.Context, userID, surveyID uuid.UUID, req dto.SubmitResponseRequest) error
	ListSurveys(ctx context.Context, actorID, classID uuid.UUID) ([]dto.SurveyResponse, error)
	SendReminders(ctx context.Context) (int, error)
	SendReleaseNotices(ctx context.Context) (int, error)
}

type surveyService struct {
	repo     surveyRepo.SurveyRepository
	access   accessService.Checker
	notifier notifService.Notifier
	views    cache.ViewCache
	now      func() time.Time
}

func NewSurveyService(repo surveyRepo.SurveyRepository, access accessService.Checker, notifier notifService.Notifier, views cache.ViewCache) SurveyService {
	return &surveyService{
		repo:     repo,
		access:   access,
		notifier: notifier,
		views:    views,
		now:      time.Now,
	}
}

func (s *surveyService) CreateSurvey(ctx context.Context, actorID, classID uuid.UUID, req dto.CreateSurveyRequest) (*dto.SurveyResponse, error) {
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.RoleInstructor) {
		return nil, apperror.Forbidden("only instructors can create surveys")
	}

	if req.DueDate.Before(req.ReleaseDate) {
		return nil, apperror.NewValidationError("due_date", "Due date must not be before Release date")
	}

	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	survey := &entity.Survey{
		ClassID:   classID,
		CreatedBy: actorID,
		SentDate:  req.ReleaseDate.UTC(),
		DueDate:   req.DueDate.UTC(),
		Questions: questions,
	}
	// future releases are announced by the release job
	now := s.now()
	released := !now.Before(survey.SentDate)
	if released {
		survey.ReleaseNotifiedAt = &now
	}
	if err := s.repo.Create(ctx, survey); err != nil {
		return nil, apperror.Internal("failed to create survey", err)
	}

	students, err := s.repo.StudentIDs(ctx, classID)
	if err != nil {
		logrus.WithError(err).WithField("class_id", classID).Warn("could not list students for survey notification")
	}
	s.views.Invalidate(ctx, cache.StudentDashboardKeys(students)...)
	if released {
		s.notifyStudents(ctx, actorID, survey, students)
	}

	return s.toResponse(survey, nil, nil), nil
}

func buildQuestions(input []dto.QuestionInput) ([]entity.SurveyQuestion, error) {
	if len(input) == 0 {
		return entity.DefaultPulseQuestions(), nil
	}

	verr := &apperror.ValidationError{}
	questions := make([]entity.SurveyQuestion, 0, len(input))
	for i, q := range input {
		text := strings.TrimSpace(q.QuestionText)
		if text == "" {
			verr.Add("questions", fmt.Sprintf("Question %d text is required", i+1))
		}
		kind := q.Type
		if kind == "" {
			kind = entity.QuestionTypeLikert
		}
		if kind != entity.QuestionTypeLikert {
			verr.Add("questions", fmt.Sprintf("Question %d type must be likert", i+1))
		}
		questions = append(questions, entity.SurveyQuestion{QuestionText: text, Type: kind})
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return questions, nil
}

func (s *surveyService) SubmitResponse(ctx context.Context, userID, surveyID uuid.UUID, req dto.SubmitResponseRequest) error {
	survey, err := s.repo.FindByID(ctx, surveyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("survey not found")
		}
		return apperror.Internal("failed to load survey", err)
	}

	role, err := s.repo.StudentRole(ctx, survey.ClassID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Forbidden("only students of this class can respond")
		}
		return apperror.Internal("failed to load enrollment", err)
	}
	if role.TeamID == nil || *role.TeamID != req.TeamID {
		return apperror.Forbidden("you can only respond for your own team")
	}

	now := s.now()
	if now.Before(survey.SentDate) {
		return apperror.BadRequest("this survey has not been released yet")
	}
	if now.After(survey.DueDate) {
		return apperror.BadRequest("this survey is past its due date")
	}

	if err := validateAnswers(survey.Questions, req.Answers); err != nil {
		return err
	}

	responded, err := s.repo.HasResponded(ctx, surveyID, userID)
	if err != nil {
		return apperror.Internal("failed to check previous responses", err)
	}
	if responded {
		return errAlreadyResponded
	}

	err = s.repo.CreateResponse(ctx, &entity.Response{
		SurveyID: surveyID,
		UserID:   userID,
		TeamID:   req.TeamID,
		Answers:  req.Answers,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errAlreadyResponded
		}
		return apperror.Internal("failed to submit response", err)
	}

	s.views.Invalidate(ctx, cache.StudentDashboardKey(userID), cache.TeamKey(req.TeamID))
	return nil
}

func validateAnswers(questions []entity.SurveyQuestion, answers []string) error {
	if len(answers) != len(questions) {
		return apperror.NewValidationError("answers", fmt.Sprintf("Expected %d answers, got %d", len(questions), len(answers)))
	}
	verr := &apperror.ValidationError{}
	for i, a := range answers {
		if len(a) != 1 || a < likertMin || a > likertMax {
			verr.Add("answers", fmt.Sprintf("Answer %d must be between %s and %s", i+1, likertMin, likertMax))
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (s *surveyService) ListSurveys(ctx context.Context, actorID, classID uuid.UUID) ([]dto.SurveyResponse, error) {
	roles, err := s.access.Roles(ctx, actorID, classID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": actorID, "class_id": classID}).Warn("role lookup failed, denying access")
		return nil, apperror.Forbidden("you are not a member of this class")
	}

	isStaff, isStudent := false, false
	for _, r := range roles {
		isStaff = isStaff || entity.IsStaffRole(r)
		isStudent = isStudent || r == entity.RoleStudent
	}
	if !isStaff && !isStudent {
		return nil, apperror.Forbidden("you are not a member of this class")
	}

	var releasedBefore *time.Time
	if !isStaff {
		now := s.now()
		releasedBefore = &now
	}

	surveys, err := s.repo.ListByClass(ctx, classID, releasedBefore)
	if err != nil {
		return nil, apperror.Internal("failed to load surveys", err)
	}

	ids := make([]uuid.UUID, len(surveys))
	for i, sv := range surveys {
		ids[i] = sv.ID
	}

	var responded map[uuid.UUID]bool
	var counts map[uuid.UUID]int64
	if isStaff {
		if counts, err = s.repo.ResponseCounts(ctx, ids); err != nil {
			return nil, apperror.Internal("failed to count responses", err)
		}
	} else {
		if responded, err = s.repo.RespondedSurveyIDs(ctx, actorID, ids); err != nil {
			return nil, apperror.Internal("failed to load responses", err)
		}
	}

	out := make([]dto.SurveyResponse, 0, len(surveys))
	for i := range surveys {
		out = append(out, *s.toResponse(&surveys[i], responded, counts))
	}
	return out, nil
}

// SendReminders notifies students who have not answered a survey closing within the next day.
func (s *surveyService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	pending, err := s.repo.PendingReminders(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return 0, fmt.Errorf("load pending survey reminders: %w", err)
	}
	if len(pending) == 0 || s.notifier == nil {
		return len(pending), nil
	}

	notifications := make([]*entity.Notification, 0, len(pending))
	for _, p := range pending {
		notifications = append(notifications, &entity.Notification{
			UserID:     p.UserID,
			EntityID:   p.SurveyID,
			EntityType: "survey",
			Type:       entity.NotificationSurveyReminder,
			Message:    fmt.Sprintf("A pulse survey is due %s", p.DueDate.UTC().Format("Mon Jan 2 15:04 MST")),
		})
	}
	s.notifier.Notify(ctx, notifications...)

	return len(notifications), nil
}

// SendReleaseNotices announces surveys whose release date has passed since they were created.
// Each survey is claimed before notifying, so overlapping runs announce it once.
func (s *surveyService) SendReleaseNotices(ctx context.Context) (int, error) {
	now := s.now()
	surveys, err := s.repo.UnannouncedReleases(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load unannounced surveys: %w", err)
	}

	sent := 0
	for i := range surveys {
		survey := &surveys[i]
		log := logrus.WithFields(logrus.Fields{"survey_id": survey.ID, "class_id": survey.ClassID})

		claimed, err := s.repo.MarkReleaseNotified(ctx, survey.ID, now)
		if err != nil {
			log.WithError(err).Warn("could not mark survey release as announced")
			continue
		}
		if !claimed {
			continue
		}

		students, err := s.repo.StudentIDs(ctx, survey.ClassID)
		if err != nil {
			log.WithError(err).Warn("could not list students for survey release")
			continue
		}
		s.views.Invalidate(ctx, cache.StudentDashboardKeys(students)...)
		s.notifyStudents(ctx, survey.CreatedBy, survey, students)
		sent += len(students)
	}
	return sent, nil
}

func (s *surveyService) notifyStudents(ctx context.Context, actorID uuid.UUID, survey *entity.Survey, students []uuid.UUID) {
	if s.notifier == nil || len(students) == 0 {
		return
	}
	actor := actorID
	notifications := make([]*entity.Notification, 0, len(students))
	for _, id := range students {
		notifications = append(notifications, &entity.Notification{
			UserID:     id,
			ActorID:    &actor,
			EntityID:   survey.ID,
			EntityType: "survey",
			Type:       entity.NotificationSurveyReleased,
			Message:    "A new pulse survey is available",
		})
	}
	s.notifier.Notify(ctx, notifications...)
}

func (s *surveyService) toResponse(survey *entity.Survey, responded map[uuid.UUID]bool, counts map[uuid.UUID]int64) *dto.SurveyResponse {
	now := s.now()
	out := &dto.SurveyResponse{
		ID:        survey.ID,
		ClassID:   survey.ClassID,
		SentDate:  survey.SentDate,
		DueDate:   survey.DueDate,
		Questions: survey.Questions,
		IsOpen:    !now.Before(survey.SentDate) && !now.After(survey.DueDate),
	}
	if responded != nil {
		r := responded[survey.ID]
		out.Responded = &r
	}
	if counts != nil {
		c := counts[survey.ID]
		out.ResponseCount = &c
	}
	return out
}

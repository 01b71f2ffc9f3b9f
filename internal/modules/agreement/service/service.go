package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"chimu.app/backend/internal/entity"
	accessService "chimu.app/backend/internal/modules/access/service"
	"chimu.app/backend/internal/modules/agreement/dto"
	agreementRepo "chimu.app/backend/internal/modules/agreement/repository"
	notifService "chimu.app/backend/internal/modules/notification/service"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const minContentLength = 10

var (
	errLocked        = apperror.Conflict("this agreement is locked and cannot be updated")
	errAlreadySigned = apperror.Conflict("you have already signed this agreement")
	errAlreadyLocked = apperror.Conflict("this agreement is already locked")
	errNotAuthorized = apperror.Forbidden("you are not authorized to manage team agreements for this team")
	errNoAgreement   = apperror.NotFound("agreement not found")
)

type AgreementService interface {
	// Save creates the team's agreement or updates the living one; created reports which happened.
	Save(ctx context.Context, actorID, teamID uuid.UUID, req dto.SaveAgreementRequest) (res *dto.AgreementResponse, created bool, err error)
	Sign(ctx context.Context, actorID, teamID, agreementID uuid.UUID) (*dto.AgreementResponse, error)
	Lock(ctx context.Context, actorID, teamID, agreementID uuid.UUID) (*dto.AgreementResponse, error)
	Get(ctx context.Context, actorID, teamID uuid.UUID) (*dto.AgreementResponse, error)
}

type agreementService struct {
	repo      agreementRepo.AgreementRepository
	access    accessService.Checker
	notifier  notifService.Notifier
	views     cache.ViewCache
	sanitizer *bluemonday.Policy
}

func NewAgreementService(repo agreementRepo.AgreementRepository, access accessService.Checker, notifier notifService.Notifier, views cache.ViewCache) AgreementService {
	return &agreementService{
		repo:      repo,
		access:    access,
		notifier:  notifier,
		views:     views,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

func (s *agreementService) Save(ctx context.Context, actorID, teamID uuid.UUID, req dto.SaveAgreementRequest) (*dto.AgreementResponse, bool, error) {
	if !s.access.IsTeamAuthorized(ctx, actorID, teamID) {
		return nil, false, errNotAuthorized
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if utf8.RuneCountInString(content) < minContentLength {
		return nil, false, apperror.NewValidationError("content", "Agreement content must be at least 10 characters")
	}

	target := req.AgreementID
	if target == nil {
		latest, err := s.repo.Latest(ctx, teamID)
		switch {
		case err == nil:
			target = &latest.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, false, apperror.Internal("failed to load team agreement", err)
		}
	}

	if target == nil {
		res, err := s.create(ctx, actorID, teamID, content)
		return res, err == nil, err
	}

	res, err := s.update(ctx, actorID, teamID, *target, content)
	return res, false, err
}

func (s *agreementService) create(ctx context.Context, actorID, teamID uuid.UUID, content string) (*dto.AgreementResponse, error) {
	agreement := &entity.TeamAgreement{
		TeamID:    teamID,
		Content:   content,
		CreatedBy: actorID,
	}
	if err := s.repo.CreateSigned(ctx, agreement); err != nil {
		return nil, apperror.Internal("failed to create team agreement", err)
	}

	members := s.invalidate(ctx, teamID)
	s.notifyCreated(ctx, actorID, agreement, members)

	return s.reload(ctx, actorID, agreement.ID)
}

func (s *agreementService) update(ctx context.Context, actorID, teamID, agreementID uuid.UUID, content string) (*dto.AgreementResponse, error) {
	agreement, err := s.findForTeam(ctx, teamID, agreementID)
	if err != nil {
		return nil, err
	}
	if agreement.IsLocked {
		return nil, errLocked
	}

	updated, err := s.repo.UpdateContent(ctx, agreementID, content)
	if err != nil {
		return nil, apperror.Internal("failed to update team agreement", err)
	}
	if !updated {
		return nil, errLocked
	}

	s.invalidate(ctx, teamID)
	return s.reload(ctx, actorID, agreementID)
}

func (s *agreementService) Sign(ctx context.Context, actorID, teamID, agreementID uuid.UUID) (*dto.AgreementResponse, error) {
	if !s.access.IsTeamAuthorized(ctx, actorID, teamID) {
		return nil, apperror.Forbidden("you are not authorized to sign team agreements for this team")
	}
	if _, err := s.findForTeam(ctx, teamID, agreementID); err != nil {
		return nil, err
	}

	signed, err := s.repo.HasSigned(ctx, agreementID, actorID)
	if err != nil {
		return nil, apperror.Internal("failed to check signature", err)
	}
	if signed {
		return nil, errAlreadySigned
	}

	if err := s.repo.CreateSignature(ctx, &entity.AgreementSignature{AgreementID: agreementID, UserID: actorID}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errAlreadySigned
		}
		return nil, apperror.Internal("failed to sign team agreement", err)
	}

	s.invalidate(ctx, teamID)
	return s.reload(ctx, actorID, agreementID)
}

func (s *agreementService) Lock(ctx context.Context, actorID, teamID, agreementID uuid.UUID) (*dto.AgreementResponse, error) {
	classID, err := s.repo.TeamClassID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("team not found")
		}
		return nil, apperror.Internal("failed to load team", err)
	}
	if !s.access.IsAuthorized(ctx, actorID, classID, entity.StaffRoles...) {
		return nil, apperror.Forbidden("only instructors and TAs can lock agreements")
	}

	agreement, err := s.findForTeam(ctx, teamID, agreementID)
	if err != nil {
		return nil, err
	}
	if agreement.IsLocked {
		return nil, errAlreadyLocked
	}

	locked, err := s.repo.Lock(ctx, agreementID)
	if err != nil {
		return nil, apperror.Internal("failed to lock team agreement", err)
	}
	if !locked {
		return nil, errAlreadyLocked
	}

	logrus.WithFields(logrus.Fields{"agreement_id": agreementID, "actor_id": actorID}).Info("team agreement locked")
	s.invalidate(ctx, teamID)
	return s.reload(ctx, actorID, agreementID)
}

func (s *agreementService) Get(ctx context.Context, actorID, teamID uuid.UUID) (*dto.AgreementResponse, error) {
	if !s.access.IsTeamAuthorized(ctx, actorID, teamID) {
		return nil, apperror.Forbidden("you are not allowed to view this team")
	}

	agreement, err := s.repo.Latest(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("this team has no agreement yet")
		}
		return nil, apperror.Internal("failed to load team agreement", err)
	}
	return toResponse(agreement, actorID), nil
}

func (s *agreementService) findForTeam(ctx context.Context, teamID, agreementID uuid.UUID) (*entity.TeamAgreement, error) {
	agreement, err := s.repo.FindByID(ctx, agreementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNoAgreement
		}
		return nil, apperror.Internal("failed to load team agreement", err)
	}
	if agreement.TeamID != teamID {
		return nil, errNoAgreement
	}
	return agreement, nil
}

func (s *agreementService) reload(ctx context.Context, actorID, agreementID uuid.UUID) (*dto.AgreementResponse, error) {
	agreement, err := s.repo.FindByID(ctx, agreementID)
	if err != nil {
		return nil, apperror.Internal("failed to load team agreement", err)
	}
	return toResponse(agreement, actorID), nil
}

// invalidate drops cached team and member dashboard views and returns the member ids it found.
func (s *agreementService) invalidate(ctx context.Context, teamID uuid.UUID) []uuid.UUID {
	members, err := s.repo.MemberIDs(ctx, teamID)
	if err != nil {
		logrus.WithError(err).WithField("team_id", teamID).Warn("could not list team members for cache invalidation")
	}
	s.views.Invalidate(ctx, append([]string{cache.TeamKey(teamID)}, cache.StudentDashboardKeys(members)...)...)
	return members
}

func (s *agreementService) notifyCreated(ctx context.Context, actorID uuid.UUID, agreement *entity.TeamAgreement, members []uuid.UUID) {
	if s.notifier == nil {
		return
	}
	actor := actorID
	var notifications []*entity.Notification
	for _, id := range members {
		if id == actorID {
			continue
		}
		notifications = append(notifications, &entity.Notification{
			UserID:     id,
			ActorID:    &actor,
			EntityID:   agreement.ID,
			EntityType: "team_agreement",
			Type:       entity.NotificationAgreementCreated,
			Message:    "Your team drafted an agreement. Review and sign it.",
		})
	}
	if len(notifications) > 0 {
		s.notifier.Notify(ctx, notifications...)
	}
}

func toResponse(a *entity.TeamAgreement, viewerID uuid.UUID) *dto.AgreementResponse {
	res := &dto.AgreementResponse{
		ID:          a.ID,
		TeamID:      a.TeamID,
		Content:     a.Content,
		CreatedBy:   a.CreatedBy,
		CreatedDate: a.CreatedDate,
		UpdatedAt:   a.UpdatedAt,
		IsLocked:    a.IsLocked,
		Signatures:  make([]dto.SignatureResponse, 0, len(a.Signatures)),
	}
	for _, sig := range a.Signatures {
		item := dto.SignatureResponse{UserID: sig.UserID, SignedDate: sig.SignedDate}
		if sig.User != nil {
			item.Name = sig.User.DisplayName()
		}
		res.Signatures = append(res.Signatures, item)
		if sig.UserID == viewerID {
			res.SignedByMe = true
		}
	}
	return res
}

package service

import (
	"context"
	"encoding/json"
	"fmt"

	"chimu.app/backend/internal/entity"
	notifRepo "chimu.app/backend/internal/modules/notification/repository"
	"chimu.app/backend/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notifier is what workflows use to tell users something happened. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, notifications ...*entity.Notification)
}

type NotificationService interface {
	Notifier
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
	}
}

// Channel is the Redis pub/sub channel a user's websocket listens on.
func Channel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

func (s *notificationService) Notify(ctx context.Context, notifications ...*entity.Notification) {
	if len(notifications) == 0 {
		return
	}

	if err := s.repo.CreateBatch(ctx, notifications); err != nil {
		logrus.WithError(err).WithField("count", len(notifications)).Error("failed to store notifications")
		return
	}

	if s.redisClient == nil {
		return
	}
	for _, n := range notifications {
		payload, err := json.Marshal(n)
		if err != nil {
			continue
		}
		if err := s.redisClient.Publish(ctx, Channel(n.UserID), payload).Err(); err != nil {
			logrus.WithError(err).WithField("user_id", n.UserID).Warn("failed to publish notification")
		}
	}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	found, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return apperror.Internal("failed to update notification", err)
	}
	if !found {
		return apperror.NotFound("notification not found")
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

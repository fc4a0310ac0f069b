package service

import (
	"context"
	"encoding/json"
	"errors"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/pubsub"
	"kairos/fitness-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// --- Service Interface ---

// NotificationService persists notification records and best-effort pushes
// them to any live connection for the recipient. Durability always precedes
// delivery: the row is written first, and a publish failure never rolls it
// back because the pull API remains the fallback.
type NotificationService interface {
	// Notify is the single entry point used by all typed helpers. Returns
	// the created notification's ID.
	Notify(ctx context.Context, userID primitive.ObjectID, nType domain.NotificationType, title, message string, payload domain.Payload) (primitive.ObjectID, error)

	NotifyWorkoutAssigned(ctx context.Context, userID primitive.ObjectID, payload domain.WorkoutAssignmentPayload) (primitive.ObjectID, error)
	NotifyNutritionPlanAssigned(ctx context.Context, userID primitive.ObjectID, payload domain.NutritionAssignmentPayload) (primitive.ObjectID, error)
	NotifyAchievement(ctx context.Context, userID primitive.ObjectID, title, message string, payload domain.AchievementPayload) (primitive.ObjectID, error)
	NotifyReminder(ctx context.Context, userID primitive.ObjectID, title, message string, payload domain.ReminderPayload) (primitive.ObjectID, error)

	// GetNotifications is the pull-based retrieval API, newest first.
	GetNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	// MarkRead flips the read flag once; marking again is a no-op success.
	MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// --- Service Implementation ---

type notificationService struct {
	notificationRepo repository.NotificationRepository
	broker           pubsub.Broker
	logger           *zap.Logger
}

// NewNotificationService creates a new instance of notificationService.
func NewNotificationService(notificationRepo repository.NotificationRepository, broker pubsub.Broker, logger *zap.Logger) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		broker:           broker,
		logger:           logger,
	}
}

// Notify persists the notification, then publishes it on the recipient's
// channel. The publish is fire-and-forget: a broker failure is logged and
// swallowed because the record is already durable and reachable via pull.
func (s *notificationService) Notify(ctx context.Context, userID primitive.ObjectID, nType domain.NotificationType, title, message string, payload domain.Payload) (primitive.ObjectID, error) {
	notification, err := domain.NewNotification(userID, nType, title, message, payload)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id, err := s.notificationRepo.Create(ctx, notification)
	if err != nil {
		return primitive.NilObjectID, err
	}

	event := domain.EventFromNotification(notification)
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode notification event",
			zap.String("notificationId", id.Hex()),
			zap.Error(err))
		return id, nil
	}
	if err := s.broker.Publish(ctx, pubsub.UserChannel(userID.Hex()), data); err != nil {
		s.logger.Warn("notification publish failed; recipient will see it via pull",
			zap.String("notificationId", id.Hex()),
			zap.String("userId", userID.Hex()),
			zap.Error(err))
	}

	return id, nil
}

func (s *notificationService) NotifyWorkoutAssigned(ctx context.Context, userID primitive.ObjectID, payload domain.WorkoutAssignmentPayload) (primitive.ObjectID, error) {
	return s.Notify(ctx, userID, domain.NotificationWorkoutAssignment,
		"New workout assigned", "Your trainer assigned you a new workout: "+payload.WorkoutName, payload)
}

func (s *notificationService) NotifyNutritionPlanAssigned(ctx context.Context, userID primitive.ObjectID, payload domain.NutritionAssignmentPayload) (primitive.ObjectID, error) {
	return s.Notify(ctx, userID, domain.NotificationNutritionAssignment,
		"New nutrition plan", "Your trainer assigned you a nutrition plan: "+payload.PlanName, payload)
}

func (s *notificationService) NotifyAchievement(ctx context.Context, userID primitive.ObjectID, title, message string, payload domain.AchievementPayload) (primitive.ObjectID, error) {
	return s.Notify(ctx, userID, domain.NotificationAchievement, title, message, payload)
}

func (s *notificationService) NotifyReminder(ctx context.Context, userID primitive.ObjectID, title, message string, payload domain.ReminderPayload) (primitive.ObjectID, error) {
	return s.Notify(ctx, userID, domain.NotificationReminder, title, message, payload)
}

// GetNotifications returns the recipient's notifications, newest first.
func (s *notificationService) GetNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}
	return s.notificationRepo.GetByUser(ctx, userID, unreadOnly)
}

func (s *notificationService) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if userID == primitive.NilObjectID {
		return 0, errors.New("user ID is required")
	}
	return s.notificationRepo.CountUnread(ctx, userID)
}

// MarkRead flips the recipient's notification to read.
func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	if userID == primitive.NilObjectID || notificationID == primitive.NilObjectID {
		return errors.New("user ID and notification ID are required")
	}
	err := s.notificationRepo.MarkRead(ctx, notificationID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if userID == primitive.NilObjectID {
		return 0, errors.New("user ID is required")
	}
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkup/internal/microservices/http-api/models"
	"linkup/internal/microservices/http-api/repository"
	"linkup/internal/microservices/push"
)

var ErrUnknownNotificationType = errors.New("unknown notification type")

// dispatchTimeout bounds the detached push dispatch of one notification
const dispatchTimeout = 30 * time.Second

// RelatedRef optionally points a notification at the entity it is about.
type RelatedRef struct {
	ID   string
	Kind string
}

// PushDispatcher is the slice of the push dispatcher this service needs.
type PushDispatcher interface {
	Dispatch(ctx context.Context, userID string, payload push.Payload) (push.DispatchReport, error)
}

// RealtimePublisher delivers an in-app event to a user's live connections.
// Implemented by the websocket hub.
type RealtimePublisher interface {
	SendToUser(userID, event string, payload any)
}

type NotificationService interface {
	// Notify persists a notification and delivers it best-effort.
	// Returns (nil, nil) without side effects when recipient == sender.
	// Only the persistence step can fail; everything downstream is
	// logged, never propagated.
	Notify(ctx context.Context, recipientID, senderID string, nType models.NotificationType, content string, related *RelatedRef) (*models.Notification, error)
	GetUnread(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID string, notificationID int64) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, notificationID int64) error
}

type notificationService struct {
	repo       repository.NotificationRepository
	dispatcher PushDispatcher
	realtime   RealtimePublisher
	logger     *slog.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	dispatcher PushDispatcher,
	realtime RealtimePublisher,
) NotificationService {
	return &notificationService{
		repo:       repo,
		dispatcher: dispatcher,
		realtime:   realtime,
		logger:     slog.Default(),
	}
}

func (s *notificationService) Notify(ctx context.Context, recipientID, senderID string, nType models.NotificationType, content string, related *RelatedRef) (*models.Notification, error) {
	// self-notifications are suppressed at creation, not filtered later
	if recipientID == senderID {
		return nil, nil
	}
	if !nType.IsValid() {
		return nil, ErrUnknownNotificationType
	}

	notification := &models.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        nType,
		Content:     content,
		Read:        false,
	}
	if related != nil {
		notification.RelatedID = &related.ID
		notification.RelatedKind = &related.Kind
	}

	// persist first: the record must be retrievable from history even if
	// every delivery channel fails
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	// best-effort in-app delivery to live connections
	if s.realtime != nil {
		s.realtime.SendToUser(recipientID, "notification", notification)
	}

	// best-effort push fan-out, detached from the caller's context so a
	// slow provider never blocks the operation that raised the alert
	if s.dispatcher != nil {
		go s.dispatch(notification)
	}

	return notification, nil
}

func (s *notificationService) dispatch(notification *models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	report, err := s.dispatcher.Dispatch(ctx, notification.RecipientID, push.PayloadFor(notification))
	if err != nil {
		// subscription store unavailable; the record is already persisted
		s.logger.Warn("push_dispatch_failed",
			"notification_id", notification.ID,
			"recipient_id", notification.RecipientID,
			"error", err.Error(),
		)
		return
	}
	s.logger.Info("push_dispatch_done",
		"notification_id", notification.ID,
		"recipient_id", notification.RecipientID,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"pruned", report.Pruned,
	)
}

func (s *notificationService) GetUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.repo.GetUnreadByUser(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID string, notificationID int64) error {
	return s.repo.MarkAsRead(ctx, userID, notificationID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, userID string, notificationID int64) error {
	return s.repo.DeleteByID(ctx, userID, notificationID)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/pkg/log"
	"github.com/pribylovaa/go-discussions/internal/storage"
)

// NotificationService — уведомления об ответах и их состояние прочитано/не прочитано.
type NotificationService struct {
	storage storage.Storage
	opts    options
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(st storage.Storage, opts ...Option) *NotificationService {
	return &NotificationService{
		storage: st,
		opts:    buildOptions(opts),
	}
}

var _ Notifier = (*NotificationService)(nil)

// Notify создаёт непрочитанное уведомление получателю об ответе commentID.
// Дедупликации нет: каждый вызов — новая запись. Вызывается только из CommentService,
// в его транзакции (ctx несёт транзакцию хранилища).
//
// Поведение/ошибки:
//   - ErrInvalidArgument — пустой recipientID/commentID;
//   - ErrNotFound — комментарий commentID не существует;
//   - ErrInternal — иные ошибки стораджа.
func (s *NotificationService) Notify(ctx context.Context, recipientID, commentID uuid.UUID) (*models.Notification, error) {
	const op = "service/notifications/Notify"

	lg := log.From(ctx).With("op", op, "recipient_id", recipientID.String(), "comment_id", commentID.String())

	if recipientID == uuid.Nil || commentID == uuid.Nil {
		lg.Warn("invalid argument: empty recipient_id or comment_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	n := models.Notification{
		ID:        uuid.New(),
		UserID:    recipientID,
		CommentID: commentID,
		IsRead:    false,
		CreatedAt: s.opts.stamp(),
	}

	if err := s.storage.CreateNotification(ctx, n); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("comment not found")
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		default:
			lg.Error("storage error on CreateNotification", "err", err)
			return nil, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}

	return &n, nil
}

// ListForUser — уведомления получателя (с данными ответа), сначала новые.
func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.NotificationView, error) {
	const op = "service/notifications/ListForUser"

	lg := log.From(ctx).With("op", op, "user_id", userID.String())

	if userID == uuid.Nil {
		lg.Warn("invalid argument: empty user_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	result, err := s.storage.ListNotifications(ctx, userID)
	if err != nil {
		lg.Error("storage error on ListNotifications", "err", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return result, nil
}

// UnreadCount — число непрочитанных уведомлений получателя.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	const op = "service/notifications/UnreadCount"

	lg := log.From(ctx).With("op", op, "user_id", userID.String())

	if userID == uuid.Nil {
		lg.Warn("invalid argument: empty user_id")
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	n, err := s.storage.UnreadCount(ctx, userID)
	if err != nil {
		lg.Error("storage error on UnreadCount", "err", err)
		return 0, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return n, nil
}

// MarkRead помечает уведомление прочитанным. Менять состояние может только получатель.
//
// Поведение/ошибки:
//   - ErrNotFound — уведомление не найдено;
//   - ErrForbidden — callerID не получатель.
func (s *NotificationService) MarkRead(ctx context.Context, id, callerID uuid.UUID) (*models.Notification, error) {
	return s.setRead(ctx, "service/notifications/MarkRead", id, callerID, true)
}

// MarkUnread помечает уведомление непрочитанным. Ошибки — как у MarkRead.
func (s *NotificationService) MarkUnread(ctx context.Context, id, callerID uuid.UUID) (*models.Notification, error) {
	return s.setRead(ctx, "service/notifications/MarkUnread", id, callerID, false)
}

func (s *NotificationService) setRead(ctx context.Context, op string, id, callerID uuid.UUID, read bool) (*models.Notification, error) {
	lg := log.From(ctx).With("op", op, "id", id.String(), "caller_id", callerID.String())

	var result models.Notification
	err := s.storage.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.storage.NotificationForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if n.UserID != callerID {
			return ErrForbidden
		}

		if n.IsRead != read {
			if err := s.storage.SetNotificationRead(ctx, id, read); err != nil {
				return err
			}
			n.IsRead = read
		}

		result = *n
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			lg.Warn("forbidden: caller is not the recipient")
			return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("notification not found")
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		default:
			lg.Error("storage error", "err", err)
			return nil, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}

	s.opts.metrics.NotificationMarked(read)

	return &result, nil
}

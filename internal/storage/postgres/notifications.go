package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/storage"
)

const notificationColumns = `id, user_id, comment_id, is_read, created_at`

// CreateNotification вставляет уведомление.
// Ошибки: storage.ErrNotFound, если comment_id не существует; storage.ErrConflict при повторе id.
func (s *Storage) CreateNotification(ctx context.Context, n models.Notification) error {
	const op = "storage/postgres/notifications/CreateNotification"

	_, err := s.conn(ctx).Exec(ctx, `
	INSERT INTO notifications (`+notificationColumns+`)
	VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.UserID, n.CommentID, n.IsRead, n.CreatedAt.UTC())
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case isUniqueViolation(err):
			return fmt.Errorf("%s: %w", op, storage.ErrConflict)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// NotificationForUpdate читает уведомление и блокирует строку до конца транзакции.
// Если запись не найдена — storage.ErrNotFound.
func (s *Storage) NotificationForUpdate(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	const op = "storage/postgres/notifications/NotificationForUpdate"

	var n models.Notification
	err := s.conn(ctx).QueryRow(ctx, `
	SELECT `+notificationColumns+` FROM notifications WHERE id = $1 FOR UPDATE
	`, id).Scan(&n.ID, &n.UserID, &n.CommentID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	n.CreatedAt = n.CreatedAt.UTC()

	return &n, nil
}

// SetNotificationRead выставляет is_read.
// Ошибки: storage.ErrNotFound при отсутствии записи.
func (s *Storage) SetNotificationRead(ctx context.Context, id uuid.UUID, read bool) error {
	const op = "storage/postgres/notifications/SetNotificationRead"

	tag, err := s.conn(ctx).Exec(ctx, `UPDATE notifications SET is_read = $2 WHERE id = $1`, id, read)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ListNotifications возвращает уведомления получателя вместе с ответом и его автором.
// Сортировка: created_at DESC, id DESC.
func (s *Storage) ListNotifications(ctx context.Context, userID uuid.UUID) ([]models.NotificationView, error) {
	const op = "storage/postgres/notifications/ListNotifications"

	rows, err := s.conn(ctx).Query(ctx, `
	SELECT n.id, n.user_id, n.comment_id, n.is_read, n.created_at,
	       c.id, c.parent_id, c.author_id, c.author_name, c.content, c.created_at, c.updated_at, c.deleted_at
	FROM notifications n
	JOIN comments c ON c.id = n.comment_id
	WHERE n.user_id = $1
	ORDER BY n.created_at DESC, n.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.NotificationView, 0)
	for rows.Next() {
		var v models.NotificationView
		if scanErr := rows.Scan(
			&v.ID,
			&v.UserID,
			&v.CommentID,
			&v.IsRead,
			&v.CreatedAt,
			&v.Comment.ID,
			&v.Comment.ParentID,
			&v.Comment.AuthorID,
			&v.Comment.AuthorName,
			&v.Comment.Content,
			&v.Comment.CreatedAt,
			&v.Comment.UpdatedAt,
			&v.Comment.DeletedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, scanErr)
		}

		v.CreatedAt = v.CreatedAt.UTC()
		v.Comment.CreatedAt = v.Comment.CreatedAt.UTC()
		v.Comment.UpdatedAt = v.Comment.UpdatedAt.UTC()
		if v.Comment.DeletedAt != nil {
			t := v.Comment.DeletedAt.UTC()
			v.Comment.DeletedAt = &t
		}

		result = append(result, v)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, rows.Err())
	}

	return result, nil
}

// UnreadCount — число непрочитанных уведомлений получателя.
func (s *Storage) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	const op = "storage/postgres/notifications/UnreadCount"

	var n int
	if err := s.conn(ctx).QueryRow(ctx, `
	SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

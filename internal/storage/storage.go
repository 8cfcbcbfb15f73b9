package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/models"
)

var (
	// ErrNotFound — сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrConflict — конфликт уникальности.
	ErrConflict = errors.New("conflict")
	// ErrParentNotFound — указан parent_id, но родитель не найден.
	ErrParentNotFound = errors.New("parent not found")
)

// CommentStorage описывает операции над комментариями.
type CommentStorage interface {
	// CreateComment сохраняет комментарий целиком: ID и временные метки назначает сервис.
	// Возможные ошибки: ErrParentNotFound, ErrConflict.
	CreateComment(ctx context.Context, comment models.Comment) error

	// CommentByID возвращает комментарий по идентификатору.
	// Если запись не найдена — ErrNotFound.
	CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)

	// CommentForUpdate читает комментарий с блокировкой записи до конца транзакции.
	// Вне WithinTx ведёт себя как CommentByID.
	CommentForUpdate(ctx context.Context, id uuid.UUID) (*models.Comment, error)

	// UpdateComment перезаписывает изменяемые поля: content, updated_at, deleted_at.
	// Если запись не найдена — ErrNotFound.
	UpdateComment(ctx context.Context, comment models.Comment) error

	// ListComments возвращает все комментарии, включая мягко удалённые.
	// Сортировка: created_at ASC, при равенстве — по id.
	ListComments(ctx context.Context) ([]models.Comment, error)
}

// NotificationStorage описывает операции над уведомлениями.
type NotificationStorage interface {
	// CreateNotification сохраняет новое уведомление.
	// Если comment_id не существует — ErrNotFound.
	CreateNotification(ctx context.Context, n models.Notification) error

	// NotificationForUpdate читает уведомление с блокировкой записи до конца транзакции.
	// Если запись не найдена — ErrNotFound.
	NotificationForUpdate(ctx context.Context, id uuid.UUID) (*models.Notification, error)

	// SetNotificationRead выставляет флаг is_read.
	// Если запись не найдена — ErrNotFound.
	SetNotificationRead(ctx context.Context, id uuid.UUID, read bool) error

	// ListNotifications возвращает уведомления получателя вместе с данными ответа.
	// Сортировка: сначала новые (created_at DESC).
	ListNotifications(ctx context.Context, userID uuid.UUID) ([]models.NotificationView, error)

	// UnreadCount — число непрочитанных уведомлений получателя.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// Storage — полное хранилище discussions-сервиса.
type Storage interface {
	CommentStorage
	NotificationStorage

	// WithinTx выполняет fn в одной транзакции. Транзакция передаётся через ctx:
	// все вызовы Storage с этим ctx внутри fn идут в неё.
	// Ошибка fn откатывает транзакцию и возвращается как есть.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Close закрывает соединения/ресурсы хранилища.
	Close(ctx context.Context) error
}

// service содержит бизнес-логику discussions-сервиса:
// жизненный цикл комментариев (CommentService) и уведомления об ответах (NotificationService).
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/cache"
	"github.com/pribylovaa/go-discussions/internal/metrics"
	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/window"
)

var (
	// ErrNotFound — сущность отсутствует (или у комментария нет активного удаления для restore).
	ErrNotFound = errors.New("not found")
	// ErrParentNotFound — указан parent_id, но родитель не найден. Подвид ErrNotFound.
	ErrParentNotFound = fmt.Errorf("parent %w", ErrNotFound)
	// ErrForbidden — действие над чужим ресурсом.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest — запрос корректен по форме, но неприменим к текущему состоянию.
	ErrBadRequest = errors.New("bad request")
	// ErrWindowExpired — общий признак истёкшего окна (редактирования или восстановления).
	ErrWindowExpired = errors.New("window expired")
	// ErrEditWindowExpired — окно редактирования истекло. Категория — Forbidden.
	ErrEditWindowExpired = fmt.Errorf("edit %w (%w)", ErrWindowExpired, ErrForbidden)
	// ErrRestoreWindowExpired — окно восстановления истекло. Категория — BadRequest.
	ErrRestoreWindowExpired = fmt.Errorf("restore %w (%w)", ErrWindowExpired, ErrBadRequest)
	// ErrConflict — конфликт уникальности.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument — неверные входные параметры запроса к сервису.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInternal — внутренняя ошибка (стораж/БД/контекст/и т.д.).
	ErrInternal = errors.New("internal")
)

// Notifier — узкий контракт диспетчера уведомлений, которым пользуется CommentService.
// Вызывается синхронно внутри транзакции создания ответа.
type Notifier interface {
	Notify(ctx context.Context, recipientID, commentID uuid.UUID) (*models.Notification, error)
}

type options struct {
	clock   window.Clock
	cache   cache.CommentsCache
	metrics *metrics.Metrics
}

// Option настраивает необязательные зависимости сервисов.
type Option func(*options)

// WithClock подменяет источник времени (по умолчанию window.SystemClock).
func WithClock(c window.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCache включает кэш ленты комментариев.
func WithCache(c cache.CommentsCache) Option {
	return func(o *options) { o.cache = c }
}

// WithMetrics включает доменные метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{clock: window.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// now — текущее время в UTC для проверки окон.
func (o options) now() time.Time {
	return o.clock.Now().UTC()
}

// stamp — метка времени для записи: миллисекунды (их гарантируют оба хранилища).
func (o options) stamp() time.Time {
	return o.now().Truncate(time.Millisecond)
}

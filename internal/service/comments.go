package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/config"
	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/pkg/log"
	"github.com/pribylovaa/go-discussions/internal/storage"
	"github.com/pribylovaa/go-discussions/internal/thread"
	"github.com/pribylovaa/go-discussions/internal/window"
)

// CommentService — жизненный цикл комментариев: создание, правка, мягкое удаление, восстановление.
type CommentService struct {
	storage  storage.Storage
	notifier Notifier
	opts     options

	editWindow       time.Duration
	restoreWindow    time.Duration
	maxContentLength int
}

// NewCommentService создает новый экземпляр CommentService.
func NewCommentService(st storage.Storage, notifier Notifier, cfg config.Config, opts ...Option) *CommentService {
	return &CommentService{
		storage:          st,
		notifier:         notifier,
		opts:             buildOptions(opts),
		editWindow:       cfg.Windows.Edit,
		restoreWindow:    cfg.Windows.Restore,
		maxContentLength: cfg.Limits.MaxContentLength,
	}
}

// Входные структуры сервисного слоя.

// CreateCommentInput — создание корневого комментария или ответа.
// AuthorID/AuthorName берутся из проверенной личности запроса.
type CreateCommentInput struct {
	AuthorID   uuid.UUID
	AuthorName string
	Content    string
	ParentID   *uuid.UUID
}

// UpdateCommentInput — новая версия текста комментария.
type UpdateCommentInput struct {
	ID          uuid.UUID
	RequesterID uuid.UUID
	Content     string
}

// normalizeContent — TrimSpace + проверка на пустоту и длину в рунах.
func (s *CommentService) normalizeContent(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", false
	}

	if s.maxContentLength > 0 && utf8.RuneCountInString(content) > s.maxContentLength {
		return "", false
	}

	return content, true
}

// CreateComment — бизнес-операция создания комментария.
//
// Валидация:
//   - AuthorID обязателен (uuid.Nil -> ErrInvalidArgument);
//   - Content нормализуется (TrimSpace), не пуст и не длиннее limits.max_content_length рун.
//
// Поведение/ошибки:
//   - поиск родителя, вставка и уведомление автора родителя выполняются в одной транзакции:
//     сбой уведомления откатывает комментарий;
//   - уведомление не создаётся, если отвечающий — автор родителя;
//   - ErrParentNotFound — если указан ParentID, но родитель отсутствует;
//   - ErrInternal — прочие ошибки стораджа/уведомлений.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	const op = "service/comments/CreateComment"

	lg := log.From(ctx).With("op", op, "author_id", in.AuthorID.String())
	if in.ParentID != nil {
		lg = lg.With("parent_id", in.ParentID.String())
	}

	if in.AuthorID == uuid.Nil {
		lg.Warn("invalid argument: empty author_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	content, ok := s.normalizeContent(in.Content)
	if !ok {
		lg.Warn("invalid argument: empty or too long content")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	now := s.opts.stamp()
	comm := models.Comment{
		ID:         uuid.New(),
		ParentID:   in.ParentID,
		AuthorID:   in.AuthorID,
		AuthorName: strings.TrimSpace(in.AuthorName),
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var notified bool
	err := s.storage.WithinTx(ctx, func(ctx context.Context) error {
		// fn может выполняться повторно (mongo), состояние сбрасываем.
		notified = false

		var parent *models.Comment
		if comm.ParentID != nil {
			p, err := s.storage.CommentByID(ctx, *comm.ParentID)
			if err != nil {
				return err
			}
			parent = p
		}

		if err := s.storage.CreateComment(ctx, comm); err != nil {
			return err
		}

		if parent != nil && parent.AuthorID != comm.AuthorID {
			if _, err := s.notifier.Notify(ctx, parent.AuthorID, comm.ID); err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			notified = true
		}

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrParentNotFound):
			lg.Warn("parent not found")
			return nil, fmt.Errorf("%s: %w", op, ErrParentNotFound)
		case errors.Is(err, storage.ErrConflict):
			lg.Warn("conflict")
			return nil, fmt.Errorf("%s: %w", op, ErrConflict)
		default:
			lg.Error("storage error on CreateComment", "err", err)
			return nil, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}

	s.invalidate(ctx, op)
	s.opts.metrics.CommentCreated(comm.ParentID != nil)
	if notified {
		s.opts.metrics.NotificationCreated()
	}

	lg.Debug("comment created", "id", comm.ID.String(), "notified", notified)

	return &comm, nil
}

// CommentByID — получить комментарий по ID (включая мягко удалённый).
//
// Поведение/ошибки:
//   - ErrNotFound — если комментарий не найден;
//   - ErrInternal — иные ошибки стораджа.
func (s *CommentService) CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "service/comments/CommentByID"

	lg := log.From(ctx).With("op", op, "id", id.String())

	result, err := s.storage.CommentByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("comment not found")
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		default:
			lg.Error("storage error on CommentByID", "err", err)
			return nil, fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}

	return result, nil
}

// ListComments — все комментарии по возрастанию created_at, включая мягко удалённые.
// Читает через кэш, если он подключён; ошибка кэша не фатальна.
func (s *CommentService) ListComments(ctx context.Context) ([]models.Comment, error) {
	const op = "service/comments/ListComments"

	lg := log.From(ctx).With("op", op)

	if s.opts.cache != nil {
		cached, ok, err := s.opts.cache.Get(ctx)
		switch {
		case err != nil:
			s.opts.metrics.CacheLookup("error")
			lg.Warn("cache get failed", "err", err)
		case ok:
			s.opts.metrics.CacheLookup("hit")
			return cached, nil
		default:
			s.opts.metrics.CacheLookup("miss")
		}
	}

	result, err := s.storage.ListComments(ctx)
	if err != nil {
		lg.Error("storage error on ListComments", "err", err)
		return nil, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if s.opts.cache != nil {
		if err := s.opts.cache.Set(ctx, result); err != nil {
			lg.Warn("cache set failed", "err", err)
		}
	}

	return result, nil
}

// Thread — лента комментариев в виде леса веток.
func (s *CommentService) Thread(ctx context.Context) ([]*thread.Node, error) {
	comments, err := s.ListComments(ctx)
	if err != nil {
		return nil, err
	}

	return thread.Build(comments), nil
}

// UpdateComment — правка текста автором в пределах окна редактирования.
//
// Поведение/ошибки (проверки в этом порядке, до любой записи):
//   - ErrInvalidArgument — пустой/слишком длинный текст;
//   - ErrNotFound — комментарий не найден;
//   - ErrForbidden — запрашивающий не автор;
//   - ErrEditWindowExpired — now > created_at + windows.edit.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	const op = "service/comments/UpdateComment"

	lg := log.From(ctx).With("op", op, "id", in.ID.String(), "requester_id", in.RequesterID.String())

	content, ok := s.normalizeContent(in.Content)
	if !ok {
		lg.Warn("invalid argument: empty or too long content")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	var result models.Comment
	err := s.storage.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.storage.CommentForUpdate(ctx, in.ID)
		if err != nil {
			return err
		}

		if c.AuthorID != in.RequesterID {
			return ErrForbidden
		}

		if !window.Within(s.opts.now(), c.CreatedAt, s.editWindow) {
			return ErrEditWindowExpired
		}

		c.Content = content
		c.UpdatedAt = s.opts.stamp()
		if err := s.storage.UpdateComment(ctx, *c); err != nil {
			return err
		}

		result = *c
		return nil
	})
	if err != nil {
		return nil, s.mutationError(ctx, op, "update", err)
	}

	s.invalidate(ctx, op)
	s.opts.metrics.CommentOp("update", "ok")

	return &result, nil
}

// DeleteComment — мягкое удаление автором; по времени не ограничено.
//
// Повторное удаление возвращает комментарий без изменений: исходный deleted_at
// сохраняется, иначе окно восстановления можно было бы продлевать.
//
// Поведение/ошибки:
//   - ErrNotFound — комментарий не найден;
//   - ErrForbidden — запрашивающий не автор.
func (s *CommentService) DeleteComment(ctx context.Context, id, requesterID uuid.UUID) (*models.Comment, error) {
	const op = "service/comments/DeleteComment"

	var (
		result  models.Comment
		changed bool
	)
	err := s.storage.WithinTx(ctx, func(ctx context.Context) error {
		changed = false

		c, err := s.storage.CommentForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if c.AuthorID != requesterID {
			return ErrForbidden
		}

		if c.IsDeleted() {
			result = *c
			return nil
		}

		now := s.opts.stamp()
		// deleted_at >= created_at даже при расхождении часов между инстансами.
		if now.Before(c.CreatedAt) {
			now = c.CreatedAt
		}

		c.DeletedAt = &now
		if err := s.storage.UpdateComment(ctx, *c); err != nil {
			return err
		}

		result = *c
		changed = true
		return nil
	})
	if err != nil {
		return nil, s.mutationError(ctx, op, "delete", err)
	}

	if changed {
		s.invalidate(ctx, op)
	}
	s.opts.metrics.CommentOp("delete", "ok")

	return &result, nil
}

// RestoreComment — отмена мягкого удаления автором в пределах окна восстановления.
//
// Поведение/ошибки (в этом порядке):
//   - ErrNotFound — комментарий не найден или не удалён;
//   - ErrForbidden — запрашивающий не автор;
//   - ErrRestoreWindowExpired — now > deleted_at + windows.restore.
func (s *CommentService) RestoreComment(ctx context.Context, id, requesterID uuid.UUID) (*models.Comment, error) {
	const op = "service/comments/RestoreComment"

	var result models.Comment
	err := s.storage.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.storage.CommentForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if !c.IsDeleted() {
			return ErrNotFound
		}

		if c.AuthorID != requesterID {
			return ErrForbidden
		}

		if !window.Within(s.opts.now(), *c.DeletedAt, s.restoreWindow) {
			return ErrRestoreWindowExpired
		}

		c.DeletedAt = nil
		if err := s.storage.UpdateComment(ctx, *c); err != nil {
			return err
		}

		result = *c
		return nil
	})
	if err != nil {
		return nil, s.mutationError(ctx, op, "restore", err)
	}

	s.invalidate(ctx, op)
	s.opts.metrics.CommentOp("restore", "ok")

	return &result, nil
}

// Deadlines — последние моменты, когда автор ещё может отредактировать (edit)
// и восстановить (restore, только для удалённого) комментарий.
// Отдаются клиенту, чтобы скрывать недоступные действия; проверка на сервере остаётся авторитетной.
func (s *CommentService) Deadlines(c models.Comment) (edit time.Time, restore *time.Time) {
	edit = window.Deadline(c.CreatedAt, s.editWindow)

	if c.DeletedAt != nil {
		r := window.Deadline(*c.DeletedAt, s.restoreWindow)
		restore = &r
	}

	return edit, restore
}

// mutationError — общий маппинг ошибок update/delete/restore.
// Ошибки, возвращённые из fn как сервисные, пробрасываются с префиксом op.
func (s *CommentService) mutationError(ctx context.Context, op, name string, err error) error {
	lg := log.From(ctx).With("op", op)

	switch {
	case errors.Is(err, ErrWindowExpired):
		lg.Warn("window expired")
		s.opts.metrics.CommentOp(name, "window_expired")
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, ErrForbidden):
		lg.Warn("forbidden: requester is not the author")
		s.opts.metrics.CommentOp(name, "forbidden")
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		lg.Warn("comment not found")
		s.opts.metrics.CommentOp(name, "not_found")
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		lg.Error("storage error", "err", err)
		s.opts.metrics.CommentOp(name, "error")
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}
}

// invalidate сбрасывает кэш ленты после зафиксированной мутации.
func (s *CommentService) invalidate(ctx context.Context, op string) {
	if s.opts.cache == nil {
		return
	}

	if err := s.opts.cache.Invalidate(ctx); err != nil {
		log.From(ctx).Warn("cache invalidate failed", "op", op, "err", err)
	}
}

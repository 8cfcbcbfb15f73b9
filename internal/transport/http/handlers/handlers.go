// handlers — REST-эндпойнты комментариев и уведомлений поверх сервисного слоя.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/identity"
	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/service"
	"github.com/pribylovaa/go-discussions/internal/thread"
	"github.com/pribylovaa/go-discussions/internal/transport/http/apierrors"
)

// maxBodyBytes — верхняя граница тела запроса (JSON с текстом комментария).
const maxBodyBytes = 64 << 10

// CommentsService — то, что хендлерам нужно от service.CommentService.
type CommentsService interface {
	CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error)
	CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Thread(ctx context.Context) ([]*thread.Node, error)
	UpdateComment(ctx context.Context, in service.UpdateCommentInput) (*models.Comment, error)
	DeleteComment(ctx context.Context, id, requesterID uuid.UUID) (*models.Comment, error)
	RestoreComment(ctx context.Context, id, requesterID uuid.UUID) (*models.Comment, error)
	Deadlines(c models.Comment) (edit time.Time, restore *time.Time)
}

// NotificationsService — то, что хендлерам нужно от service.NotificationService.
type NotificationsService interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.NotificationView, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, callerID uuid.UUID) (*models.Notification, error)
	MarkUnread(ctx context.Context, id, callerID uuid.UUID) (*models.Notification, error)
}

var (
	_ CommentsService      = (*service.CommentService)(nil)
	_ NotificationsService = (*service.NotificationService)(nil)
)

// Handlers агрегирует зависимости.
type Handlers struct {
	Comments      CommentsService
	Notifications NotificationsService
}

func New(comments CommentsService, notifications NotificationsService) *Handlers {
	return &Handlers{Comments: comments, Notifications: notifications}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля и хвост после объекта.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return err
	}

	if _, err := dec.Token(); err != io.EOF {
		return apierrors.ErrInvalidArgument
	}

	return nil
}

// pathID — UUID из параметра пути.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apierrors.ErrInvalidArgument
	}

	return id, nil
}

// caller — проверенная личность; AuthBearer гарантирует её наличие,
// отсутствие означает ошибку сборки роутера.
func caller(r *http.Request) (identity.Principal, error) {
	p, ok := identity.From(r.Context())
	if !ok {
		return identity.Principal{}, apierrors.ErrUnauthenticated
	}

	return p, nil
}

package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/thread"
)

// CreateCommentRequest — тело POST /comments.
type CreateCommentRequest struct {
	Content  string     `json:"content"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// UpdateCommentRequest — тело PATCH /comments/{id}.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// Comment — комментарий в ответе API. Дедлайны — подсказка клиенту,
// какие действия ещё доступны; проверка на сервере авторитетна.
type Comment struct {
	ID              uuid.UUID  `json:"id"`
	ParentID        *uuid.UUID `json:"parent_id"`
	AuthorID        uuid.UUID  `json:"author_id"`
	AuthorName      string     `json:"author_name"`
	Content         string     `json:"content"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at"`
	EditDeadline    time.Time  `json:"edit_deadline"`
	RestoreDeadline *time.Time `json:"restore_deadline"`
}

// CommentNode — комментарий с ответами в ленте.
type CommentNode struct {
	Comment
	Replies []CommentNode `json:"replies"`
}

// CommentsResponse — лента GET /comments.
type CommentsResponse struct {
	Comments []CommentNode `json:"comments"`
	Total    int           `json:"total"`
}

// Author — автор ответа в уведомлении.
type Author struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// NotificationComment — ответ, породивший уведомление.
type NotificationComment struct {
	ID        uuid.UUID  `json:"id"`
	Content   string     `json:"content"`
	Author    Author     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// Notification — уведомление в ответе API.
type Notification struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	CommentID uuid.UUID            `json:"comment_id"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
	Comment   *NotificationComment `json:"comment,omitempty"`
}

// NotificationsResponse — GET /notifications.
type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

// UnreadCountResponse — GET /notifications/unread-count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

func (h *Handlers) commentFromModel(c models.Comment) Comment {
	edit, restore := h.Comments.Deadlines(c)

	return Comment{
		ID:              c.ID,
		ParentID:        c.ParentID,
		AuthorID:        c.AuthorID,
		AuthorName:      c.AuthorName,
		Content:         c.Content,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		DeletedAt:       c.DeletedAt,
		EditDeadline:    edit,
		RestoreDeadline: restore,
	}
}

func (h *Handlers) nodesFromForest(nodes []*thread.Node) []CommentNode {
	out := make([]CommentNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CommentNode{
			Comment: h.commentFromModel(n.Comment),
			Replies: h.nodesFromForest(n.Replies),
		})
	}

	return out
}

func notificationFromModel(n models.Notification) Notification {
	return Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		CommentID: n.CommentID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func notificationFromView(v models.NotificationView) Notification {
	out := notificationFromModel(v.Notification)
	out.Comment = &NotificationComment{
		ID:      v.Comment.ID,
		Content: v.Comment.Content,
		Author: Author{
			ID:   v.Comment.AuthorID,
			Name: v.Comment.AuthorName,
		},
		CreatedAt: v.Comment.CreatedAt,
		DeletedAt: v.Comment.DeletedAt,
	}

	return out
}

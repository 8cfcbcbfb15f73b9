package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification — уведомление автора родительского комментария об ответе.
// Создаётся ровно одно на каждый ответ (кроме ответа самому себе), не удаляется.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID // получатель
	CommentID uuid.UUID // ответ, породивший уведомление
	IsRead    bool
	CreatedAt time.Time
}

// NotificationView — уведомление вместе с данными ответа для отображения.
type NotificationView struct {
	Notification
	Comment Comment
}

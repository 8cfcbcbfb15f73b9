// Package models содержит доменные сущности discussions-сервиса.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment — доменная модель комментария.
// Важно:
//   - ID, AuthorID, AuthorName, ParentID, CreatedAt неизменяемы после создания;
//   - ParentID == nil — корневой комментарий;
//   - Content меняет только автор и только в пределах окна редактирования;
//   - DeletedAt != nil — мягко удалён; запись физически не удаляется никогда;
//   - UpdatedAt == CreatedAt, пока комментарий не редактировали.
type Comment struct {
	ID         uuid.UUID
	ParentID   *uuid.UUID
	AuthorID   uuid.UUID
	AuthorName string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// IsRoot — комментарий верхнего уровня.
func (c Comment) IsRoot() bool { return c.ParentID == nil }

// IsDeleted — комментарий мягко удалён.
func (c Comment) IsDeleted() bool { return c.DeletedAt != nil }

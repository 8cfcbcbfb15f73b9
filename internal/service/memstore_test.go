package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/storage"
)

// memStorage — in-memory реализация storage.Storage для сценарных тестов сервиса.
// WithinTx сериализует транзакции общим мьютексом и откатывает снимок при ошибке fn.
type memStorage struct {
	mu            sync.Mutex
	comments      map[uuid.UUID]models.Comment
	notifications map[uuid.UUID]models.Notification
}

var _ storage.Storage = (*memStorage)(nil)

type memTxKey struct{}

func newMemStorage() *memStorage {
	return &memStorage{
		comments:      map[uuid.UUID]models.Comment{},
		notifications: map[uuid.UUID]models.Notification{},
	}
}

// lock берёт мьютекс, если вызов не внутри WithinTx (там он уже взят).
func (m *memStorage) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStorage) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	comments := make(map[uuid.UUID]models.Comment, len(m.comments))
	for k, v := range m.comments {
		comments[k] = v
	}
	notifications := make(map[uuid.UUID]models.Notification, len(m.notifications))
	for k, v := range m.notifications {
		notifications[k] = v
	}

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.comments, m.notifications = comments, notifications
		return err
	}

	return nil
}

func (m *memStorage) Close(context.Context) error { return nil }

func (m *memStorage) CreateComment(ctx context.Context, c models.Comment) error {
	defer m.lock(ctx)()

	if _, ok := m.comments[c.ID]; ok {
		return storage.ErrConflict
	}
	if c.ParentID != nil {
		if _, ok := m.comments[*c.ParentID]; !ok {
			return storage.ErrParentNotFound
		}
	}

	m.comments[c.ID] = c
	return nil
}

func (m *memStorage) CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	defer m.lock(ctx)()

	c, ok := m.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &c, nil
}

func (m *memStorage) CommentForUpdate(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return m.CommentByID(ctx, id)
}

func (m *memStorage) UpdateComment(ctx context.Context, c models.Comment) error {
	defer m.lock(ctx)()

	if _, ok := m.comments[c.ID]; !ok {
		return storage.ErrNotFound
	}

	m.comments[c.ID] = c
	return nil
}

func (m *memStorage) ListComments(ctx context.Context) ([]models.Comment, error) {
	defer m.lock(ctx)()

	out := make([]models.Comment, 0, len(m.comments))
	for _, c := range m.comments {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return out, nil
}

func (m *memStorage) CreateNotification(ctx context.Context, n models.Notification) error {
	defer m.lock(ctx)()

	if _, ok := m.comments[n.CommentID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := m.notifications[n.ID]; ok {
		return storage.ErrConflict
	}

	m.notifications[n.ID] = n
	return nil
}

func (m *memStorage) NotificationForUpdate(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	defer m.lock(ctx)()

	n, ok := m.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &n, nil
}

func (m *memStorage) SetNotificationRead(ctx context.Context, id uuid.UUID, read bool) error {
	defer m.lock(ctx)()

	n, ok := m.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}

	n.IsRead = read
	m.notifications[id] = n
	return nil
}

func (m *memStorage) ListNotifications(ctx context.Context, userID uuid.UUID) ([]models.NotificationView, error) {
	defer m.lock(ctx)()

	out := make([]models.NotificationView, 0)
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		out = append(out, models.NotificationView{Notification: n, Comment: m.comments[n.CommentID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})

	return out, nil
}

func (m *memStorage) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	defer m.lock(ctx)()

	cnt := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			cnt++
		}
	}

	return cnt, nil
}

// fakeClock — управляемые часы.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

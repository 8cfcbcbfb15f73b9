package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-discussions/internal/models"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (CommentsCache, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+s.Addr(), "test:", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, s
}

func sample() []models.Comment {
	at := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	deletedAt := at.Add(time.Minute)

	root := models.Comment{
		ID: uuid.New(), AuthorID: uuid.New(), AuthorName: "alice", Content: "hello",
		CreatedAt: at, UpdatedAt: at, DeletedAt: &deletedAt,
	}
	pid := root.ID
	reply := models.Comment{
		ID: uuid.New(), ParentID: &pid, AuthorID: uuid.New(), AuthorName: "bob", Content: "hi",
		CreatedAt: at.Add(time.Second), UpdatedAt: at.Add(2 * time.Second),
	}

	return []models.Comment{root, reply}
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := setupTestRedis(t, time.Minute)

	got, ok, err := c.Get(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestRedisCache_SetGet_RoundTrip(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	in := sample()
	require.NoError(t, c.Set(ctx, in))
	require.True(t, s.Exists("test:comments"))
	require.Equal(t, time.Minute, s.TTL("test:comments"))

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, got)
}

// Пустой список — тоже валидное значение кэша (нет комментариев).
func TestRedisCache_EmptyList(t *testing.T) {
	c, _ := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, nil))

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, got)
}

func TestRedisCache_Expires(t *testing.T) {
	c, s := setupTestRedis(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sample()))
	s.FastForward(31 * time.Second)

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sample()))
	require.NoError(t, c.Invalidate(ctx))
	require.False(t, s.Exists("test:comments"))

	// Повторная инвалидация отсутствующего ключа — не ошибка.
	require.NoError(t, c.Invalidate(ctx))
}

func TestRedisCache_CorruptedValue(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)

	require.NoError(t, s.Set("test:comments", "{not json"))

	_, ok, err := c.Get(context.Background())
	require.Error(t, err)
	require.False(t, ok)
}

func TestNewRedisCache_DefaultPrefix(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+s.Addr(), "", time.Minute)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), sample()))
	require.True(t, s.Exists("discussions:comments"))
}

func TestNewRedisCache_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedisCache(ctx, "://bad", "", time.Minute)
	require.Error(t, err)

	s := miniredis.RunT(t)
	_, err = NewRedisCache(ctx, "redis://"+s.Addr(), "", 0)
	require.Error(t, err)

	addr := s.Addr()
	s.Close()
	_, err = NewRedisCache(ctx, "redis://"+addr, "", time.Minute)
	require.Error(t, err)
}

// cache — read-through кэш плоского списка комментариев в Redis.
//
// Кэшируется результат storage.ListComments целиком (один ключ); лес веток
// строится поверх него на каждый запрос. Любая зафиксированная мутация
// комментария вызывает Invalidate, TTL ограничивает устаревание при сбое инвалидации.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-discussions/internal/models"
)

// CommentsCache — минимальный контракт кэша ленты комментариев.
type CommentsCache interface {
	// Get возвращает список и признак его наличия в кэше.
	Get(ctx context.Context) ([]models.Comment, bool, error)
	// Set сохраняет список с TTL кэша.
	Set(ctx context.Context, comments []models.Comment) error
	// Invalidate удаляет закэшированный список.
	Invalidate(ctx context.Context) error
	// Close закрывает клиент Redis.
	Close() error
}

// commentEntry — JSON-представление комментария в кэше.
type commentEntry struct {
	ID         uuid.UUID  `json:"id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	AuthorID   uuid.UUID  `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "discussions:".
func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration) (CommentsCache, error) {
	if prefix == "" {
		prefix = "discussions:"
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be > 0")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}

	return &redisCache{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (c *redisCache) key() string { return c.prefix + "comments" }

func (c *redisCache) Get(ctx context.Context) ([]models.Comment, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	var entries []commentEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal: %w", err)
	}

	out := make([]models.Comment, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.Comment{
			ID:         e.ID,
			ParentID:   e.ParentID,
			AuthorID:   e.AuthorID,
			AuthorName: e.AuthorName,
			Content:    e.Content,
			CreatedAt:  e.CreatedAt.UTC(),
			UpdatedAt:  e.UpdatedAt.UTC(),
			DeletedAt:  utcPtr(e.DeletedAt),
		})
	}

	return out, true, nil
}

func (c *redisCache) Set(ctx context.Context, comments []models.Comment) error {
	entries := make([]commentEntry, 0, len(comments))
	for _, cm := range comments {
		entries = append(entries, commentEntry{
			ID:         cm.ID,
			ParentID:   cm.ParentID,
			AuthorID:   cm.AuthorID,
			AuthorName: cm.AuthorName,
			Content:    cm.Content,
			CreatedAt:  cm.CreatedAt,
			UpdatedAt:  cm.UpdatedAt,
			DeletedAt:  cm.DeletedAt,
		})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}

	if err := c.rdb.Set(ctx, c.key(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}

	return nil
}

func (c *redisCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.key()).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}

	return nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()
	return &u
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/storage"
)

// commentDoc — представление комментария в коллекции comments.
// UUID хранятся строками.
type commentDoc struct {
	ID         string     `bson:"_id"`
	ParentID   *string    `bson:"parent_id"`
	AuthorID   string     `bson:"author_id"`
	AuthorName string     `bson:"author_name"`
	Content    string     `bson:"content"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
	DeletedAt  *time.Time `bson:"deleted_at"`
	// Rev увеличивается при каждом CommentForUpdate (аналог SELECT ... FOR UPDATE).
	Rev int64 `bson:"rev"`
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func toCommentDoc(c models.Comment) commentDoc {
	d := commentDoc{
		ID:         c.ID.String(),
		AuthorID:   c.AuthorID.String(),
		AuthorName: c.AuthorName,
		Content:    c.Content,
		CreatedAt:  toMS(c.CreatedAt),
		UpdatedAt:  toMS(c.UpdatedAt),
	}

	if c.ParentID != nil {
		pid := c.ParentID.String()
		d.ParentID = &pid
	}

	if c.DeletedAt != nil {
		t := toMS(*c.DeletedAt)
		d.DeletedAt = &t
	}

	return d
}

func (d commentDoc) toModel() (models.Comment, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("bad _id %q: %w", d.ID, err)
	}

	authorID, err := uuid.Parse(d.AuthorID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("bad author_id %q: %w", d.AuthorID, err)
	}

	c := models.Comment{
		ID:         id,
		AuthorID:   authorID,
		AuthorName: d.AuthorName,
		Content:    d.Content,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}

	if d.ParentID != nil {
		pid, err := uuid.Parse(*d.ParentID)
		if err != nil {
			return models.Comment{}, fmt.Errorf("bad parent_id %q: %w", *d.ParentID, err)
		}
		c.ParentID = &pid
	}

	if d.DeletedAt != nil {
		t := d.DeletedAt.UTC()
		c.DeletedAt = &t
	}

	return c, nil
}

// CreateComment вставляет комментарий.
// Внешних ключей в MongoDB нет: существование родителя проверяется явно
// (в транзакции WithinTx проверка и вставка атомарны).
func (m *Mongo) CreateComment(ctx context.Context, c models.Comment) error {
	const op = "storage/mongo/CreateComment"

	if c.ParentID != nil {
		n, err := m.comments.CountDocuments(ctx, bson.D{{Key: "_id", Value: c.ParentID.String()}}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("%s: find parent: %w", op, err)
		}

		if n == 0 {
			return fmt.Errorf("%s: %w", op, storage.ErrParentNotFound)
		}
	}

	if _, err := m.comments.InsertOne(ctx, toCommentDoc(c)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}

		return fmt.Errorf("%s: insert: %w", op, err)
	}

	return nil
}

// CommentByID возвращает комментарий по идентификатору.
// Если запись не найдена — storage.ErrNotFound.
func (m *Mongo) CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "storage/mongo/CommentByID"

	var doc commentDoc
	if err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// CommentForUpdate читает комментарий, увеличивая rev: внутри транзакции
// это блокирует документ для конкурирующих писателей.
func (m *Mongo) CommentForUpdate(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "storage/mongo/CommentForUpdate"

	var doc commentDoc
	err := m.comments.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "rev", Value: 1}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// UpdateComment перезаписывает content, updated_at и deleted_at.
// При отсутствии записи — storage.ErrNotFound.
func (m *Mongo) UpdateComment(ctx context.Context, c models.Comment) error {
	const op = "storage/mongo/UpdateComment"

	var deletedAt any
	if c.DeletedAt != nil {
		deletedAt = toMS(*c.DeletedAt)
	}

	res, err := m.comments.UpdateByID(ctx, c.ID.String(), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "content", Value: c.Content},
			{Key: "updated_at", Value: toMS(c.UpdatedAt)},
			{Key: "deleted_at", Value: deletedAt},
		}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ListComments возвращает все комментарии в порядке created_at ASC, _id ASC.
func (m *Mongo) ListComments(ctx context.Context) ([]models.Comment, error) {
	const op = "storage/mongo/ListComments"

	cur, err := m.comments.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]models.Comment, 0)
	for cur.Next(ctx) {
		var doc commentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		c, err := doc.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, c)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return out, nil
}

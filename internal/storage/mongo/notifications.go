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

type notificationDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	CommentID string    `bson:"comment_id"`
	IsRead    bool      `bson:"is_read"`
	CreatedAt time.Time `bson:"created_at"`
	Rev       int64     `bson:"rev"`
}

// notificationViewDoc — результат $lookup: уведомление + ответ.
type notificationViewDoc struct {
	notificationDoc `bson:",inline"`
	Comment         commentDoc `bson:"comment"`
}

func (d notificationDoc) toModel() (models.Notification, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("bad _id %q: %w", d.ID, err)
	}

	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("bad user_id %q: %w", d.UserID, err)
	}

	commentID, err := uuid.Parse(d.CommentID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("bad comment_id %q: %w", d.CommentID, err)
	}

	return models.Notification{
		ID:        id,
		UserID:    userID,
		CommentID: commentID,
		IsRead:    d.IsRead,
		CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

// CreateNotification вставляет уведомление.
// Если comment_id не существует — storage.ErrNotFound.
func (m *Mongo) CreateNotification(ctx context.Context, n models.Notification) error {
	const op = "storage/mongo/CreateNotification"

	cnt, err := m.comments.CountDocuments(ctx, bson.D{{Key: "_id", Value: n.CommentID.String()}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("%s: find comment: %w", op, err)
	}

	if cnt == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if _, err := m.notifications.InsertOne(ctx, notificationDoc{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		CommentID: n.CommentID.String(),
		IsRead:    n.IsRead,
		CreatedAt: toMS(n.CreatedAt),
	}); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}

		return fmt.Errorf("%s: insert: %w", op, err)
	}

	return nil
}

// NotificationForUpdate читает уведомление, увеличивая rev (см. CommentForUpdate).
// Если запись не найдена — storage.ErrNotFound.
func (m *Mongo) NotificationForUpdate(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	const op = "storage/mongo/NotificationForUpdate"

	var doc notificationDoc
	err := m.notifications.FindOneAndUpdate(ctx,
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

// SetNotificationRead выставляет is_read.
// При отсутствии записи — storage.ErrNotFound.
func (m *Mongo) SetNotificationRead(ctx context.Context, id uuid.UUID, read bool) error {
	const op = "storage/mongo/SetNotificationRead"

	res, err := m.notifications.UpdateByID(ctx, id.String(), bson.D{
		{Key: "$set", Value: bson.D{{Key: "is_read", Value: read}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ListNotifications возвращает уведомления получателя с присоединённым ответом ($lookup).
// Сортировка: created_at DESC, _id DESC.
func (m *Mongo) ListNotifications(ctx context.Context, userID uuid.UUID) ([]models.NotificationView, error) {
	const op = "storage/mongo/ListNotifications"

	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "user_id", Value: userID.String()}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: commentsCollection},
			{Key: "localField", Value: "comment_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "comment"},
		}}},
		{{Key: "$unwind", Value: "$comment"}},
	}

	cur, err := m.notifications.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: aggregate: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]models.NotificationView, 0)
	for cur.Next(ctx) {
		var doc notificationViewDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		n, err := doc.notificationDoc.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		c, err := doc.Comment.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, models.NotificationView{Notification: n, Comment: c})
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return out, nil
}

// UnreadCount — число непрочитанных уведомлений получателя.
func (m *Mongo) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	const op = "storage/mongo/UnreadCount"

	n, err := m.notifications.CountDocuments(ctx, bson.D{
		{Key: "user_id", Value: userID.String()},
		{Key: "is_read", Value: false},
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(n), nil
}

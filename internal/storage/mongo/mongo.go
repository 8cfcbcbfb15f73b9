package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/pribylovaa/go-discussions/internal/storage"
)

const (
	commentsCollection      = "comments"
	notificationsCollection = "notifications"
	defaultDBName           = "discussions"
)

// Mongo - тонкий адаптер для подключения и коллекций MongoDB.
// Транзакции требуют replica set (например, ?replicaSet=rs0 в URL).
type Mongo struct {
	client        *mongodriver.Client
	db            *mongodriver.Database
	comments      *mongodriver.Collection
	notifications *mongodriver.Collection
}

// New подключается к MongoDB, проверяет его, подготавливает коллекции и обеспечивает индексацию.
func New(ctx context.Context, dbURL string) (*Mongo, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("mongo: empty db url")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(dbURL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(dbURL))

	m := &Mongo{
		client:        cli,
		db:            db,
		comments:      db.Collection(commentsCollection),
		notifications: db.Collection(notificationsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// WithinTx выполняет fn в мультидокументной транзакции.
// fn получает mongo.SessionContext: все операции с ним идут в транзакцию.
// При TransientTransactionError драйвер повторяет fn целиком, поэтому fn
// не должна иметь внешних побочных эффектов.
// Вложенный вызов присоединяется к уже открытой сессии.
func (m *Mongo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	const op = "storage/mongo/WithinTx"

	if mongodriver.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s: start session: %w", op, err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongodriver.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txOpts)

	return err
}

// ensureIndexes создает индексы, необходимые сервису.
// - Лента комментариев: created_at + _id (asc)
// - Уведомления получателя: user_id + created_at(desc)
// - Счётчик непрочитанных: user_id + is_read
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	if _, err := m.comments.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("created_id_asc"),
		},
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("parent_id"),
		},
	}); err != nil {
		return fmt.Errorf("mongo ensure comment indexes: %w", err)
	}

	if _, err := m.notifications.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_desc"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("user_unread"),
		},
	}); err != nil {
		return fmt.Errorf("mongo ensure notification indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

var _ storage.Storage = (*Mongo)(nil)

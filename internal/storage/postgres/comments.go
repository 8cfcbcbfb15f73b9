package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/storage"
)

// commentColumns — единый список колонок таблицы comments,
// используемый во всех SELECT, чтобы гарантировать одинаковый порядок сканирования.
const commentColumns = `
id, parent_id, author_id, author_name, content, created_at, updated_at, deleted_at
`

// scanComment сканирует одну строку комментария и нормализует время в UTC.
func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment

	if err := row.Scan(
		&c.ID,
		&c.ParentID,
		&c.AuthorID,
		&c.AuthorName,
		&c.Content,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	); err != nil {
		return nil, err
	}

	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if c.DeletedAt != nil {
		t := c.DeletedAt.UTC()
		c.DeletedAt = &t
	}

	return &c, nil
}

// CreateComment вставляет комментарий.
// Ошибки: storage.ErrParentNotFound при нарушении FK parent_id,
// storage.ErrConflict при повторе id.
func (s *Storage) CreateComment(ctx context.Context, c models.Comment) error {
	const op = "storage/postgres/comments/CreateComment"

	_, err := s.conn(ctx).Exec(ctx, `
	INSERT INTO comments (id, parent_id, author_id, author_name, content, created_at, updated_at, deleted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.ParentID, c.AuthorID, c.AuthorName, c.Content, c.CreatedAt.UTC(), c.UpdatedAt.UTC(), c.DeletedAt)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return fmt.Errorf("%s: %w", op, storage.ErrParentNotFound)
		case isUniqueViolation(err):
			return fmt.Errorf("%s: %w", op, storage.ErrConflict)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// CommentByID возвращает комментарий по идентификатору.
// Если запись не найдена — storage.ErrNotFound.
func (s *Storage) CommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "storage/postgres/comments/CommentByID"

	return s.commentBy(ctx, op, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
}

// CommentForUpdate — то же, что CommentByID, но строка блокируется до конца транзакции.
func (s *Storage) CommentForUpdate(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	const op = "storage/postgres/comments/CommentForUpdate"

	return s.commentBy(ctx, op, `SELECT `+commentColumns+` FROM comments WHERE id = $1 FOR UPDATE`, id)
}

func (s *Storage) commentBy(ctx context.Context, op, q string, id uuid.UUID) (*models.Comment, error) {
	result, err := scanComment(s.conn(ctx).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// UpdateComment перезаписывает content, updated_at и deleted_at.
// Ошибки: storage.ErrNotFound при отсутствии записи.
func (s *Storage) UpdateComment(ctx context.Context, c models.Comment) error {
	const op = "storage/postgres/comments/UpdateComment"

	tag, err := s.conn(ctx).Exec(ctx, `
	UPDATE comments
	SET content = $2, updated_at = $3, deleted_at = $4
	WHERE id = $1
	`, c.ID, c.Content, c.UpdatedAt.UTC(), c.DeletedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ListComments возвращает все комментарии в порядке created_at ASC, id ASC.
func (s *Storage) ListComments(ctx context.Context) ([]models.Comment, error) {
	const op = "storage/postgres/comments/ListComments"

	rows, err := s.conn(ctx).Query(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Comment, 0)
	for rows.Next() {
		c, scanErr := scanComment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, scanErr)
		}

		result = append(result, *c)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, rows.Err())
	}

	return result, nil
}

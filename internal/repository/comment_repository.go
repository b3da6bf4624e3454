package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// CommentRepository persists request comments. It implements comments.Store.
type CommentRepository struct {
	db *DB
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const commentColumns = `
	id, request_id, author_id, author_name, role, text,
	parent_comment_id, is_query_comment, created_at`

// Insert appends one comment.
func (r *CommentRepository) Insert(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO request_comments
		    (id, request_id, author_id, author_name, role, text,
		     parent_comment_id, is_query_comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.RequestID,
		c.Author.UserID,
		c.Author.DisplayName,
		c.Role,
		c.Text,
		c.ParentCommentID,
		c.IsQueryComment,
		c.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to insert comment")
	}
	return nil
}

// ListByRequest returns every comment on a request, oldest first.
func (r *CommentRepository) ListByRequest(ctx context.Context, requestID string) ([]*domain.Comment, error) {
	query := `SELECT` + commentColumns + ` FROM request_comments WHERE request_id = $1 ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list comments")
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan comment")
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// Get retrieves one comment by ID.
func (r *CommentRepository) Get(ctx context.Context, id string) (*domain.Comment, error) {
	query := `SELECT` + commentColumns + ` FROM request_comments WHERE id = $1`

	c, err := scanComment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("comment", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get comment")
	}
	return c, nil
}

// MarkQuery flags a comment as the explanation attached to a QUERY action.
func (r *CommentRepository) MarkQuery(ctx context.Context, id string) error {
	affected, err := r.db.Exec(ctx, `UPDATE request_comments SET is_query_comment = TRUE WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to mark query comment")
	}
	if affected == 0 {
		return apperrors.NotFound("comment", id)
	}
	return nil
}

func scanComment(row requestScanner) (*domain.Comment, error) {
	c := &domain.Comment{}
	err := row.Scan(
		&c.ID,
		&c.RequestID,
		&c.Author.UserID,
		&c.Author.DisplayName,
		&c.Role,
		&c.Text,
		&c.ParentCommentID,
		&c.IsQueryComment,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

const commentColumns = `id, post_id, author_name, user_id, email, content, status, flag_reason, moderation_notes, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*models.Comment, error) {
	c := &models.Comment{}
	var (
		userID, email, flagReason, notes sql.NullString
		status                           string
	)
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorName, &userID, &email, &c.Content, &status,
		&flagReason, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.CommentStatus(status)
	c.UserID = nullable(userID)
	c.Email = nullable(email)
	c.FlagReason = nullable(flagReason)
	c.ModerationNotes = nullable(notes)
	return c, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// wrapErr maps missing rows and unparsable ids to common.ErrorNotFound.
func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	query :=
		`INSERT INTO comments (post_id, author_name, user_id, email, content, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + commentColumns

	c, err := scanComment(r.db.QueryRowContext(ctx, query,
		comment.PostID, comment.AuthorName, comment.UserID, comment.Email, comment.Content, string(comment.Status)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, postID string, status models.CommentStatus) ([]*models.Comment, error) {
	var (
		where []string
		args  []any
	)
	if postID != "" {
		args = append(args, postID)
		where = append(where, fmt.Sprintf("post_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, string(status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + commentColumns + ` FROM comments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	result := make([]*models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateModeration(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	query :=
		`UPDATE comments SET status = $2, flag_reason = $3, moderation_notes = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + commentColumns

	c, err := scanComment(r.db.QueryRowContext(ctx, query,
		comment.ID, string(comment.Status), comment.FlagReason, comment.ModerationNotes))
	if err != nil {
		return nil, wrapErr(err)
	}
	return c, nil
}

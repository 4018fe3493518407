package posts

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

const postColumns = `id, slug, title, excerpt, content, cover_image, tags, status, author_id, views, published_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	p := &models.Post{}
	var (
		tags        dbx.StringList
		status      string
		publishedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &p.CoverImage, &tags,
		&status, &p.AuthorID, &p.Views, &publishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tags = tags
	p.Status = models.PostStatus(status)
	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}
	return p, nil
}

// wrapErr maps missing rows and unparsable ids to common.ErrorNotFound.
func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
		return common.ErrorNotFound
	}
	if dbx.IsUniqueViolation(err) {
		return common.ErrorConflict
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query :=
		`INSERT INTO posts (slug, title, excerpt, content, cover_image, tags, status, author_id, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING ` + postColumns

	p, err := scanPost(r.db.QueryRowContext(ctx, query,
		post.Slug, post.Title, post.Excerpt, post.Content, post.CoverImage,
		dbx.StringList(post.Tags), string(post.Status), post.AuthorID, post.PublishedAt))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, post *models.Post) (*models.Post, error) {
	query :=
		`UPDATE posts SET slug = $2, title = $3, excerpt = $4, content = $5, cover_image = $6,
		        tags = $7, status = $8, published_at = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + postColumns

	p, err := scanPost(r.db.QueryRowContext(ctx, query,
		post.ID, post.Slug, post.Title, post.Excerpt, post.Content, post.CoverImage,
		dbx.StringList(post.Tags), string(post.Status), post.PublishedAt))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE slug = $1 AND status = 'published'`

	p, err := scanPost(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf("tags ? $%d", len(args)))
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY COALESCE(published_at, created_at) DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	result := make([]*models.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return result, nil
}

func (r *PostgresRepository) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1 AND id::text <> $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, slug, exceptID).Scan(&exists); err != nil {
		return false, wrapErr(err)
	}
	return exists, nil
}

func (r *PostgresRepository) IncrementViews(ctx context.Context, slug string) (*models.Post, error) {
	query :=
		`UPDATE posts SET views = views + 1
		 WHERE slug = $1 AND status = 'published'
		 RETURNING ` + postColumns

	p, err := scanPost(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

package issues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

const issueColumns = `id, name, email, subject, message, status, admin_notes, resolved_by, resolved_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	i := &models.Issue{}
	var (
		status            string
		notes, resolvedBy sql.NullString
		resolvedAt        sql.NullTime
	)
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Subject, &i.Message, &status,
		&notes, &resolvedBy, &resolvedAt, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = models.IssueStatus(status)
	if notes.Valid {
		i.AdminNotes = &notes.String
	}
	if resolvedBy.Valid {
		i.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		i.ResolvedAt = &resolvedAt.Time
	}
	return i, nil
}

// wrapErr maps missing rows and unparsable ids to common.ErrorNotFound.
func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	query :=
		`INSERT INTO issues (name, email, subject, message, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING ` + issueColumns

	i, err := scanIssue(r.db.QueryRowContext(ctx, query,
		issue.Name, issue.Email, issue.Subject, issue.Message, string(issue.Status)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return i, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	i, err := scanIssue(r.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err)
	}
	return i, nil
}

func (r *PostgresRepository) List(ctx context.Context, status models.IssueStatus) ([]*models.Issue, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY created_at DESC`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE status = $1 ORDER BY created_at DESC`, string(status))
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	result := make([]*models.Issue, 0)
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		result = append(result, i)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	query :=
		`UPDATE issues SET status = $2, admin_notes = $3, resolved_by = $4, resolved_at = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + issueColumns

	i, err := scanIssue(r.db.QueryRowContext(ctx, query,
		issue.ID, string(issue.Status), issue.AdminNotes, issue.ResolvedBy, issue.ResolvedAt))
	if err != nil {
		return nil, wrapErr(err)
	}
	return i, nil
}

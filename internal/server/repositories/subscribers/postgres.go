package subscribers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

const subscriberColumns = `id, email, active, unsubscribe_token, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*models.Subscriber, error) {
	s := &models.Subscriber{}
	if err := row.Scan(&s.ID, &s.Email, &s.Active, &s.UnsubscribeToken, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
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

func (r *PostgresRepository) Create(ctx context.Context, sub *models.Subscriber) (*models.Subscriber, error) {
	query :=
		`INSERT INTO subscribers (email, active, unsubscribe_token)
		 VALUES ($1, $2, $3)
		 RETURNING ` + subscriberColumns

	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(sub.Email), sub.Active, sub.UnsubscribeToken))
	if err != nil {
		return nil, wrapErr(err)
	}
	return s, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email = $1`

	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return s, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) (*models.Subscriber, error) {
	query :=
		`UPDATE subscribers SET active = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + subscriberColumns

	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, id, active))
	if err != nil {
		return nil, wrapErr(err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context, active *bool) ([]*models.Subscriber, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if active == nil {
		rows, err = r.db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers ORDER BY created_at DESC`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE active = $1 ORDER BY created_at DESC`, *active)
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	result := make([]*models.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return result, nil
}

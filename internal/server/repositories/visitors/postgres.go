package visitors

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, v *models.Visit) error {
	query :=
		`INSERT INTO visitors (ip, path, user_agent, referrer, session_id, device, browser, os, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		v.IP, v.Path, v.UserAgent, v.Referrer, v.SessionID, v.Device, v.Browser, v.OS, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Totals(ctx context.Context, since time.Time) (int64, int64, error) {
	query :=
		`SELECT count(*), count(DISTINCT (ip, (created_at AT TIME ZONE 'UTC')::date))
		 FROM visitors
		 WHERE created_at >= $1`

	var views, visitors int64
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&views, &visitors); err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return views, visitors, nil
}

func (r *PostgresRepository) Daily(ctx context.Context, since time.Time) ([]models.DailyVisits, error) {
	query :=
		`SELECT (created_at AT TIME ZONE 'UTC')::date AS day, count(*), count(DISTINCT ip)
		 FROM visitors
		 WHERE created_at >= $1
		 GROUP BY day
		 ORDER BY day`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.DailyVisits, 0)
	for rows.Next() {
		var d models.DailyVisits
		if err := rows.Scan(&d.Day, &d.Views, &d.Visitors); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) TopPaths(ctx context.Context, since time.Time, limit int) ([]models.PathVisits, error) {
	query :=
		`SELECT path, count(*) AS views
		 FROM visitors
		 WHERE created_at >= $1
		 GROUP BY path
		 ORDER BY views DESC, path
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.PathVisits, 0)
	for rows.Next() {
		var p models.PathVisits
		if err := rows.Scan(&p.Path, &p.Views); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

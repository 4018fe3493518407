package visitors

import (
	"context"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, visit *models.Visit) error
	// Totals counts views and distinct (IP, UTC day) pairs since the instant.
	Totals(ctx context.Context, since time.Time) (views, visitors int64, err error)
	Daily(ctx context.Context, since time.Time) ([]models.DailyVisits, error)
	TopPaths(ctx context.Context, since time.Time, limit int) ([]models.PathVisits, error)
}

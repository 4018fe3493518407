package subscribers

import (
	"context"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Subscriber) (*models.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Subscriber, error)
	// List returns subscribers newest first; nil active matches all.
	List(ctx context.Context, active *bool) ([]*models.Subscriber, error)
}

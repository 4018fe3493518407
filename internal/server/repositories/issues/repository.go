package issues

import (
	"context"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	// List returns issues newest first; an empty status matches all.
	List(ctx context.Context, status models.IssueStatus) ([]*models.Issue, error)
	UpdateStatus(ctx context.Context, issue *models.Issue) (*models.Issue, error)
}

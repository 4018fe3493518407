package comments

import (
	"context"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	// List returns comments newest first. Empty postID or status match all.
	List(ctx context.Context, postID string, status models.CommentStatus) ([]*models.Comment, error)
	UpdateModeration(ctx context.Context, comment *models.Comment) (*models.Comment, error)
}

package users

import (
	"context"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)

	// PromoteAdmin replaces hash and name, forces role=admin and re-enables.
	PromoteAdmin(ctx context.Context, id string, passwordHash []byte, name string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordHash []byte) error
	// ToggleDisabled flips the disabled flag in one statement.
	ToggleDisabled(ctx context.Context, id string) (*models.User, error)
}

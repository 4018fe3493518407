// Package authz decides whether a request may reach an admin route: it
// verifies the session cookie and re-confirms the account on every call.
package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/revocation"
)

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type Gate struct {
	tokens      TokenVerifier
	users       UserFinder
	revocations revocation.Store
	log         logging.Logger
}

func NewGate(tokens TokenVerifier, users UserFinder, revocations revocation.Store, log logging.Logger) *Gate {
	return &Gate{
		tokens:      tokens,
		users:       users,
		revocations: revocations,
		log:         log.With("module", "authz"),
	}
}

// Authorize reads the session cookie from r and checks it against role.
func (g *Gate) Authorize(r *http.Request, role models.Role) (*auth.Claims, error) {
	token, ok := auth.SessionToken(r)
	if !ok {
		return nil, common.ErrorUnauthenticated
	}
	return g.AuthorizeToken(r.Context(), token, role)
}

// AuthorizeToken returns the token's claims unchanged when the token is
// valid, carries role, and belongs to an enabled account that still holds
// role and has not revoked the token. Otherwise it returns an error matching
// common.ErrorUnauthenticated or common.ErrorForbidden.
func (g *Gate) AuthorizeToken(ctx context.Context, token string, role models.Role) (*auth.Claims, error) {
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUnauthenticated, err)
	}

	if claims.Role != role {
		return nil, common.ErrorForbidden
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", common.ErrorUnauthenticated)
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if user.Disabled {
		return nil, fmt.Errorf("%w: account disabled", common.ErrorUnauthenticated)
	}
	if user.Role != role {
		return nil, common.ErrorForbidden
	}

	revokedAt, ok, err := g.revocations.RevokedAt(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load revocation mark: %w", err)
	}
	if ok && !claims.HasPreciseIssuedAt() {
		revokedAt = revokedAt.Truncate(time.Second)
	}
	if ok && claims.IssuedAtTime().Before(revokedAt) {
		return nil, fmt.Errorf("%w: session revoked", common.ErrorUnauthenticated)
	}

	return claims, nil
}

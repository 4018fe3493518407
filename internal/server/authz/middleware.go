package authz

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
)

type ctxKey int

const identityKey ctxKey = iota

// WithIdentity stores the caller's claims in ctx.
func WithIdentity(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, identityKey, claims)
}

// IdentityFromContext returns the claims stored by RequireRole.
func IdentityFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(identityKey).(*auth.Claims)
	return claims, ok
}

// ErrorWriter renders a gate failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireRole lets a request through only if Authorize succeeds for role;
// the caller's identity is then available via IdentityFromContext.
func (g *Gate) RequireRole(role models.Role, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := g.Authorize(r, role)
			if err != nil {
				g.log.Debug(r.Context(), "request denied", "path", r.URL.Path, "error", err)
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims)))
		})
	}
}

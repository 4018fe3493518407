// Package auth issues and verifies session tokens, hashes passwords and
// reads/writes the session cookie.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the session identity on top of the registered claims
// (iat, exp, iss).
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	// IssuedAtNanos is the issue instant in Unix nanoseconds; iat alone
	// cannot order a token against a revocation in the same second.
	IssuedAtNanos int64 `json:"iatNanos,omitempty"`
}

// IssuedAtTime returns the issue instant at nanosecond precision when the
// token carries it, else iat, else the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAtNanos != 0 {
		return time.Unix(0, c.IssuedAtNanos)
	}
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// HasPreciseIssuedAt reports whether IssuedAtTime is sub-second precise.
func (c *Claims) HasPreciseIssuedAt() bool {
	return c.IssuedAtNanos != 0
}

type TokenManager struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

func NewTokenManager(secret []byte, issuer string, validity time.Duration) *TokenManager {
	return &TokenManager{secret: secret, issuer: issuer, validity: validity, now: time.Now}
}

// Validity is the lifetime of issued tokens.
func (m *TokenManager) Validity() time.Duration {
	return m.validity
}

// Issue signs a token for the given identity.
func (m *TokenManager) Issue(userID, email string, role models.Role) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
		UserID:        userID,
		Email:         email,
		Role:          role,
		IssuedAtNanos: now.UnixNano(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// claims. Errors match common.ErrTokenExpired or common.ErrInvalidToken.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// RandomSecret returns a fresh 32-byte signing key.
func RandomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Package models holds the persisted domain records of the blog.
package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSubAdmin Role = "sub-admin"
	RoleEditor   Role = "editor"
	RoleReader   Role = "reader"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSubAdmin, RoleEditor, RoleReader:
		return true
	}
	return false
}

// User is an account. PasswordHash is never rendered to JSON.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	PasswordHash    []byte     `json:"-"`
	Role            Role       `json:"role"`
	Permissions     []string   `json:"permissions"`
	Disabled        bool       `json:"disabled"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	Avatar          string     `json:"avatar,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
